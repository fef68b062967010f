package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/go-sif/atlasgen/errors"
	"google.golang.org/api/iterator"
)

type gcsStore struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	prefix string
}

// NewGCS produces a Store rooted at a prefix of a GCS bucket, using application default
// credentials
func NewGCS(ctx context.Context, bucket string, prefix string) (Store, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS client: %w", err)
	}
	return &gcsStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *gcsStore) key(p string) string {
	return strings.TrimPrefix(path.Join(s.prefix, p), "/")
}

func (s *gcsStore) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	return s.bucket.Object(s.key(p)).NewWriter(ctx), nil
}

func (s *gcsStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(s.key(p)).NewReader(ctx)
	if stderrors.Is(err, gcs.ErrObjectNotExist) {
		return nil, errors.MissingDatasetError{Path: "gs://" + s.name + "/" + s.key(p)}
	}
	return r, err
}

func (s *gcsStore) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.bucket.Object(s.key(p)).Attrs(ctx)
	if stderrors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (s *gcsStore) listKeys(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := s.key(prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: listPrefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/"))
	}
	sort.Strings(result)
	return result, nil
}

func (s *gcsStore) RemoveAll(ctx context.Context, prefix string) error {
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.bucket.Object(key).Delete(ctx); err != nil && !stderrors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("unable to remove gs://%s/%s: %w", s.name, key, err)
		}
	}
	return nil
}

func (s *gcsStore) Close() error {
	return s.client.Close()
}
