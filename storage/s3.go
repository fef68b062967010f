package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-sif/atlasgen/errors"
)

// maximum number of keys accepted by a single DeleteObjects request
const s3DeleteBatchSize = 1000

type s3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3 produces a Store rooted at a prefix of an S3 bucket, using the default AWS
// credential chain
func NewS3(ctx context.Context, bucket string, prefix string) (Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &s3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}, nil
}

func (s *s3Store) key(p string) string {
	return strings.TrimPrefix(path.Join(s.prefix, p), "/")
}

// s3Writer buffers a file and uploads it on Close
type s3Writer struct {
	ctx   context.Context
	store *s3Store
	key   string
	buf   bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	_, err := w.store.uploader.Upload(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.store.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("unable to upload s3://%s/%s: %w", w.store.bucket, w.key, err)
	}
	return nil
}

func (s *s3Store) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	return &s3Writer{ctx: ctx, store: s, key: s.key(p)}, nil
}

func (s *s3Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	var noSuchKey *types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return nil, errors.MissingDatasetError{Path: "s3://" + s.bucket + "/" + s.key(p)}
	} else if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s *s3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	var notFound *types.NotFound
	if stderrors.As(err, &notFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (s *s3Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := s.key(prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *s3Store) List(ctx context.Context, prefix string) ([]string, error) {
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

func (s *s3Store) RemoveAll(ctx context.Context, prefix string) error {
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += s3DeleteBatchSize {
		end := start + s3DeleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("unable to remove s3://%s/%s: %w", s.bucket, s.key(prefix), err)
		}
	}
	return nil
}

func (s *s3Store) Close() error {
	return nil
}
