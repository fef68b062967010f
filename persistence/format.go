package persistence

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"sync/atomic"

	"github.com/go-sif/atlasgen/internal/collection"
	"github.com/go-sif/atlasgen/storage"
)

// An Encoder writes values of a dataset in a particular file format
type Encoder[V any] interface {
	Extension() string // Extension returns the file extension, including its leading dot
	Encode(w io.Writer, value V) error
}

// A Format both writes and reads values of a dataset. Every Format is also a collection.Codec.
type Format[V any] interface {
	Encoder[V]
	Decode(r io.Reader) (V, error)
}

// Save writes the pairs of a collection to one file per key beneath folder, and returns the
// number of values written. Values sharing a key are written to the same file, in order. A key
// must not span partitions. Save returns once every partition is durable.
func Save[V any](ctx context.Context, pairs *collection.Pairs[V], store storage.Store, folder string, layout Layout, encoder Encoder[V]) (int64, error) {
	var written int64
	var owners sync.Map
	err := pairs.ForeachPartition(ctx, func(ctx context.Context, part int, partition []collection.Pair[V]) error {
		var keys []string
		grouped := make(map[string][]V)
		for _, pair := range partition {
			if _, ok := grouped[pair.Key]; !ok {
				keys = append(keys, pair.Key)
			}
			grouped[pair.Key] = append(grouped[pair.Key], pair.Value)
		}
		for _, key := range keys {
			if owner, loaded := owners.LoadOrStore(key, part); loaded {
				return fmt.Errorf("key %s is held by partitions %d and %d", key, owner, part)
			}
			values := grouped[key]
			if err := Write(ctx, store, folder, layout, encoder, key, values...); err != nil {
				return err
			}
			atomic.AddInt64(&written, int64(len(values)))
		}
		return nil
	})
	return written, err
}

// Write writes values to the file for their key, one after the other
func Write[V any](ctx context.Context, store storage.Store, folder string, layout Layout, encoder Encoder[V], key string, values ...V) error {
	p, err := layout.Path(key, encoder.Extension())
	if err != nil {
		return err
	}
	full := path.Join(folder, p)
	w, err := store.Create(ctx, full)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", full, err)
	}
	for _, value := range values {
		if err := encoder.Encode(w, value); err != nil {
			w.Close()
			return fmt.Errorf("unable to write %s: %w", full, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to write %s: %w", full, err)
	}
	return nil
}
