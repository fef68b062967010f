package persistence

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/storage"
)

// A Reader reads back the values of a dataset written with the same Layout and Format. This is
// how a stage reads the durable output of an earlier stage as a side input.
type Reader[V any] struct {
	store  storage.Store
	folder string
	layout Layout
	format Format[V]
}

// NewReader produces a Reader for the dataset beneath folder
func NewReader[V any](store storage.Store, folder string, layout Layout, format Format[V]) *Reader[V] {
	return &Reader[V]{store: store, folder: folder, layout: layout, format: format}
}

// Folder returns the folder of the dataset
func (r *Reader[V]) Folder() string {
	return r.folder
}

// Read returns the value for a key, or a MissingDatasetError if it was never written
func (r *Reader[V]) Read(ctx context.Context, key string) (V, error) {
	var empty V
	p, err := r.layout.Path(key, r.format.Extension())
	if err != nil {
		return empty, err
	}
	full := path.Join(r.folder, p)
	f, err := r.store.Open(ctx, full)
	if err != nil {
		return empty, err
	}
	defer f.Close()
	value, err := r.format.Decode(f)
	if err != nil {
		return empty, fmt.Errorf("unable to read %s: %w", full, err)
	}
	return value, nil
}

// Lookup returns the value for a key, and false if it was never written
func (r *Reader[V]) Lookup(ctx context.Context, key string) (V, bool, error) {
	value, err := r.Read(ctx, key)
	if errors.IsMissingDataset(err) {
		var empty V
		return empty, false, nil
	} else if err != nil {
		return value, false, err
	}
	return value, true, nil
}

// Keys returns the sorted keys of every value in the dataset
func (r *Reader[V]) Keys(ctx context.Context) ([]string, error) {
	files, err := r.store.List(ctx, r.folder)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, file := range files {
		if key, ok := KeyFromPath(file, r.format.Extension()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
