// Package storage provides uniform access to the locations a generation job reads from and
// writes to: local directories, S3 buckets and GCS buckets.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// A Store is a tree of files rooted at a location. Paths are relative to the root, and use
// forward slashes.
type Store interface {
	Create(ctx context.Context, path string) (io.WriteCloser, error) // Create opens a file for writing, creating parent directories as necessary
	Open(ctx context.Context, path string) (io.ReadCloser, error)    // Open opens a file for reading, returning a MissingDatasetError if it does not exist
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error) // List returns the sorted paths of every file beneath prefix
	RemoveAll(ctx context.Context, prefix string) error        // RemoveAll removes every file beneath prefix
	Close() error
}

// An Opener produces a Store rooted at a location
type Opener func(ctx context.Context, location string) (Store, error)

const (
	s3Scheme   = "s3://"
	gcsScheme  = "gs://"
	fileScheme = "file://"
)

// OpenLocation produces a Store for any supported location: s3://bucket/prefix,
// gs://bucket/prefix, file:///path or a plain local path
func OpenLocation(ctx context.Context, location string) (Store, error) {
	switch {
	case strings.HasPrefix(location, s3Scheme):
		bucket, prefix := splitBucket(strings.TrimPrefix(location, s3Scheme))
		return NewS3(ctx, bucket, prefix)
	case strings.HasPrefix(location, gcsScheme):
		bucket, prefix := splitBucket(strings.TrimPrefix(location, gcsScheme))
		return NewGCS(ctx, bucket, prefix)
	case strings.HasPrefix(location, fileScheme):
		return NewLocal(strings.TrimPrefix(location, fileScheme)), nil
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("unsupported location %s", location)
	default:
		return NewLocal(location), nil
	}
}

// splitBucket splits "bucket/some/prefix" into its bucket and prefix
func splitBucket(location string) (bucket string, prefix string) {
	location = strings.Trim(location, "/")
	if idx := strings.Index(location, "/"); idx >= 0 {
		return location[:idx], location[idx+1:]
	}
	return location, ""
}

// Join joins a location and a relative path, preserving any scheme
func Join(location string, elem ...string) string {
	scheme := ""
	if idx := strings.Index(location, "://"); idx >= 0 {
		scheme = location[:idx+3]
		location = location[idx+3:]
	}
	return scheme + path.Join(append([]string{location}, elem...)...)
}

// Split splits a file location into its parent location and file name
func Split(location string) (dir string, file string) {
	idx := strings.LastIndex(location, "/")
	if idx < 0 {
		return ".", location
	}
	dir = location[:idx]
	if dir == "" || strings.HasSuffix(dir, ":/") {
		dir = location[:idx+1]
	}
	return dir, location[idx+1:]
}

// ReadFile reads the entire file at a location
func ReadFile(ctx context.Context, opener Opener, location string) ([]byte, error) {
	dir, file := Split(location)
	store, err := opener(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return ReadAll(ctx, store, file)
}

// ReadAll reads the entire file at a path within a Store
func ReadAll(ctx context.Context, store Store, path string) ([]byte, error) {
	r, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile replaces the file at a path within a Store
func WriteFile(ctx context.Context, store Store, path string, data []byte) error {
	w, err := store.Create(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// CopyFile copies the file at a location to a path within a Store
func CopyFile(ctx context.Context, opener Opener, location string, dst Store, path string) error {
	data, err := ReadFile(ctx, opener, location)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", location, err)
	}
	return WriteFile(ctx, dst, path, data)
}
