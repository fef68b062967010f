package pcache

import "context"

// RetentionStore holds the serialized partitions of cached collections, so that a collection
// read by several downstream stages is only computed once
type RetentionStore interface {
	Put(ctx context.Context, collection string, part int, data []byte) error
	Get(ctx context.Context, collection string, part int) ([]byte, error) // Get returns a NotRetainedError if the partition is not held
	Drop(ctx context.Context, collection string) error                    // Drop releases every partition of a collection
	Close() error
}
