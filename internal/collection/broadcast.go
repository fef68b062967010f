package collection

import "github.com/go-sif/atlasgen/errors"

// A Broadcast is a read-only value shared with every partition computation of a Context
type Broadcast[T any] struct {
	name  string
	value T
}

// NewBroadcast shares a value under a name which must be unique within the Context
func NewBroadcast[T any](sc *Context, name string, value T) (*Broadcast[T], error) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	if _, ok := sc.broadcasts[name]; ok {
		return nil, errors.AlreadyBroadcastError{Name: name}
	}
	sc.broadcasts[name] = struct{}{}
	return &Broadcast[T]{name: name, value: value}, nil
}

// Name returns the name of this Broadcast
func (b *Broadcast[T]) Name() string {
	return b.name
}

// Value returns the broadcast value
func (b *Broadcast[T]) Value() T {
	return b.value
}
