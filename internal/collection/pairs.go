package collection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-sif/atlasgen/errors"
	"github.com/moby/locker"
	"go.uber.org/zap"
)

// Pair is a single keyed element of a collection
type Pair[V any] struct {
	Key   string
	Value V
}

// A Codec serializes the values of a collection, so that they can be retained
type Codec[V any] interface {
	Encode(w io.Writer, value V) error
	Decode(r io.Reader) (V, error)
}

type computeFunc[V any] func(ctx context.Context, part int) ([]Pair[V], error)

// Pairs is a lazily evaluated, partitioned collection of keyed values. Nothing is computed
// until an action (Collect, Count, ForeachPartition) runs. A cached collection is computed at
// most once per retained partition; an uncached one is recomputed from its lineage every
// time it is read.
type Pairs[V any] struct {
	sc            *Context
	id            string
	name          string
	numPartitions int
	compute       computeFunc[V]
	codec         Codec[V]
	plocks        *locker.Locker
	lock          sync.RWMutex
	cached        bool
}

func newPairs[V any](sc *Context, name string, numPartitions int, codec Codec[V], compute computeFunc[V]) *Pairs[V] {
	return &Pairs[V]{
		sc:            sc,
		id:            sc.collectionID(name),
		name:          name,
		numPartitions: numPartitions,
		compute:       compute,
		codec:         codec,
		plocks:        locker.New(),
	}
}

// Parallelize distributes pairs round-robin across numPartitions partitions
func Parallelize[V any](sc *Context, name string, pairs []Pair[V], numPartitions int, codec Codec[V]) *Pairs[V] {
	if numPartitions < 1 {
		numPartitions = 1
	}
	parts := make([][]Pair[V], numPartitions)
	for i, pair := range pairs {
		parts[i%numPartitions] = append(parts[i%numPartitions], pair)
	}
	return newPairs(sc, name, numPartitions, codec, func(ctx context.Context, part int) ([]Pair[V], error) {
		return parts[part], nil
	})
}

// ID returns the unique identifier of this collection
func (p *Pairs[V]) ID() string {
	return p.id
}

// Name returns the name of this collection
func (p *Pairs[V]) Name() string {
	return p.name
}

// NumPartitions returns the number of partitions of this collection
func (p *Pairs[V]) NumPartitions() int {
	return p.numPartitions
}

// Context returns the Context which owns this collection
func (p *Pairs[V]) Context() *Context {
	return p.sc
}

// IsCached returns true iff this collection is currently retained
func (p *Pairs[V]) IsCached() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.cached
}

// Cache marks this collection for retention. Partitions are retained as they are first computed.
func (p *Pairs[V]) Cache() error {
	if p.codec == nil {
		return fmt.Errorf("collection %s has no codec and cannot be cached", p.name)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.cached = true
	return nil
}

// Unpersist releases every retained partition of this collection. The collection remains
// usable, and is recomputed from its lineage if read again.
func (p *Pairs[V]) Unpersist(ctx context.Context) error {
	p.lock.Lock()
	wasCached := p.cached
	p.cached = false
	p.lock.Unlock()
	if !wasCached {
		return nil
	}
	return p.sc.store.Drop(ctx, p.id)
}

// partition returns the contents of a single partition, from the RetentionStore if possible
func (p *Pairs[V]) partition(ctx context.Context, part int) ([]Pair[V], error) {
	if !p.IsCached() {
		return p.compute(ctx, part)
	}
	lockKey := fmt.Sprintf("%d", part)
	p.plocks.Lock(lockKey)
	defer p.plocks.Unlock(lockKey)

	data, err := p.sc.store.Get(ctx, p.id, part)
	if err == nil {
		pairs, err := decodePartition(bytes.NewReader(data), p.codec)
		if err == nil {
			return pairs, nil
		}
		p.sc.logger.Warn("Unable to decode retained partition, recomputing", zap.String("collection", p.name), zap.Int("partition", part), zap.Error(err))
	} else if !errors.IsNotRetained(err) {
		p.sc.logger.Warn("Unable to fetch retained partition, recomputing", zap.String("collection", p.name), zap.Int("partition", part), zap.Error(err))
	}

	pairs, err := p.compute(ctx, part)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodePartition(&buf, pairs, p.codec); err != nil {
		p.sc.logger.Warn("Unable to encode partition for retention", zap.String("collection", p.name), zap.Int("partition", part), zap.Error(err))
		return pairs, nil
	}
	if p.IsCached() {
		if err := p.sc.store.Put(ctx, p.id, part, buf.Bytes()); err != nil {
			p.sc.logger.Warn("Unable to retain partition", zap.String("collection", p.name), zap.Int("partition", part), zap.Error(err))
		}
	}
	return pairs, nil
}

// ForeachPartition runs fn against every partition of this collection, in parallel
func (p *Pairs[V]) ForeachPartition(ctx context.Context, fn func(ctx context.Context, part int, pairs []Pair[V]) error) error {
	return p.sc.runPartitions(ctx, p.numPartitions, func(ctx context.Context, part int) error {
		pairs, err := p.partition(ctx, part)
		if err != nil {
			return err
		}
		return fn(ctx, part, pairs)
	})
}

// Collect returns every pair of this collection, in partition order
func (p *Pairs[V]) Collect(ctx context.Context) ([]Pair[V], error) {
	parts := make([][]Pair[V], p.numPartitions)
	err := p.ForeachPartition(ctx, func(ctx context.Context, part int, pairs []Pair[V]) error {
		parts[part] = pairs
		return nil
	})
	if err != nil {
		return nil, err
	}
	var result []Pair[V]
	for _, pairs := range parts {
		result = append(result, pairs...)
	}
	return result, nil
}

// Count returns the number of pairs in this collection
func (p *Pairs[V]) Count(ctx context.Context) (int64, error) {
	var lock sync.Mutex
	var count int64
	err := p.ForeachPartition(ctx, func(ctx context.Context, part int, pairs []Pair[V]) error {
		lock.Lock()
		defer lock.Unlock()
		count += int64(len(pairs))
		return nil
	})
	return count, err
}
