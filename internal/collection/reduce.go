package collection

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	iutil "github.com/go-sif/atlasgen/internal/util"
)

// shuffle buckets the pairs of a parent collection by the hash of their keys, reducing values
// which share a key. It runs at most once, the first time any reduced partition is requested.
type shuffle[V any] struct {
	lock    sync.Mutex
	done    bool
	err     error
	buckets [][]Pair[V]
}

// ReduceByKey combines all values which share a key using fn. fn must be associative and
// commutative, as values are combined in no particular order.
func ReduceByKey[V any](p *Pairs[V], name string, fn func(key string, left V, right V) (V, error)) *Pairs[V] {
	safeFn := iutil.SafeReductionOperation(fn)
	numPartitions := p.numPartitions
	s := &shuffle[V]{}
	return newPairs(p.sc, name, numPartitions, p.codec, func(ctx context.Context, part int) ([]Pair[V], error) {
		if err := s.run(ctx, p, numPartitions, safeFn); err != nil {
			return nil, err
		}
		return s.buckets[part], nil
	})
}

func bucketFor(key string, numBuckets int) int {
	if numBuckets < 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(numBuckets))
}

func (s *shuffle[V]) run(ctx context.Context, p *Pairs[V], numBuckets int, fn func(key string, left V, right V) (V, error)) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.done {
		return s.err
	}
	// combine within each parent partition first, then across partitions
	var combineLock sync.Mutex
	combined := make(map[string]V)
	s.err = p.ForeachPartition(ctx, func(ctx context.Context, part int, pairs []Pair[V]) error {
		local := make(map[string]V)
		for _, pair := range pairs {
			existing, ok := local[pair.Key]
			if !ok {
				local[pair.Key] = pair.Value
				continue
			}
			reduced, err := fn(pair.Key, existing, pair.Value)
			if err != nil {
				return err
			}
			local[pair.Key] = reduced
		}
		combineLock.Lock()
		defer combineLock.Unlock()
		for key, value := range local {
			existing, ok := combined[key]
			if !ok {
				combined[key] = value
				continue
			}
			reduced, err := fn(key, existing, value)
			if err != nil {
				return err
			}
			combined[key] = reduced
		}
		return nil
	})
	s.done = true
	if s.err != nil {
		return s.err
	}
	keys := make([]string, 0, len(combined))
	for key := range combined {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	s.buckets = make([][]Pair[V], numBuckets)
	for _, key := range keys {
		b := bucketFor(key, numBuckets)
		s.buckets[b] = append(s.buckets[b], Pair[V]{Key: key, Value: combined[key]})
	}
	return nil
}
