package collection

import (
	"context"

	iutil "github.com/go-sif/atlasgen/internal/util"
)

// MapValues transforms every value of a collection, preserving keys and partitioning
func MapValues[V, W any](p *Pairs[V], name string, codec Codec[W], fn func(key string, value V) (W, error)) *Pairs[W] {
	safeFn := iutil.SafeOperation("Map", fn)
	return newPairs(p.sc, name, p.numPartitions, codec, func(ctx context.Context, part int) ([]Pair[W], error) {
		parent, err := p.partition(ctx, part)
		if err != nil {
			return nil, err
		}
		result := make([]Pair[W], 0, len(parent))
		for _, pair := range parent {
			value, err := safeFn(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, Pair[W]{Key: pair.Key, Value: value})
		}
		return result, nil
	})
}

// MapToPair transforms every pair of a collection into a new pair, possibly with a new key.
// Partitioning is preserved.
func MapToPair[V, W any](p *Pairs[V], name string, codec Codec[W], fn func(key string, value V) (Pair[W], error)) *Pairs[W] {
	safeFn := iutil.SafeOperation("MapToPair", fn)
	return newPairs(p.sc, name, p.numPartitions, codec, func(ctx context.Context, part int) ([]Pair[W], error) {
		parent, err := p.partition(ctx, part)
		if err != nil {
			return nil, err
		}
		result := make([]Pair[W], 0, len(parent))
		for _, pair := range parent {
			mapped, err := safeFn(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped)
		}
		return result, nil
	})
}

// FlatMapToPair transforms every pair of a collection into zero or more new pairs
func FlatMapToPair[V, W any](p *Pairs[V], name string, codec Codec[W], fn func(key string, value V) ([]Pair[W], error)) *Pairs[W] {
	safeFn := iutil.SafeOperation("FlatMap", fn)
	return newPairs(p.sc, name, p.numPartitions, codec, func(ctx context.Context, part int) ([]Pair[W], error) {
		parent, err := p.partition(ctx, part)
		if err != nil {
			return nil, err
		}
		var result []Pair[W]
		for _, pair := range parent {
			mapped, err := safeFn(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped...)
		}
		return result, nil
	})
}

// Filter keeps the pairs of a collection for which fn returns true
func Filter[V any](p *Pairs[V], name string, fn func(key string, value V) (bool, error)) *Pairs[V] {
	safeFn := iutil.SafeOperation("Filter", fn)
	return newPairs(p.sc, name, p.numPartitions, p.codec, func(ctx context.Context, part int) ([]Pair[V], error) {
		parent, err := p.partition(ctx, part)
		if err != nil {
			return nil, err
		}
		var result []Pair[V]
		for _, pair := range parent {
			keep, err := safeFn(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			if keep {
				result = append(result, pair)
			}
		}
		return result, nil
	})
}
