package pipeline

import (
	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/internal/collection"
)

// Names of the broadcast values of a job
const (
	BoundariesBroadcast     = "boundaries"
	LoadingOptionsBroadcast = "loadingOptions"
	ShardingBroadcast       = "sharding"
)

// BroadcastContext holds the handles of the read-only values shared with every task of a job.
// Stages receive the handles and dereference them with Value().
type BroadcastContext struct {
	Boundaries     *collection.Broadcast[atlasgen.BoundaryLookup]
	LoadingOptions *collection.Broadcast[map[string]string]
	Sharding       *collection.Broadcast[atlasgen.Sharding]
}

// NewBroadcastContext broadcasts the shared values of a job. It fails if the Context already
// holds a BroadcastContext.
func NewBroadcastContext(sc *collection.Context, boundaries atlasgen.BoundaryLookup, loadingOptions map[string]string, sharding atlasgen.Sharding) (*BroadcastContext, error) {
	b, err := collection.NewBroadcast(sc, BoundariesBroadcast, boundaries)
	if err != nil {
		return nil, err
	}
	// the broadcast map must not alias one the caller may still modify
	options := make(map[string]string, len(loadingOptions))
	for k, v := range loadingOptions {
		options[k] = v
	}
	o, err := collection.NewBroadcast(sc, LoadingOptionsBroadcast, options)
	if err != nil {
		return nil, err
	}
	s, err := collection.NewBroadcast(sc, ShardingBroadcast, sharding)
	if err != nil {
		return nil, err
	}
	return &BroadcastContext{Boundaries: b, LoadingOptions: o, Sharding: s}, nil
}
