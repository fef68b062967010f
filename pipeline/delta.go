package pipeline

import (
	"context"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/geometry"
	"github.com/go-sif/atlasgen/internal/collection"
)

// computeDeltas compares every atlas with the atlas at the same key of a previous run. Keys
// without a previous atlas produce no Delta, and neither do identical atlases. A key may
// produce several Deltas, all of which keep its key and so share its file.
func computeDeltas(ctx context.Context, atlases *collection.Pairs[atlasgen.Atlas], engine geometry.Engine, previous geometry.AtlasSource) *collection.Pairs[atlasgen.Delta] {
	return collection.FlatMapToPair(atlases, Deltas.String(), nil, func(key string, a atlasgen.Atlas) ([]collection.Pair[atlasgen.Delta], error) {
		before, ok, err := previous.Lookup(ctx, key)
		if err != nil || !ok {
			return nil, err
		}
		deltas, err := engine.Delta(before, a)
		if err != nil {
			return nil, err
		}
		result := make([]collection.Pair[atlasgen.Delta], 0, len(deltas))
		for _, delta := range deltas {
			if delta != nil {
				result = append(result, collection.Pair[atlasgen.Delta]{Key: key, Value: delta})
			}
		}
		return result, nil
	})
}
