// Package geometry defines the geometry engine collaborator of the generation pipeline, and
// provides a reference implementation over the reference atlas
package geometry

import (
	"context"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/datasource/parser/jsonl"
	"github.com/go-sif/atlasgen/persistence"
	"github.com/go-sif/atlasgen/storage"
)

// An AtlasSource looks up the durable output of an earlier stage by key. A
// persistence.Reader[atlasgen.Atlas] is an AtlasSource.
type AtlasSource interface {
	Lookup(ctx context.Context, key string) (atlasgen.Atlas, bool, error)
}

// PBFContext locates the raw extracts of a job. Raw extracts may be sharded differently from
// the atlases the job produces.
type PBFContext struct {
	Store    storage.Store
	Sharding atlasgen.Sharding
	Scheme   persistence.Scheme
	Parser   *jsonl.Parser
}

// RelationSlicingInput carries the side inputs of relation slicing
type RelationSlicingInput struct {
	Task          atlasgen.GenerationTask
	Sharding      atlasgen.Sharding
	Boundaries    atlasgen.BoundaryLookup
	LineSlicedSub AtlasSource
	LineSliced    AtlasSource
}

// SectioningInput carries the side inputs of way sectioning
type SectioningInput struct {
	Task        atlasgen.GenerationTask
	Sharding    atlasgen.Sharding
	Options     map[string]string
	EdgeSub     AtlasSource
	FullySliced AtlasSource
}

// Engine performs the geometric work of each stage. Every method returning an Atlas returns
// nil when the result would be empty, and the pipeline drops it.
type Engine interface {
	LoadRaw(ctx context.Context, task atlasgen.GenerationTask, pbf PBFContext, boundaries atlasgen.BoundaryLookup) (atlasgen.Atlas, error)
	SliceLines(ctx context.Context, country string, raw atlasgen.Atlas, boundaries atlasgen.BoundaryLookup) (atlasgen.Atlas, error)
	SliceRelations(ctx context.Context, lineSliced atlasgen.Atlas, input RelationSlicingInput) (atlasgen.Atlas, error)
	Section(ctx context.Context, fullySliced atlasgen.Atlas, input SectioningInput) (atlasgen.Atlas, error)
	SubAtlas(a atlasgen.Atlas, predicate atlasgen.TaggablePredicate, cut atlasgen.CutType) (atlasgen.Atlas, error)
	Statistics(a atlasgen.Atlas) (atlasgen.Statistics, error)
	Delta(before atlasgen.Atlas, after atlasgen.Atlas) ([]atlasgen.Delta, error)
}

// Neighbors returns the Shards touching a task's Shard which also belong to the task's country
func Neighbors(sharding atlasgen.Sharding, task atlasgen.GenerationTask) atlasgen.ShardSet {
	var result atlasgen.ShardSet
	for _, neighbor := range sharding.Neighbors(task.Shard) {
		if task.Siblings.Contains(neighbor) {
			result = append(result, neighbor)
		}
	}
	return result
}
