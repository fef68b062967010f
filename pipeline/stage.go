package pipeline

import (
	"context"
	"fmt"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/internal/collection"
	"github.com/go-sif/atlasgen/internal/stats"
	"github.com/go-sif/atlasgen/internal/tracing"
	"github.com/go-sif/atlasgen/persistence"
	"github.com/go-sif/atlasgen/storage"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const savedMessage = "\n\n********** SAVED FOR STEP: %s **********\n"

// StatusReporter is notified as stages run and persist
type StatusReporter interface {
	StageStarted(stage string)
	StagePersisted(stage string)
}

type noStatus struct{}

func (noStatus) StageStarted(string)   {}
func (noStatus) StagePersisted(string) {}

// stageRunner persists the collections of each stage, and releases their predecessors
type stageRunner struct {
	sc        *collection.Context
	store     storage.Store
	layout    persistence.Layout
	lifecycle *CacheLifecycleManager
	tracer    trace.Tracer
	stats     *stats.RunStatistics
	status    StatusReporter
	logger    *zap.Logger
}

// persistStage durably writes the collection of a stage beneath its cache folder, under the
// stage's job group, then lets the CacheLifecycleManager release what the stage no longer needs
func persistStage[V any](ctx context.Context, r *stageRunner, group JobGroup, pairs *collection.Pairs[V], encoder persistence.Encoder[V]) (int64, error) {
	persisted, err := save(ctx, r, group.String(), group.Description(), group.CacheFolder(), pairs, encoder)
	if err != nil {
		return persisted, err
	}
	r.status.StagePersisted(group.String())
	r.logger.Info(fmt.Sprintf(savedMessage, group.Description()))
	r.lifecycle.Persisted(ctx, group)
	return persisted, nil
}

func save[V any](ctx context.Context, r *stageRunner, id string, description string, folder string, pairs *collection.Pairs[V], encoder persistence.Encoder[V]) (int64, error) {
	r.sc.SetJobGroup(id, description)
	r.status.StageStarted(id)
	r.stats.StartStage(id)
	spanCtx, span := tracing.StartStage(ctx, r.tracer, id, description)
	persisted, err := persistence.Save(spanCtx, pairs, r.store, folder, r.layout, encoder)
	tracing.EndStage(span, persisted, err)
	r.stats.EndStage(id, persisted)
	if err != nil {
		return persisted, errors.StageError{Stage: description, Err: err}
	}
	return persisted, nil
}

// mapAtlases applies a per-key transform to every atlas of a stage, dropping the keys for
// which it produces no atlas
func mapAtlases(group JobGroup, input *collection.Pairs[atlasgen.Atlas], codec collection.Codec[atlasgen.Atlas], fn func(key string, a atlasgen.Atlas) (atlasgen.Atlas, error)) *collection.Pairs[atlasgen.Atlas] {
	mapped := collection.MapValues(input, group.String(), codec, fn)
	return dropAbsent(group, mapped)
}

func dropAbsent[V comparable](group JobGroup, pairs *collection.Pairs[V]) *collection.Pairs[V] {
	var absent V
	return collection.Filter(pairs, group.String(), func(key string, value V) (bool, error) {
		return value != absent, nil
	})
}
