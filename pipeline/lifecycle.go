package pipeline

import (
	"context"
	"fmt"
	"sync"

	iutil "github.com/go-sif/atlasgen/internal/util"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// evictionMessage is logged when a retained collection cannot be released
const evictionMessage = "Exception after task %s"

// Retainable is an in-memory collection whose retention can be managed
type Retainable interface {
	Name() string
	Cache() error
	Unpersist(ctx context.Context) error
}

// EvictionRecorder is notified of failed evictions, by the stage whose persistence triggered them
type EvictionRecorder interface {
	EvictionFailed(stage string)
}

type retention struct {
	group      JobGroup
	collection Retainable
	pending    map[JobGroup]struct{}
}

// CacheLifecycleManager retains the in-memory collection of a stage until every stage
// depending on it has persisted, then evicts it. Evictions which fail are logged and
// recorded, but never fail the job.
type CacheLifecycleManager struct {
	logger   *zap.Logger
	recorder EvictionRecorder
	lock     sync.Mutex
	retained []*retention
}

// NewCacheLifecycleManager produces a CacheLifecycleManager
func NewCacheLifecycleManager(logger *zap.Logger, recorder EvictionRecorder) *CacheLifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheLifecycleManager{logger: logger.Named("lifecycle"), recorder: recorder}
}

// Retain marks the collection of a stage for retention until all of dependents have persisted.
// A collection without dependents is not retained at all.
func (m *CacheLifecycleManager) Retain(group JobGroup, collection Retainable, dependents ...JobGroup) error {
	if len(dependents) == 0 {
		return nil
	}
	if err := collection.Cache(); err != nil {
		return err
	}
	pending := make(map[JobGroup]struct{}, len(dependents))
	for _, dependent := range dependents {
		pending[dependent] = struct{}{}
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.retained = append(m.retained, &retention{group: group, collection: collection, pending: pending})
	return nil
}

// Retained returns the stages whose collections are currently retained, in retention order
func (m *CacheLifecycleManager) Retained() []JobGroup {
	m.lock.Lock()
	defer m.lock.Unlock()
	groups := make([]JobGroup, 0, len(m.retained))
	for _, r := range m.retained {
		groups = append(groups, r.group)
	}
	return groups
}

// Persisted records that a stage has persisted, evicting every collection which no longer
// has a pending dependent
func (m *CacheLifecycleManager) Persisted(ctx context.Context, group JobGroup) {
	m.lock.Lock()
	var evict []*retention
	var keep []*retention
	for _, r := range m.retained {
		delete(r.pending, group)
		if len(r.pending) == 0 {
			evict = append(evict, r)
		} else {
			keep = append(keep, r)
		}
	}
	m.retained = keep
	m.lock.Unlock()
	m.evictAll(ctx, group, evict)
}

// Close evicts every collection which is still retained, attributing failures to the given stage
func (m *CacheLifecycleManager) Close(ctx context.Context, last JobGroup) {
	m.lock.Lock()
	evict := m.retained
	m.retained = nil
	m.lock.Unlock()
	m.evictAll(ctx, last, evict)
}

// evictAll releases every collection, continuing past failures. Each failure is recorded once.
func (m *CacheLifecycleManager) evictAll(ctx context.Context, after JobGroup, rs []*retention) {
	var merr *multierror.Error
	for _, r := range rs {
		if err := r.collection.Unpersist(ctx); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s (retained by %s): %w", r.collection.Name(), r.group, err))
			if m.recorder != nil {
				m.recorder.EvictionFailed(after.String())
			}
			continue
		}
		m.logger.Debug("Evicted collection", zap.String("collection", r.collection.Name()), zap.Stringer("after", after))
	}
	if merr.ErrorOrNil() != nil {
		m.logger.Warn(fmt.Sprintf(evictionMessage, after.Description()),
			zap.Int("failures", merr.Len()),
			zap.String("errors", iutil.FormatMultiError(merr)))
	}
}
