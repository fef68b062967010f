package collection

import (
	"context"
	"sync"

	"github.com/go-sif/atlasgen/internal/pcache"
	uuid "github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultRetentionSize = 1024

// Options configures a Context
type Options struct {
	Workers int                   // Workers is the maximum number of partitions computed concurrently
	Store   pcache.RetentionStore // Store holds cached partitions. Defaults to an in-memory LRU.
	Logger  *zap.Logger
}

// A Context owns the collections of a single job. It schedules partition computation across
// a bounded pool of workers and tracks the job group under which work is currently submitted.
type Context struct {
	id             string
	workers        int
	store          pcache.RetentionStore
	ownsStore      bool
	logger         *zap.Logger
	lock           sync.Mutex
	jobGroup       string
	jobDescription string
	broadcasts     map[string]struct{}
}

// NewContext produces a new Context
func NewContext(opts Options) (*Context, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	ownsStore := false
	if store == nil {
		store, err = pcache.NewLRU(&pcache.LRUConfig{Size: defaultRetentionSize, CompressedFraction: 0.5})
		if err != nil {
			return nil, err
		}
		ownsStore = true
	}
	return &Context{
		id:         id.String(),
		workers:    workers,
		store:      store,
		ownsStore:  ownsStore,
		logger:     logger,
		broadcasts: make(map[string]struct{}),
	}, nil
}

// ID returns the unique identifier of this Context
func (sc *Context) ID() string {
	return sc.id
}

// Logger returns the Logger of this Context
func (sc *Context) Logger() *zap.Logger {
	return sc.logger
}

// SetJobGroup labels all subsequently submitted work
func (sc *Context) SetJobGroup(id string, description string) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	sc.jobGroup = id
	sc.jobDescription = description
}

// JobGroup returns the label of currently submitted work
func (sc *Context) JobGroup() (id string, description string) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	return sc.jobGroup, sc.jobDescription
}

// Close releases the resources held by this Context. A RetentionStore passed in via Options is
// left open for its owner.
func (sc *Context) Close() error {
	if sc.ownsStore {
		return sc.store.Close()
	}
	return nil
}

// runPartitions computes fn for every partition in [0, numPartitions), using at most
// sc.workers goroutines. The first error cancels the remaining work.
func (sc *Context) runPartitions(ctx context.Context, numPartitions int, fn func(ctx context.Context, part int) error) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(sc.workers)
	for i := 0; i < numPartitions; i++ {
		part := i
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, part)
		})
	}
	return group.Wait()
}

func (sc *Context) collectionID(name string) string {
	return name + "-" + uuid.Must(uuid.NewV4()).String()
}
