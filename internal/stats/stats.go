package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "atlasgen"

// RunStatistics contains statistics about a running generation job, mirrored into
// prometheus collectors
type RunStatistics struct {
	lock             sync.Mutex
	started          bool
	finished         bool
	startTime        time.Time
	totalRuntime     time.Duration
	stageRuntimes    map[string]time.Duration
	entriesPersisted map[string]int64
	evictionFailures map[string]int64

	stageDuration     *prometheus.HistogramVec
	persistedCounter  *prometheus.CounterVec
	evictionCounter   *prometheus.CounterVec
	currentStageStart map[string]time.Time
}

// NewRunStatistics creates a RunStatistics, registering its collectors with reg when it is non-nil
func NewRunStatistics(reg prometheus.Registerer) (*RunStatistics, error) {
	rs := &RunStatistics{
		stageRuntimes:     make(map[string]time.Duration),
		entriesPersisted:  make(map[string]int64),
		evictionFailures:  make(map[string]int64),
		currentStageStart: make(map[string]time.Time),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time taken to compute and persist a stage",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"stage"}),
		persistedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_persisted_total",
			Help:      "Number of entries persisted by a stage",
		}, []string{"stage"}),
		evictionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eviction_failures_total",
			Help:      "Number of retained collections which could not be evicted after a stage",
		}, []string{"stage"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{rs.stageDuration, rs.persistedCounter, rs.evictionCounter} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return rs, nil
}

// Start triggers statistics tracking, if it hasn't been started already
func (rs *RunStatistics) Start() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if !rs.started {
		rs.started = true
		rs.startTime = time.Now()
	}
}

// Finish completes statistics tracking
func (rs *RunStatistics) Finish() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.finished = true
	rs.totalRuntime = time.Since(rs.startTime)
}

// StartStage tracks the beginning of a Stage
func (rs *RunStatistics) StartStage(stage string) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.currentStageStart[stage] = time.Now()
}

// EndStage tracks the end of a Stage, and the number of entries it persisted
func (rs *RunStatistics) EndStage(stage string, persisted int64) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	start, ok := rs.currentStageStart[stage]
	if !ok {
		start = time.Now()
	}
	delete(rs.currentStageStart, stage)
	runtime := time.Since(start)
	rs.stageRuntimes[stage] = runtime
	rs.entriesPersisted[stage] += persisted
	rs.stageDuration.WithLabelValues(stage).Observe(runtime.Seconds())
	rs.persistedCounter.WithLabelValues(stage).Add(float64(persisted))
}

// EvictionFailed tracks a failure to evict a collection after a Stage
func (rs *RunStatistics) EvictionFailed(stage string) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.evictionFailures[stage]++
	rs.evictionCounter.WithLabelValues(stage).Inc()
}

// GetStartTime returns the start time of the job
func (rs *RunStatistics) GetStartTime() time.Time {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.startTime
}

// GetRuntime returns the running time of the job
func (rs *RunStatistics) GetRuntime() time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if rs.finished {
		return rs.totalRuntime
	}
	if !rs.started {
		return 0
	}
	return time.Since(rs.startTime)
}

// GetStageRuntimes returns the runtime of each Stage which has finished
func (rs *RunStatistics) GetStageRuntimes() map[string]time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	result := make(map[string]time.Duration, len(rs.stageRuntimes))
	for k, v := range rs.stageRuntimes {
		result[k] = v
	}
	return result
}

// GetEntriesPersisted returns the number of entries persisted by each Stage
func (rs *RunStatistics) GetEntriesPersisted() map[string]int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return copyCounts(rs.entriesPersisted)
}

// GetEvictionFailures returns the number of failed evictions after each Stage
func (rs *RunStatistics) GetEvictionFailures() map[string]int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return copyCounts(rs.evictionFailures)
}

func copyCounts(counts map[string]int64) map[string]int64 {
	result := make(map[string]int64, len(counts))
	for k, v := range counts {
		result[k] = v
	}
	return result
}
