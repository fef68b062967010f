package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCollection struct {
	name        string
	cached      bool
	unpersisted int
	err         error
}

func (c *fakeCollection) Name() string {
	return c.name
}

func (c *fakeCollection) Cache() error {
	c.cached = true
	return nil
}

func (c *fakeCollection) Unpersist(ctx context.Context) error {
	c.unpersisted++
	return c.err
}

type countingRecorder map[string]int

func (r countingRecorder) EvictionFailed(stage string) {
	r[stage]++
}

func TestEvictAfterAllDependents(t *testing.T) {
	ctx := context.Background()
	m := NewCacheLifecycleManager(nil, nil)
	raw := &fakeCollection{name: "raw"}
	lineSliced := &fakeCollection{name: "lineSliced"}
	require.Nil(t, m.Retain(Raw, raw, Raw.Dependents()...))
	require.Nil(t, m.Retain(LineSliced, lineSliced, LineSliced.Dependents()...))
	require.True(t, raw.cached)
	require.Equal(t, []JobGroup{Raw, LineSliced}, m.Retained())

	m.Persisted(ctx, LineSliced)
	require.Equal(t, 1, raw.unpersisted)
	require.Equal(t, []JobGroup{LineSliced}, m.Retained())

	m.Persisted(ctx, LineSlicedSub)
	require.Equal(t, 0, lineSliced.unpersisted)
	m.Persisted(ctx, FullySliced)
	require.Equal(t, 1, lineSliced.unpersisted)
	require.Empty(t, m.Retained())
}

func TestNoDependentsNoRetention(t *testing.T) {
	m := NewCacheLifecycleManager(nil, nil)
	c := &fakeCollection{name: "countryStats"}
	require.Nil(t, m.Retain(CountryStatistics, c))
	require.False(t, c.cached)
	require.Empty(t, m.Retained())
}

func TestEvictionFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	recorder := countingRecorder{}
	m := NewCacheLifecycleManager(zap.New(core), recorder)
	edges := &fakeCollection{name: "edges", err: fmt.Errorf("store unavailable")}
	sectioned := &fakeCollection{name: "sectioned", err: fmt.Errorf("store unavailable")}
	require.Nil(t, m.Retain(EdgeSub, edges, EdgeSub.Dependents()...))
	require.Nil(t, m.Retain(WaySectioned, sectioned, ShardStatistics))

	m.Persisted(ctx, WaySectioned)
	require.Equal(t, 1, logs.FilterMessage("Exception after task Way Sectioned Atlas Creation").Len())
	require.Equal(t, 1, recorder["WAY_SECTIONED"])

	m.Close(ctx, Deltas)
	require.Equal(t, 1, sectioned.unpersisted)
	require.Equal(t, 1, logs.FilterMessage("Exception after task Atlas Deltas Creation").Len())
	require.Empty(t, m.Retained())
}

func TestEvictionFailuresAreAggregated(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	recorder := countingRecorder{}
	m := NewCacheLifecycleManager(zap.New(core), recorder)
	lineSliced := &fakeCollection{name: "lineSliced", err: fmt.Errorf("expired")}
	lineSlicedSub := &fakeCollection{name: "lineSlicedSub", err: fmt.Errorf("expired")}
	require.Nil(t, m.Retain(LineSliced, lineSliced, FullySliced))
	require.Nil(t, m.Retain(LineSlicedSub, lineSlicedSub, LineSlicedSub.Dependents()...))

	m.Persisted(ctx, FullySliced)
	warnings := logs.FilterMessage("Exception after task Fully Sliced Atlas Creation").All()
	require.Len(t, warnings, 1)
	require.Equal(t, int64(2), warnings[0].ContextMap()["failures"])
	require.Equal(t, 2, recorder["FULLY_SLICED"])
}
