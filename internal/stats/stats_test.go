package stats

import (
	"testing"

	"github.com/go-sif/atlasgen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ atlasgen.RuntimeStatistics = &RunStatistics{}

func TestRunStatistics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rs, err := NewRunStatistics(reg)
	require.Nil(t, err)
	require.EqualValues(t, 0, rs.GetRuntime())
	rs.Start()

	rs.StartStage("RAW")
	rs.EndStage("RAW", 3)
	rs.StartStage("LINE_SLICED")
	rs.EndStage("LINE_SLICED", 2)
	rs.EvictionFailed("LINE_SLICED")
	rs.Finish()

	require.Equal(t, map[string]int64{"RAW": 3, "LINE_SLICED": 2}, rs.GetEntriesPersisted())
	require.Equal(t, map[string]int64{"LINE_SLICED": 1}, rs.GetEvictionFailures())
	require.Len(t, rs.GetStageRuntimes(), 2)
	require.Equal(t, rs.GetRuntime(), rs.GetRuntime())
	require.False(t, rs.GetStartTime().IsZero())

	require.Equal(t, float64(3), testutil.ToFloat64(rs.persistedCounter.WithLabelValues("RAW")))
	require.Equal(t, float64(1), testutil.ToFloat64(rs.evictionCounter.WithLabelValues("LINE_SLICED")))
	require.Equal(t, 2, testutil.CollectAndCount(rs.stageDuration))
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRunStatistics(reg)
	require.Nil(t, err)
	_, err = NewRunStatistics(reg)
	require.NotNil(t, err)
}

func TestUnregistered(t *testing.T) {
	rs, err := NewRunStatistics(nil)
	require.Nil(t, err)
	rs.EvictionFailed("RAW")
	require.Equal(t, int64(1), rs.GetEvictionFailures()["RAW"])
}
