package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobGroupsAreComplete(t *testing.T) {
	groups := JobGroups()
	require.Len(t, groups, 11)
	folders := make(map[string]bool)
	for i, group := range groups {
		require.Equal(t, i, group.ID())
		require.NotEmpty(t, group.String())
		require.NotEmpty(t, group.Description())
		require.False(t, folders[group.CacheFolder()], "duplicate folder %s", group.CacheFolder())
		folders[group.CacheFolder()] = true
		for _, dependent := range group.Dependents() {
			require.Greater(t, dependent.ID(), group.ID())
		}
		for _, input := range group.SideInputs() {
			require.Less(t, input.ID(), group.ID())
		}
	}
	require.False(t, folders[LineDelimitedGeoJSONFolder])
	require.Equal(t, CountryKey, CountryStatistics.KeyType())
	require.Equal(t, DeltaOutput, Deltas.OutputFormat())
	require.Equal(t, "WAY_SECTIONED", WaySectioned.String())
	require.Equal(t, []JobGroup{LineSlicedSub, LineSliced}, FullySliced.SideInputs())
	require.Equal(t, []JobGroup{EdgeSub, FullySliced}, WaySectioned.SideInputs())
}

func TestUnknownJobGroupPanics(t *testing.T) {
	require.Panics(t, func() { _ = JobGroup(42).String() })
}
