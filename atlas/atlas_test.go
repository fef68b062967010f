package atlas

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/go-sif/atlasgen"
	"github.com/stretchr/testify/require"
)

func sample() *Atlas {
	return New("BLZ_2-0-1",
		&Entity{ID: 1, Type: Point, Tags: map[string]string{"amenity": "school"}, Nodes: []Node{{ID: 1, Lon: -95, Lat: 15}}},
		&Entity{ID: 2, Type: Line, Tags: map[string]string{"highway": "primary"}, Nodes: []Node{{ID: 2, Lon: -95, Lat: 15}, {ID: 3, Lon: -94, Lat: 16}}},
		&Entity{ID: 3, Type: Area, Tags: map[string]string{"natural": "water"}, Nodes: []Node{{ID: 4, Lon: -96, Lat: 14}, {ID: 5, Lon: -95, Lat: 14}, {ID: 6, Lon: -95, Lat: 13}}},
		&Entity{ID: 4, Type: Relation, Tags: map[string]string{"type": "route"}, Members: []int64{2}},
		&Entity{ID: 5, Type: Relation, Tags: map[string]string{"type": "multipolygon", "natural": "water"}, Members: []int64{3, 6}},
		&Entity{ID: 6, Type: Line, Nodes: []Node{{ID: 7, Lon: -97, Lat: 14}, {ID: 8, Lon: -96, Lat: 14}}},
	)
}

func tagged(key string) atlasgen.TaggablePredicate {
	return func(t atlasgen.Taggable) bool {
		_, ok := t.Tag(key)
		return ok
	}
}

func ids(a *Atlas) []int64 {
	var result []int64
	for _, e := range a.Entities() {
		result = append(result, e.ID)
	}
	return result
}

func TestAtlas(t *testing.T) {
	a := sample()
	require.Equal(t, "BLZ_2-0-1", a.Name())
	require.Equal(t, 6, a.Len())
	e, ok := a.Entity(3)
	require.True(t, ok)
	require.Equal(t, Area, e.Type)
	bound := a.Bound()
	require.Equal(t, -97.0, bound.Min[0])
	require.Equal(t, 16.0, bound.Max[1])
	require.True(t, a.Equal(sample()))
	require.False(t, a.Equal(New("other")))
	require.Equal(t, "renamed", a.WithName("renamed").Name())
}

func TestSubAtlas(t *testing.T) {
	a := sample()
	require.Equal(t, []int64{3, 5}, ids(a.SubAtlas(tagged("natural"), atlasgen.HardCut)))
	require.Equal(t, []int64{3, 5, 6}, ids(a.SubAtlas(tagged("natural"), atlasgen.SilkCut)))
	require.Equal(t, []int64{2}, ids(a.SubAtlas(tagged("highway"), atlasgen.SilkCut)))
	require.Equal(t, []int64{2, 4}, ids(a.SubAtlas(tagged("highway"), atlasgen.SoftCut)))
	require.Nil(t, a.SubAtlas(atlasgen.Nothing, atlasgen.SoftCut))
	require.Equal(t, 6, a.SubAtlas(atlasgen.Everything, atlasgen.HardCut).Len())
}

func TestStatistics(t *testing.T) {
	stats := ComputeStatistics(sample())
	require.Equal(t, int64(6), stats.Count(EntitiesCount))
	require.Equal(t, int64(2), stats.TypeCount(Line))
	require.Equal(t, int64(2), stats.TagCount("natural"))

	other := ComputeStatistics(New("BLZ_2-1-1", &Entity{ID: 9, Type: Point, Tags: map[string]string{"natural": "peak"}}))
	left, err := stats.Merge(other)
	require.Nil(t, err)
	right, err := other.Merge(stats)
	require.Nil(t, err)
	require.Equal(t, left, right)
	require.Equal(t, int64(3), left.(*Statistics).TagCount("natural"))
	// operands are untouched
	require.Equal(t, int64(2), stats.TagCount("natural"))
}

func TestDiff(t *testing.T) {
	require.True(t, Diff(sample(), sample()).Empty())

	changed := sample().Entities()
	updated := changed[0].Clone()
	updated.Tags["amenity"] = "college"
	after := New("BLZ_2-0-1", append([]*Entity{updated, {ID: 10, Type: Point, Nodes: []Node{{ID: 10}}}}, changed[1:5]...)...)
	delta := Diff(sample(), after)
	require.False(t, delta.Empty())
	require.Equal(t, "BLZ_2-0-1", delta.Name())
	require.Equal(t, []int64{10}, delta.Added)
	require.Equal(t, []int64{6}, delta.Removed)
	require.Equal(t, []int64{1}, delta.Changed)
}

func TestFormats(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, Format{}.Encode(&buf, sample()))
	decoded, err := Format{}.Decode(&buf)
	require.Nil(t, err)
	require.True(t, sample().Equal(decoded.(*Atlas)))
	require.Equal(t, "BLZ_2-0-1", decoded.Name())

	buf.Reset()
	stats := ComputeStatistics(sample())
	require.Nil(t, StatisticsFormat{}.Encode(&buf, stats))
	decodedStats, err := StatisticsFormat{}.Decode(&buf)
	require.Nil(t, err)
	require.Equal(t, stats, decodedStats)

	buf.Reset()
	delta := &Delta{AtlasName: "x", Added: []int64{1}}
	require.Nil(t, DeltaFormat{}.Encode(&buf, delta))
	decodedDelta, err := DeltaFormat{}.Decode(&buf)
	require.Nil(t, err)
	require.Equal(t, delta, decodedDelta)
}

func TestDeltasShareAFile(t *testing.T) {
	var buf bytes.Buffer
	first := &Delta{AtlasName: "BLZ_2-0-1", Added: []int64{1}}
	second := &Delta{AtlasName: "BLZ_2-0-1", Removed: []int64{2}}
	require.Nil(t, DeltaFormat{}.Encode(&buf, first))
	require.Nil(t, DeltaFormat{}.Encode(&buf, second))
	deltas, err := DecodeDeltas(&buf)
	require.Nil(t, err)
	require.Equal(t, []*Delta{first, second}, deltas)
}

func TestGeoJSONEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, GeoJSONEncoder{}.Encode(&buf, sample()))
	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		lines++
		require.Contains(t, scanner.Text(), `"type":"Feature"`)
	}
	// relations are skipped
	require.Equal(t, 4, lines)
}
