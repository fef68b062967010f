package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/atlas"
	"github.com/go-sif/atlasgen/boundary"
	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/geometry"
	"github.com/go-sif/atlasgen/internal/pcache"
	"github.com/go-sif/atlasgen/persistence"
	"github.com/go-sif/atlasgen/pipeline"
	"github.com/go-sif/atlasgen/sharding"
	atlastesting "github.com/go-sif/atlasgen/testing"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func layout(t *testing.T) persistence.Layout {
	slippy, err := sharding.NewSlippySharding(2)
	require.Nil(t, err)
	return persistence.Layout{Scheme: persistence.Scheme(pipeline.DefaultAtlasScheme), Sharding: slippy}
}

// readTree returns the contents of every file beneath root, by path relative to root
func readTree(t *testing.T, fs afero.Fs, root string) map[string]string {
	files := make(map[string]string)
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if os.IsNotExist(err) {
			return nil
		} else if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		files[strings.TrimPrefix(p, root+"/")] = string(data)
		return nil
	})
	require.Nil(t, err)
	return files
}

func runFixture(t *testing.T, fixture *atlastesting.Fixture, params pipeline.Parameters, collab pipeline.Collaborators) *pipeline.Generator {
	generator, err := fixture.LocalRun(context.Background(), params, collab)
	require.Nil(t, err)
	return generator
}

func TestGenerateTasks(t *testing.T) {
	boundaries, err := boundary.Read([]byte(atlastesting.BelizeBoundaries))
	require.Nil(t, err)
	slippy, err := sharding.NewSlippySharding(2)
	require.Nil(t, err)
	directory := boundary.NewShardDirectory(boundaries, slippy)
	core, logs := observer.New(zap.WarnLevel)

	tasks := pipeline.GenerateTasks(zap.New(core), []string{"BLZ", "ATA"}, directory)
	require.Len(t, tasks, 3)
	var keys []string
	for _, task := range tasks {
		keys = append(keys, task.Key())
		require.Equal(t, "BLZ", task.Country)
		// every task knows every shard of its country, including its own
		require.Equal(t, directory.ShardsFor("BLZ").Names(), task.Siblings.Names())
		require.True(t, task.Siblings.Contains(task.Shard))
	}
	require.ElementsMatch(t, []string{"BLZ_2-0-1", "BLZ_2-1-1", "BLZ_2-2-1"}, keys)
	require.Equal(t, 1, logs.FilterMessage("No shards were found for ATA. Skipping task generation.").Len())

	require.Empty(t, pipeline.GenerateTasks(nil, nil, directory))

	// a repeated country is planned once, in first-seen order
	tasks = pipeline.GenerateTasks(nil, []string{"BLZ", "BLZ"}, directory)
	require.Len(t, tasks, 3)
	seen := make(map[string]struct{})
	for _, task := range tasks {
		_, duplicate := seen[task.Key()]
		require.False(t, duplicate, task.Key())
		seen[task.Key()] = struct{}{}
	}
}

func TestValidateDeduplicatesCountries(t *testing.T) {
	params := pipeline.Parameters{Countries: []string{" BLZ", "GTM", "BLZ ", "", "GTM"}, PBFPath: "/pbfs", Output: "/output"}
	require.Nil(t, params.Validate())
	require.Equal(t, []string{"BLZ", "GTM"}, params.Countries)
}

func TestRepeatedCountryMatchesSingleCountry(t *testing.T) {
	ctx := context.Background()
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	runFixture(t, fixture, fixture.Parameters("/once"), pipeline.Collaborators{})
	params := fixture.Parameters("/twice")
	params.Countries = []string{"BLZ", "BLZ"}
	generator := runFixture(t, fixture, params, pipeline.Collaborators{Workers: 2})

	l := layout(t)
	read := func(root string) atlasgen.Statistics {
		output, err := fixture.Opener(ctx, root)
		require.Nil(t, err)
		s, err := persistence.NewReader[atlasgen.Statistics](output, pipeline.CountryStatistics.CacheFolder(), l, atlas.StatisticsFormat{}).Read(ctx, "BLZ")
		require.Nil(t, err)
		return s
	}
	require.Equal(t, read("/once"), read("/twice"))
	require.Equal(t, int64(3), generator.Statistics().GetEntriesPersisted()[pipeline.Raw.String()])
}

func TestStatisticsMergeIsOrderIndependent(t *testing.T) {
	shards := []atlasgen.Statistics{
		&atlas.Statistics{Counts: map[string]int64{"entities": 3, "type:line": 2, "tag:highway": 2}},
		&atlas.Statistics{Counts: map[string]int64{"entities": 1, "type:point": 1}},
		&atlas.Statistics{Counts: map[string]int64{"entities": 4, "type:line": 1, "tag:waterway": 1}},
	}
	reduce := func(order []int) atlasgen.Statistics {
		acc := pipeline.NamedStatistics{CountryName: "BLZ", Statistics: shards[order[0]]}
		for _, i := range order[1:] {
			var err error
			acc, err = acc.Merge(pipeline.NamedStatistics{CountryName: "BLZ", Statistics: shards[i]})
			require.Nil(t, err)
		}
		return acc.Statistics
	}
	expected := reduce([]int{0, 1, 2})
	for _, order := range [][]int{{0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}} {
		require.Equal(t, expected, reduce(order))
	}
	require.Equal(t, int64(8), expected.(*atlas.Statistics).Count(atlas.EntitiesCount))
}

type foreignStatistics struct{}

func (foreignStatistics) Merge(other atlasgen.Statistics) (atlasgen.Statistics, error) {
	return nil, fmt.Errorf("cannot merge")
}

func TestStatisticsMergeErrorNamesCountry(t *testing.T) {
	_, err := pipeline.NamedStatistics{CountryName: "BLZ", Statistics: foreignStatistics{}}.Merge(
		pipeline.NamedStatistics{CountryName: "BLZ", Statistics: &atlas.Statistics{}})
	require.NotNil(t, err)
	var mergeErr errors.StatisticsMergeError
	require.ErrorAs(t, err, &mergeErr)
	require.Equal(t, "BLZ", mergeErr.Country)
}

func TestBelizeScenario(t *testing.T) {
	ctx := context.Background()
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	generator := runFixture(t, fixture, fixture.Parameters(atlastesting.OutputPath), pipeline.Collaborators{Workers: 2})

	output, err := fixture.Opener(ctx, atlastesting.OutputPath)
	require.Nil(t, err)
	l := layout(t)
	for _, group := range []pipeline.JobGroup{pipeline.Raw, pipeline.LineSliced, pipeline.FullySliced, pipeline.WaySectioned} {
		keys, err := persistence.NewReader[atlasgen.Atlas](output, group.CacheFolder(), l, atlas.Format{}).Keys(ctx)
		require.Nil(t, err)
		require.Equal(t, []string{"BLZ_2-0-1", "BLZ_2-1-1", "BLZ_2-2-1"}, keys, group.String())
	}
	// the easternmost shard has no edges
	edgeKeys, err := persistence.NewReader[atlasgen.Atlas](output, pipeline.EdgeSub.CacheFolder(), l, atlas.Format{}).Keys(ctx)
	require.Nil(t, err)
	require.Equal(t, []string{"BLZ_2-0-1", "BLZ_2-1-1"}, edgeKeys)

	shardReader := persistence.NewReader[atlasgen.Statistics](output, pipeline.ShardStatistics.CacheFolder(), l, atlas.StatisticsFormat{})
	shardKeys, err := shardReader.Keys(ctx)
	require.Nil(t, err)
	require.Len(t, shardKeys, 3)
	var merged atlasgen.Statistics = &atlas.Statistics{Counts: map[string]int64{}}
	for _, key := range shardKeys {
		s, err := shardReader.Read(ctx, key)
		require.Nil(t, err)
		merged, err = merged.Merge(s)
		require.Nil(t, err)
	}

	countryReader := persistence.NewReader[atlasgen.Statistics](output, pipeline.CountryStatistics.CacheFolder(), l, atlas.StatisticsFormat{})
	countryKeys, err := countryReader.Keys(ctx)
	require.Nil(t, err)
	require.Equal(t, []string{"BLZ"}, countryKeys)
	country, err := countryReader.Read(ctx, "BLZ")
	require.Nil(t, err)
	require.Equal(t, merged, country)

	// the bus route was completed from its neighbor, and its primary highway sectioned
	sectioned, err := persistence.NewReader[atlasgen.Atlas](output, pipeline.WaySectioned.CacheFolder(), l, atlas.Format{}).Read(ctx, "BLZ_2-0-1")
	require.Nil(t, err)
	route, ok := sectioned.(*atlas.Atlas).Entity(5)
	require.True(t, ok)
	require.Equal(t, []int64{2001, 2002, 6}, route.Members)

	// optional outputs are absent
	files := readTree(t, fixture.FS, atlastesting.OutputPath)
	for p := range files {
		for _, folder := range []string{pipeline.Deltas.CacheFolder(), pipeline.TaggableFiltered.CacheFolder(), pipeline.ConfiguredFiltered.CacheFolder(), pipeline.LineDelimitedGeoJSONFolder} {
			require.False(t, strings.HasPrefix(p, folder+"/"), p)
		}
	}

	rs := generator.Statistics()
	require.Equal(t, int64(3), rs.GetEntriesPersisted()[pipeline.Raw.String()])
	require.Equal(t, int64(1), rs.GetEntriesPersisted()[pipeline.CountryStatistics.String()])
	require.Empty(t, rs.GetEvictionFailures())
}

func TestIdenticalPreviousOutputHasNoDeltas(t *testing.T) {
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	runFixture(t, fixture, fixture.Parameters("/first"), pipeline.Collaborators{})

	params := fixture.Parameters("/second")
	params.PreviousOutputForDelta = "/first"
	generator := runFixture(t, fixture, params, pipeline.Collaborators{})
	require.Empty(t, readTree(t, fixture.FS, "/second/"+pipeline.Deltas.CacheFolder()))
	require.Equal(t, int64(0), generator.Statistics().GetEntriesPersisted()[pipeline.Deltas.String()])

	// a changed extract produces a delta for its shard only
	require.Nil(t, fixture.WriteFile(atlastesting.PBFPath+"/2/2-2-1.jsonl",
		`{"id": 8, "type": "point", "tags": {"amenity": "college"}, "lon": 5, "lat": 15}`+"\n"))
	params = fixture.Parameters("/third")
	params.PreviousOutputForDelta = "/first"
	runFixture(t, fixture, params, pipeline.Collaborators{})
	deltas := readTree(t, fixture.FS, "/third/"+pipeline.Deltas.CacheFolder())
	require.Len(t, deltas, 1)
	require.Contains(t, deltas, "BLZ/2/BLZ_2-2-1.delta.json")
}

// splittingEngine reports additions and everything else as separate Deltas
type splittingEngine struct {
	*geometry.Reference
}

func (e splittingEngine) Delta(before atlasgen.Atlas, after atlasgen.Atlas) ([]atlasgen.Delta, error) {
	deltas, err := e.Reference.Delta(before, after)
	if err != nil {
		return nil, err
	}
	var split []atlasgen.Delta
	for _, d := range deltas {
		full := d.(*atlas.Delta)
		split = append(split,
			&atlas.Delta{AtlasName: full.AtlasName, Added: full.Added},
			&atlas.Delta{AtlasName: full.AtlasName, Removed: full.Removed, Changed: full.Changed},
		)
	}
	return split, nil
}

func TestEveryDeltaOfAKeyIsPersisted(t *testing.T) {
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	runFixture(t, fixture, fixture.Parameters("/first"), pipeline.Collaborators{})
	college := `{"id": 8, "type": "point", "tags": {"amenity": "college"}, "lon": 5, "lat": 15}`
	library := `{"id": 10, "type": "point", "tags": {"amenity": "library"}, "lon": 5, "lat": 15}`
	require.Nil(t, fixture.WriteFile(atlastesting.PBFPath+"/2/2-2-1.jsonl", college+"\n"+library+"\n"))
	params := fixture.Parameters("/second")
	params.PreviousOutputForDelta = "/first"
	engine := splittingEngine{Reference: geometry.NewReference(nil)}
	generator := runFixture(t, fixture, params, pipeline.Collaborators{Engine: engine})

	files := readTree(t, fixture.FS, "/second/"+pipeline.Deltas.CacheFolder())
	require.Len(t, files, 1)
	deltas, err := atlas.DecodeDeltas(strings.NewReader(files["BLZ/2/BLZ_2-2-1.delta.json"]))
	require.Nil(t, err)
	require.Len(t, deltas, 2)
	require.Equal(t, []int64{10}, deltas[0].Added)
	require.NotEmpty(t, deltas[1].Changed)
	require.Equal(t, int64(2), generator.Statistics().GetEntriesPersisted()[pipeline.Deltas.String()])
}

func TestConfiguredFilterRequiresNameAndLocation(t *testing.T) {
	ctx := context.Background()
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	marker := atlastesting.OutputPath + "/" + pipeline.Raw.CacheFolder() + "/marker"
	require.Nil(t, fixture.WriteFile(marker, "untouched"))

	params := fixture.Parameters(atlastesting.OutputPath)
	params.ConfiguredFilterOutput = "/filters.yaml"
	_, err = fixture.LocalRun(ctx, params, pipeline.Collaborators{})
	require.True(t, errors.IsConfiguration(err))
	require.Contains(t, err.Error(), "A filter name must be provided for configured filter output!")

	params = fixture.Parameters(atlastesting.OutputPath)
	params.ConfiguredFilterName = "water"
	_, err = fixture.LocalRun(ctx, params, pipeline.Collaborators{})
	require.True(t, errors.IsConfiguration(err))

	// no stage ran, so nothing was cleaned or written
	require.Equal(t, map[string]string{pipeline.Raw.CacheFolder() + "/marker": "untouched"}, readTree(t, fixture.FS, atlastesting.OutputPath))
}

func TestTaggableFilterConfiguration(t *testing.T) {
	ctx := context.Background()
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)

	// a configuration which cannot be read is fatal
	params := fixture.Parameters(atlastesting.OutputPath)
	params.ShouldIncludeFilteredOutputConfiguration = "/missing.json"
	_, err = fixture.LocalRun(ctx, params, pipeline.Collaborators{})
	require.NotNil(t, err)

	require.Nil(t, fixture.WriteFile("/schools.json", `{"filter": "amenity->school"}`))
	require.Nil(t, fixture.WriteFile("/filters.yaml", "filters:\n  rivers:\n    taggableFilter: waterway->river\n    description: rivers\n"))
	params.ShouldIncludeFilteredOutputConfiguration = "/schools.json"
	params.ConfiguredFilterOutput = "/filters.yaml"
	params.ConfiguredFilterName = "rivers"
	runFixture(t, fixture, params, pipeline.Collaborators{})

	taggable := readTree(t, fixture.FS, atlastesting.OutputPath+"/"+pipeline.TaggableFiltered.CacheFolder())
	require.Len(t, taggable, 2)
	require.Contains(t, taggable, "BLZ/2/BLZ_2-0-1.atlas")
	require.Contains(t, taggable, "BLZ/2/BLZ_2-2-1.atlas")
	configured := readTree(t, fixture.FS, atlastesting.OutputPath+"/"+pipeline.ConfiguredFiltered.CacheFolder())
	require.Len(t, configured, 1)
	require.Contains(t, configured, "BLZ/2/BLZ_2-2-1.atlas")
}

func TestLineDelimitedGeoJSONIsIndependentOfBranches(t *testing.T) {
	ctx := context.Background()
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	require.Nil(t, fixture.WriteFile("/schools.json", `{"filter": "amenity->school"}`))

	plain := fixture.Parameters("/plain")
	plain.LineDelimitedGeojsonOutput = true
	runFixture(t, fixture, plain, pipeline.Collaborators{})
	runFixture(t, fixture, fixture.Parameters("/previous"), pipeline.Collaborators{})
	branched := fixture.Parameters("/branched")
	branched.LineDelimitedGeojsonOutput = true
	branched.PreviousOutputForDelta = "/previous"
	branched.ShouldIncludeFilteredOutputConfiguration = "/schools.json"
	runFixture(t, fixture, branched, pipeline.Collaborators{})

	exported := readTree(t, fixture.FS, "/plain/"+pipeline.LineDelimitedGeoJSONFolder)
	require.Len(t, exported, 3)
	require.Equal(t, exported, readTree(t, fixture.FS, "/branched/"+pipeline.LineDelimitedGeoJSONFolder))

	// the export is the way sectioned output, re-encoded
	output, err := fixture.Opener(ctx, "/plain")
	require.Nil(t, err)
	l := layout(t)
	reader := persistence.NewReader[atlasgen.Atlas](output, pipeline.WaySectioned.CacheFolder(), l, atlas.Format{})
	keys, err := reader.Keys(ctx)
	require.Nil(t, err)
	for _, key := range keys {
		a, err := reader.Read(ctx, key)
		require.Nil(t, err)
		var buf bytes.Buffer
		require.Nil(t, atlas.GeoJSONEncoder{}.Encode(&buf, a))
		p, err := l.Path(key, atlas.GeoJSONEncoder{}.Extension())
		require.Nil(t, err)
		require.Equal(t, buf.String(), exported[p])
	}
}

// unavailableStore fails every operation, as a retention store which has gone away
type unavailableStore struct{}

var errUnavailable = fmt.Errorf("retention store unavailable")

func (unavailableStore) Put(ctx context.Context, collection string, part int, data []byte) error {
	return errUnavailable
}

func (unavailableStore) Get(ctx context.Context, collection string, part int) ([]byte, error) {
	return nil, errUnavailable
}

func (unavailableStore) Drop(ctx context.Context, collection string) error {
	return errUnavailable
}

func (unavailableStore) Close() error {
	return nil
}

var _ pcache.RetentionStore = unavailableStore{}

func TestEvictionFailureDoesNotChangeOutput(t *testing.T) {
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	runFixture(t, fixture, fixture.Parameters("/healthy"), pipeline.Collaborators{})

	core, logs := observer.New(zap.WarnLevel)
	generator := runFixture(t, fixture, fixture.Parameters("/unavailable"), pipeline.Collaborators{
		Retention: unavailableStore{},
		Logger:    zap.New(core),
	})
	require.Equal(t, readTree(t, fixture.FS, "/healthy"), readTree(t, fixture.FS, "/unavailable"))
	require.NotZero(t, logs.FilterMessage("Exception after task Line Sliced Atlas Creation").Len())
	require.NotEmpty(t, generator.Statistics().GetEvictionFailures())
}

func TestCopyShardingAndBoundaries(t *testing.T) {
	ctx := context.Background()
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	params := fixture.Parameters(atlastesting.OutputPath)
	params.CopyShardingAndBoundaries = true
	params.PBFSharding = "nonsense@1"
	core, logs := observer.New(zap.WarnLevel)
	runFixture(t, fixture, params, pipeline.Collaborators{Logger: zap.New(core)})
	require.Equal(t, 1, logs.FilterMessage("PBF Sharding unavailable, defaulting to atlas sharding.").Len())
	require.Equal(t, 1, logs.FilterMessage("Given country boundary file didn't have grid index. Initializing grid index for [BLZ].").Len())

	folder := path.Join(atlastesting.OutputPath, pipeline.WaySectioned.CacheFolder())
	data, err := afero.ReadFile(fixture.FS, path.Join(folder, pipeline.ShardingFile))
	require.Nil(t, err)
	require.Equal(t, "slippy@2\n", string(data))
	copied, err := boundary.Load(ctx, fixture.Opener, path.Join(folder, pipeline.BoundariesFile))
	require.Nil(t, err)
	require.Equal(t, []string{"BLZ"}, copied.Countries())
	require.True(t, copied.HasGridIndex())
}

func TestStageFailureIsFatal(t *testing.T) {
	fixture, err := atlastesting.NewBelizeFixture()
	require.Nil(t, err)
	require.Nil(t, fixture.WriteFile(atlastesting.PBFPath+"/2/2-1-1.jsonl", `{"id": 6, "type": "line"`+"\n"))
	_, err = fixture.LocalRun(context.Background(), fixture.Parameters(atlastesting.OutputPath), pipeline.Collaborators{})
	require.NotNil(t, err)
	var stageErr errors.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, pipeline.Raw.Description(), stageErr.Stage)
}
