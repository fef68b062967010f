// Package pipeline orchestrates the stages of atlas generation: it plans one task per country
// and shard, runs each stage over the output of the previous one, persists every stage, and
// releases in-memory stage results once no later stage needs them.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/atlas"
	"github.com/go-sif/atlasgen/boundary"
	"github.com/go-sif/atlasgen/datasource/parser/jsonl"
	"github.com/go-sif/atlasgen/filter"
	"github.com/go-sif/atlasgen/geometry"
	"github.com/go-sif/atlasgen/internal/collection"
	"github.com/go-sif/atlasgen/internal/pcache"
	"github.com/go-sif/atlasgen/internal/stats"
	"github.com/go-sif/atlasgen/internal/tracing"
	"github.com/go-sif/atlasgen/persistence"
	"github.com/go-sif/atlasgen/sharding"
	"github.com/go-sif/atlasgen/storage"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Collaborators are the services a Generator relies on. Every field is optional.
type Collaborators struct {
	Engine    geometry.Engine       // defaults to the reference engine
	Opener    storage.Opener        // defaults to storage.OpenLocation
	Parser    *jsonl.Parser         // parses raw extracts
	Retention pcache.RetentionStore // retains stage results, defaults to an in-memory LRU
	Workers   int                   // partitions computed concurrently, defaults to the number of CPUs
	Logger    *zap.Logger
	Tracer    trace.Tracer
	Stats     *stats.RunStatistics
	Status    StatusReporter
}

// Generator runs a generation job
type Generator struct {
	params    Parameters
	engine    geometry.Engine
	opener    storage.Opener
	parser    *jsonl.Parser
	retention pcache.RetentionStore
	workers   int
	logger    *zap.Logger
	tracer    trace.Tracer
	stats     *stats.RunStatistics
	status    StatusReporter
}

// NewGenerator produces a Generator for a job
func NewGenerator(params Parameters, collab Collaborators) (*Generator, error) {
	g := &Generator{
		params:    params,
		engine:    collab.Engine,
		opener:    collab.Opener,
		parser:    collab.Parser,
		retention: collab.Retention,
		workers:   collab.Workers,
		logger:    collab.Logger,
		tracer:    collab.Tracer,
		stats:     collab.Stats,
		status:    collab.Status,
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.engine == nil {
		g.engine = geometry.NewReference(g.logger)
	}
	if g.opener == nil {
		g.opener = storage.OpenLocation
	}
	if g.parser == nil {
		g.parser = jsonl.CreateParser(&jsonl.ParserConf{})
	}
	if g.workers < 1 {
		g.workers = runtime.NumCPU()
	}
	if g.tracer == nil {
		tracer, _, err := tracing.NewTracer(tracing.Config{})
		if err != nil {
			return nil, err
		}
		g.tracer = tracer
	}
	if g.stats == nil {
		rs, err := stats.NewRunStatistics(nil)
		if err != nil {
			return nil, err
		}
		g.stats = rs
	}
	if g.status == nil {
		g.status = noStatus{}
	}
	return g, nil
}

// Statistics returns the runtime statistics of the job
func (g *Generator) Statistics() atlasgen.RuntimeStatistics {
	return g.stats
}

// Run validates the job, then runs every stage. Configuration errors are returned before the
// output is touched.
func (g *Generator) Run(ctx context.Context) error {
	g.stats.Start()
	defer g.stats.Finish()
	p := &g.params
	if err := p.Validate(); err != nil {
		return err
	}
	taggableFilter, err := TaggableFilterFrom(ctx, g.opener, p.ShouldIncludeFilteredOutputConfiguration)
	if err != nil {
		return err
	}
	configuredFilter, err := ConfiguredFilterFrom(ctx, g.opener, p.ConfiguredFilterOutput, p.ConfiguredFilterName)
	if err != nil {
		return err
	}

	atlasSharding, err := g.sharding(ctx, p.Sharding)
	if err != nil {
		return err
	}
	pbfSharding, err := g.sharding(ctx, p.PBFSharding)
	if err != nil {
		g.logger.Warn("PBF Sharding unavailable, defaulting to atlas sharding.", zap.Error(err))
		pbfSharding = atlasSharding
	}
	boundaries, err := g.boundaries(ctx)
	if err != nil {
		return err
	}
	loadingOptions, err := ExtractLoadingOptions(ctx, g.opener, p)
	if err != nil {
		return err
	}

	timer := time.Now()
	tasks := GenerateTasks(g.logger.Named("planner"), p.Countries, boundary.NewShardDirectory(boundaries, atlasSharding))
	g.logger.Debug(fmt.Sprintf("Generated %d tasks in %s.", len(tasks), time.Since(timer)))

	output, err := g.opener(ctx, p.Output)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := g.clean(ctx, output); err != nil {
		return err
	}
	pbfs, err := g.opener(ctx, p.PBFPath)
	if err != nil {
		return err
	}
	defer pbfs.Close()

	sc, err := collection.NewContext(collection.Options{Workers: g.workers, Store: g.retention, Logger: g.logger})
	if err != nil {
		return err
	}
	defer sc.Close()
	bc, err := NewBroadcastContext(sc, boundaries, loadingOptions, atlasSharding)
	if err != nil {
		return err
	}
	j := &job{
		Generator: g,
		sc:        sc,
		bc:        bc,
		tasks:     tasks,
		output:    output,
		pbf: geometry.PBFContext{
			Store:    pbfs,
			Sharding: pbfSharding,
			Scheme:   persistence.Scheme(p.PBFScheme),
			Parser:   g.parser,
		},
		taggableFilter:   taggableFilter,
		configuredFilter: configuredFilter,
	}
	return j.run(ctx, boundaries)
}

// sharding resolves a sharding spec, reading it from the raw input root when it is empty
func (g *Generator) sharding(ctx context.Context, spec string) (atlasgen.Sharding, error) {
	if len(spec) == 0 {
		location := storage.Join(g.params.PBFPath, ShardingFile)
		data, err := storage.ReadFile(ctx, g.opener, location)
		if err != nil {
			return nil, fmt.Errorf("no sharding given, and none found at %s: %w", location, err)
		}
		spec = strings.TrimSpace(string(data))
	}
	return sharding.ForString(ctx, spec, g.opener)
}

func (g *Generator) boundaries(ctx context.Context) (*boundary.CountryBoundaryMap, error) {
	p := &g.params
	location := p.CountryShapes
	if len(location) == 0 {
		location = storage.Join(p.PBFPath, BoundariesFile)
	}
	boundaries, err := boundary.Load(ctx, g.opener, location)
	if err != nil {
		return nil, fmt.Errorf("unable to load boundaries from %s: %w", location, err)
	}
	alwaysSlice, err := TaggableFilterFrom(ctx, g.opener, p.ShouldAlwaysSliceConfiguration)
	if err != nil {
		return nil, err
	}
	if !boundaries.HasGridIndex() {
		g.logger.Warn(fmt.Sprintf("Given country boundary file didn't have grid index. Initializing grid index for %v.", p.Countries))
		boundaries.InitializeGridIndex(p.Countries)
	}
	boundaries.SetShouldAlwaysSlicePredicate(alwaysSlice)
	return boundaries, nil
}

// clean removes the output of every stage of a previous job at the same location
func (g *Generator) clean(ctx context.Context, output storage.Store) error {
	folders := []string{LineDelimitedGeoJSONFolder}
	for _, group := range JobGroups() {
		folders = append(folders, group.CacheFolder())
	}
	for _, folder := range folders {
		if err := output.RemoveAll(ctx, folder); err != nil {
			return fmt.Errorf("unable to clean %s: %w", folder, err)
		}
	}
	return nil
}

// job holds the state of a single Run
type job struct {
	*Generator
	sc               *collection.Context
	bc               *BroadcastContext
	tasks            []atlasgen.GenerationTask
	output           storage.Store
	pbf              geometry.PBFContext
	taggableFilter   atlasgen.TaggablePredicate
	configuredFilter *filter.ConfiguredFilter
}

// enabled returns false for the optional stages this job does not run
func (j *job) enabled(group JobGroup) bool {
	switch group {
	case Deltas:
		return len(j.params.PreviousOutputForDelta) > 0
	case TaggableFiltered:
		return len(j.params.ShouldIncludeFilteredOutputConfiguration) > 0
	case ConfiguredFiltered:
		return j.configuredFilter != nil
	default:
		return true
	}
}

func (j *job) dependents(group JobGroup) []JobGroup {
	var dependents []JobGroup
	for _, dependent := range group.Dependents() {
		if j.enabled(dependent) {
			dependents = append(dependents, dependent)
		}
	}
	return dependents
}

func (j *job) sideInputs(group JobGroup, layout persistence.Layout) []geometry.AtlasSource {
	var sources []geometry.AtlasSource
	for _, input := range group.SideInputs() {
		sources = append(sources, persistence.NewReader[atlasgen.Atlas](j.output, input.CacheFolder(), layout, atlas.Format{}))
	}
	return sources
}

func (j *job) run(ctx context.Context, boundaries *boundary.CountryBoundaryMap) error {
	p := &j.params
	engine := j.engine
	codec := atlas.Format{}
	layout := persistence.Layout{Scheme: persistence.Scheme(p.AtlasScheme), Sharding: j.bc.Sharding.Value()}
	lifecycle := NewCacheLifecycleManager(j.logger, j.stats)
	r := &stageRunner{
		sc:        j.sc,
		store:     j.output,
		layout:    layout,
		lifecycle: lifecycle,
		tracer:    j.tracer,
		stats:     j.stats,
		status:    j.status,
		logger:    j.logger,
	}
	last := Raw
	defer func() {
		lifecycle.Close(context.WithoutCancel(ctx), last)
	}()
	retainAndPersist := func(group JobGroup, pairs *collection.Pairs[atlasgen.Atlas]) error {
		if err := lifecycle.Retain(group, pairs, j.dependents(group)...); err != nil {
			return err
		}
		last = group
		_, err := persistStage[atlasgen.Atlas](ctx, r, group, pairs, codec)
		return err
	}

	taskIndex := make(map[string]atlasgen.GenerationTask, len(j.tasks))
	taskPairs := make([]collection.Pair[atlasgen.GenerationTask], 0, len(j.tasks))
	for _, task := range j.tasks {
		taskIndex[task.Key()] = task
		taskPairs = append(taskPairs, collection.Pair[atlasgen.GenerationTask]{Key: task.Key(), Value: task})
	}
	taskFor := func(key string) (atlasgen.GenerationTask, error) {
		task, ok := taskIndex[key]
		if !ok {
			return task, fmt.Errorf("no task generated for %s", key)
		}
		return task, nil
	}

	// raw load
	raw := dropAbsent(Raw, collection.MapValues(collection.Parallelize(j.sc, "tasks", taskPairs, len(taskPairs), nil), Raw.String(), codec,
		func(key string, task atlasgen.GenerationTask) (atlasgen.Atlas, error) {
			return engine.LoadRaw(ctx, task, j.pbf, j.bc.Boundaries.Value())
		}))
	if err := retainAndPersist(Raw, raw); err != nil {
		return err
	}

	// boundary slicing
	lineSliced := mapAtlases(LineSliced, raw, codec, func(key string, a atlasgen.Atlas) (atlasgen.Atlas, error) {
		return engine.SliceLines(ctx, atlasgen.CountryFromKey(key), a, j.bc.Boundaries.Value())
	})
	if err := retainAndPersist(LineSliced, lineSliced); err != nil {
		return err
	}
	slicingFilter, err := filter.SlicingFilter(j.bc.LoadingOptions.Value())
	if err != nil {
		return err
	}
	lineSlicedSub := filterAtlases(LineSlicedSub, lineSliced, codec, engine, slicingFilter, atlasgen.SilkCut)
	if err := retainAndPersist(LineSlicedSub, lineSlicedSub); err != nil {
		return err
	}

	// relation slicing, reading back the durable line sliced outputs of neighboring shards
	sliced := j.sideInputs(FullySliced, layout)
	fullySliced := mapAtlases(FullySliced, lineSliced, codec, func(key string, a atlasgen.Atlas) (atlasgen.Atlas, error) {
		task, err := taskFor(key)
		if err != nil {
			return nil, err
		}
		return engine.SliceRelations(ctx, a, geometry.RelationSlicingInput{
			Task:          task,
			Sharding:      j.bc.Sharding.Value(),
			Boundaries:    j.bc.Boundaries.Value(),
			LineSlicedSub: sliced[0],
			LineSliced:    sliced[1],
		})
	})
	if err := retainAndPersist(FullySliced, fullySliced); err != nil {
		return err
	}
	edgeFilter, err := filter.EdgeFilter(j.bc.LoadingOptions.Value())
	if err != nil {
		return err
	}
	edgeSub := filterAtlases(EdgeSub, fullySliced, codec, engine, edgeFilter, atlasgen.SilkCut)
	if err := retainAndPersist(EdgeSub, edgeSub); err != nil {
		return err
	}

	// way sectioning, reading back the durable edges and fully sliced outputs of neighboring shards
	sectioning := j.sideInputs(WaySectioned, layout)
	waySectioned := mapAtlases(WaySectioned, fullySliced, codec, func(key string, a atlasgen.Atlas) (atlasgen.Atlas, error) {
		task, err := taskFor(key)
		if err != nil {
			return nil, err
		}
		return engine.Section(ctx, a, geometry.SectioningInput{
			Task:        task,
			Sharding:    j.bc.Sharding.Value(),
			Options:     j.bc.LoadingOptions.Value(),
			EdgeSub:     sectioning[0],
			FullySliced: sectioning[1],
		})
	})
	if err := retainAndPersist(WaySectioned, waySectioned); err != nil {
		return err
	}
	if p.CopyShardingAndBoundaries {
		if err := j.copyShardingAndBoundaries(ctx, boundaries); err != nil {
			return err
		}
	}
	if p.LineDelimitedGeojsonOutput {
		if _, err := save[atlasgen.Atlas](ctx, r, LineDelimitedGeoJSONFolder, "Line Delimited GeoJSON Export", LineDelimitedGeoJSONFolder, waySectioned, atlas.GeoJSONEncoder{}); err != nil {
			return err
		}
		r.status.StagePersisted(LineDelimitedGeoJSONFolder)
		j.logger.Info("\n\n********** SAVED THE LINE DELIMITED GEOJSON ATLAS **********\n")
	}

	// statistics
	statisticsCodec := atlas.StatisticsFormat{}
	shardStats := shardStatistics(waySectioned, engine, statisticsCodec)
	if err := lifecycle.Retain(ShardStatistics, shardStats, j.dependents(ShardStatistics)...); err != nil {
		return err
	}
	last = ShardStatistics
	if _, err := persistStage[atlasgen.Statistics](ctx, r, ShardStatistics, shardStats, statisticsCodec); err != nil {
		return err
	}
	last = CountryStatistics
	if _, err := persistStage[atlasgen.Statistics](ctx, r, CountryStatistics, countryStatistics(shardStats), statisticsCodec); err != nil {
		return err
	}

	// optional branches of the way sectioned output
	if j.enabled(Deltas) {
		previous, err := j.opener(ctx, p.PreviousOutputForDelta)
		if err != nil {
			return err
		}
		defer previous.Close()
		reader := persistence.NewReader[atlasgen.Atlas](previous, WaySectioned.CacheFolder(), layout, codec)
		last = Deltas
		if _, err := persistStage[atlasgen.Delta](ctx, r, Deltas, computeDeltas(ctx, waySectioned, engine, reader), atlas.DeltaFormat{}); err != nil {
			return err
		}
	}
	if j.enabled(TaggableFiltered) {
		last = TaggableFiltered
		filtered := filterAtlases(TaggableFiltered, waySectioned, nil, engine, j.taggableFilter, atlasgen.SoftCut)
		if _, err := persistStage[atlasgen.Atlas](ctx, r, TaggableFiltered, filtered, codec); err != nil {
			return err
		}
	}
	if j.enabled(ConfiguredFiltered) {
		last = ConfiguredFiltered
		filtered := filterAtlases(ConfiguredFiltered, waySectioned, nil, engine, j.configuredFilter.Predicate(), atlasgen.SoftCut)
		if _, err := persistStage[atlasgen.Atlas](ctx, r, ConfiguredFiltered, filtered, codec); err != nil {
			return err
		}
	}
	return nil
}

// copyShardingAndBoundaries places the sharding and boundaries next to the way sectioned output,
// so that it can be read without the raw input
func (j *job) copyShardingAndBoundaries(ctx context.Context, boundaries *boundary.CountryBoundaryMap) error {
	folder := WaySectioned.CacheFolder()
	if err := storage.WriteFile(ctx, j.output, path.Join(folder, ShardingFile), []byte(j.bc.Sharding.Value().Name()+"\n")); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := boundaries.Write(&buf); err != nil {
		return err
	}
	return storage.WriteFile(ctx, j.output, path.Join(folder, BoundariesFile), buf.Bytes())
}
