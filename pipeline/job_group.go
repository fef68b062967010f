package pipeline

import "fmt"

// A JobGroup names one stage of the generation pipeline. The set of stages is closed.
type JobGroup int

// Stages of the pipeline, in execution order
const (
	Raw JobGroup = iota
	LineSliced
	LineSlicedSub
	FullySliced
	EdgeSub
	WaySectioned
	ShardStatistics
	CountryStatistics
	Deltas
	TaggableFiltered
	ConfiguredFiltered
)

// KeyType describes the keys of a stage's output
type KeyType string

// Key types
const (
	ShardKey   KeyType = "country_shard" // <country>_<shard>
	CountryKey KeyType = "country"       // <country>
)

// OutputFormat describes the values of a stage's output
type OutputFormat string

// Output formats
const (
	AtlasOutput      OutputFormat = "atlas"
	StatisticsOutput OutputFormat = "statistics"
	DeltaOutput      OutputFormat = "delta"
)

// LineDelimitedGeoJSONFolder holds the optional line-delimited geojson export
const LineDelimitedGeoJSONFolder = "ldgeojson"

type descriptor struct {
	name         string
	description  string
	cacheFolder  string
	keyType      KeyType
	outputFormat OutputFormat
	sideInputs   []JobGroup
	dependents   []JobGroup
}

// descriptor is exhaustive over JobGroups; a missing stage panics
func (g JobGroup) descriptor() descriptor {
	switch g {
	case Raw:
		return descriptor{"RAW", "Raw Atlas Creation", "rawAtlas", ShardKey, AtlasOutput,
			nil, []JobGroup{LineSliced}}
	case LineSliced:
		return descriptor{"LINE_SLICED", "Line Sliced Atlas Creation", "lineSlicedAtlas", ShardKey, AtlasOutput,
			nil, []JobGroup{LineSlicedSub, FullySliced}}
	case LineSlicedSub:
		return descriptor{"LINE_SLICED_SUB", "Line Sliced Sub Atlas Creation", "lineSlicedSubAtlas", ShardKey, AtlasOutput,
			nil, []JobGroup{FullySliced}}
	case FullySliced:
		return descriptor{"FULLY_SLICED", "Fully Sliced Atlas Creation", "fullySlicedAtlas", ShardKey, AtlasOutput,
			[]JobGroup{LineSlicedSub, LineSliced}, []JobGroup{EdgeSub, WaySectioned}}
	case EdgeSub:
		return descriptor{"EDGE_SUB", "Edge-only Sub Atlas Creation", "edgeOnlySubAtlas", ShardKey, AtlasOutput,
			nil, []JobGroup{WaySectioned}}
	case WaySectioned:
		return descriptor{"WAY_SECTIONED", "Way Sectioned Atlas Creation", "atlas", ShardKey, AtlasOutput,
			[]JobGroup{EdgeSub, FullySliced}, []JobGroup{ShardStatistics, Deltas, TaggableFiltered, ConfiguredFiltered}}
	case ShardStatistics:
		return descriptor{"SHARD_STATISTICS", "Shard Statistics Creation", "shardStats", ShardKey, StatisticsOutput,
			nil, []JobGroup{CountryStatistics}}
	case CountryStatistics:
		return descriptor{"COUNTRY_STATISTICS", "Country Statistics Creation", "countryStats", CountryKey, StatisticsOutput,
			nil, nil}
	case Deltas:
		return descriptor{"DELTAS", "Atlas Deltas Creation", "deltas", ShardKey, DeltaOutput,
			nil, nil}
	case TaggableFiltered:
		return descriptor{"TAGGABLE_FILTERED", "Taggable Filtered Sub Atlas Creation", "taggableFilteredSubAtlas", ShardKey, AtlasOutput,
			nil, nil}
	case ConfiguredFiltered:
		return descriptor{"CONFIGURED_FILTERED", "Configured Filtered Sub Atlas Creation", "configuredOutput", ShardKey, AtlasOutput,
			nil, nil}
	default:
		panic(fmt.Sprintf("unknown job group %d", int(g)))
	}
}

// JobGroups returns every stage, in execution order
func JobGroups() []JobGroup {
	return []JobGroup{
		Raw, LineSliced, LineSlicedSub, FullySliced, EdgeSub, WaySectioned,
		ShardStatistics, CountryStatistics, Deltas, TaggableFiltered, ConfiguredFiltered,
	}
}

// ID returns the numeric identifier of the stage
func (g JobGroup) ID() int {
	return int(g)
}

// String returns the constant name of the stage, such as WAY_SECTIONED
func (g JobGroup) String() string {
	return g.descriptor().name
}

// Description returns the human readable description of the stage
func (g JobGroup) Description() string {
	return g.descriptor().description
}

// CacheFolder returns the subfolder of the output root the stage persists to
func (g JobGroup) CacheFolder() string {
	return g.descriptor().cacheFolder
}

// KeyType returns the type of the keys the stage produces
func (g JobGroup) KeyType() KeyType {
	return g.descriptor().keyType
}

// OutputFormat returns the type of the values the stage produces
func (g JobGroup) OutputFormat() OutputFormat {
	return g.descriptor().outputFormat
}

// SideInputs returns the earlier stages whose durable output this stage reads back, rather
// than their in-memory collections
func (g JobGroup) SideInputs() []JobGroup {
	return g.descriptor().sideInputs
}

// Dependents returns the stages which must persist before this stage's in-memory collection
// is released
func (g JobGroup) Dependents() []JobGroup {
	return g.descriptor().dependents
}
