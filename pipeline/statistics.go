package pipeline

import (
	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/geometry"
	"github.com/go-sif/atlasgen/internal/collection"
)

// NamedStatistics carries the country of a Statistics through a reduction, so that a failed
// merge can name it
type NamedStatistics struct {
	CountryName string
	Statistics  atlasgen.Statistics
}

// Merge combines two NamedStatistics of the same country
func (n NamedStatistics) Merge(other NamedStatistics) (NamedStatistics, error) {
	merged, err := n.Statistics.Merge(other.Statistics)
	if err != nil {
		return NamedStatistics{}, errors.StatisticsMergeError{Country: n.CountryName, Err: err}
	}
	return NamedStatistics{CountryName: n.CountryName, Statistics: merged}, nil
}

// shardStatistics computes the Statistics of every atlas
func shardStatistics(atlases *collection.Pairs[atlasgen.Atlas], engine geometry.Engine, codec collection.Codec[atlasgen.Statistics]) *collection.Pairs[atlasgen.Statistics] {
	stats := collection.MapValues(atlases, ShardStatistics.String(), codec, func(key string, a atlasgen.Atlas) (atlasgen.Statistics, error) {
		return engine.Statistics(a)
	})
	return dropAbsent(ShardStatistics, stats)
}

// countryStatistics reduces the Statistics of every shard into the Statistics of its country
func countryStatistics(shards *collection.Pairs[atlasgen.Statistics]) *collection.Pairs[atlasgen.Statistics] {
	named := collection.MapToPair(shards, CountryStatistics.String()+"-named", nil, func(key string, s atlasgen.Statistics) (collection.Pair[NamedStatistics], error) {
		country := atlasgen.CountryFromKey(key)
		return collection.Pair[NamedStatistics]{Key: country, Value: NamedStatistics{CountryName: country, Statistics: s}}, nil
	})
	reduced := collection.ReduceByKey(named, CountryStatistics.String()+"-reduced", func(key string, left NamedStatistics, right NamedStatistics) (NamedStatistics, error) {
		return left.Merge(right)
	})
	return collection.MapValues(reduced, CountryStatistics.String(), nil, func(key string, n NamedStatistics) (atlasgen.Statistics, error) {
		return n.Statistics, nil
	})
}
