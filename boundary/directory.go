package boundary

import (
	"sort"

	"github.com/go-sif/atlasgen"
)

// ShardDirectory answers which shards each country covers, for a BoundaryLookup and a Sharding
type ShardDirectory struct {
	boundaries atlasgen.BoundaryLookup
	sharding   atlasgen.Sharding
}

// NewShardDirectory produces a ShardDirectory
func NewShardDirectory(boundaries atlasgen.BoundaryLookup, sharding atlasgen.Sharding) *ShardDirectory {
	return &ShardDirectory{boundaries: boundaries, sharding: sharding}
}

// Sharding returns the Sharding of this directory
func (d *ShardDirectory) Sharding() atlasgen.Sharding {
	return d.sharding
}

// ShardsFor returns the name-sorted Shards which intersect a country. Unknown countries have none.
func (d *ShardDirectory) ShardsFor(country string) atlasgen.ShardSet {
	bound, ok := d.boundaries.Bounds(country)
	if !ok {
		return nil
	}
	var result atlasgen.ShardSet
	for _, shard := range d.sharding.Shards(bound) {
		if d.boundaries.Intersects(country, shard.Bounds()) {
			result = append(result, shard)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// CountriesFor returns the sorted countries which intersect a Shard
func (d *ShardDirectory) CountriesFor(shard atlasgen.Shard) []string {
	var result []string
	for _, country := range d.boundaries.Countries() {
		if d.boundaries.Intersects(country, shard.Bounds()) {
			result = append(result, country)
		}
	}
	return result
}
