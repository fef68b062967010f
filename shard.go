package atlasgen

import "github.com/paulmach/orb"

// A Shard is an opaque spatial partition of the world. Shards are produced and interpreted by
// a Sharding, are immutable, and must be comparable so that they can be used as map keys.
type Shard interface {
	Name() string      // Name returns the canonical name of this Shard, unique within its Sharding
	Bounds() orb.Bound // Bounds returns the rectangular extent of this Shard
}

// A TileShard is a Shard which is addressable as a slippy map tile. Persistence schemes use
// the tile coordinates to lay out files.
type TileShard interface {
	Shard
	Zoom() int
	X() int
	Y() int
}

// Sharding is a strategy for dividing the world into Shards
type Sharding interface {
	Name() string                            // Name returns the specification string of this Sharding (e.g. slippy@9)
	Shards(bound orb.Bound) []Shard          // Shards returns every Shard which overlaps the given bound
	ShardForName(name string) (Shard, error) // ShardForName parses a Shard name produced by this Sharding
	Neighbors(shard Shard) []Shard           // Neighbors returns the Shards which touch the given Shard, excluding itself
}

// BoundaryLookup answers questions about country boundaries
type BoundaryLookup interface {
	Countries() []string                             // Countries returns the codes of all countries known to this lookup
	Bounds(country string) (orb.Bound, bool)         // Bounds returns the extent of a country, if it is known
	Intersects(country string, bound orb.Bound) bool // Intersects returns true iff the country's boundary overlaps the given bound
	Contains(country string, point orb.Point) bool   // Contains returns true iff the point falls within the country's boundary
	ShouldAlwaysSlice(taggable Taggable) bool        // ShouldAlwaysSlice returns true iff the Taggable must be sliced regardless of its size
}

// ShardSet is a read-only, name-sorted list of Shards
type ShardSet []Shard

// Contains returns true iff the set contains a Shard with the same name
func (s ShardSet) Contains(shard Shard) bool {
	for _, candidate := range s {
		if candidate.Name() == shard.Name() {
			return true
		}
	}
	return false
}

// Names returns the names of the Shards in this set
func (s ShardSet) Names() []string {
	names := make([]string, len(s))
	for i, shard := range s {
		names[i] = shard.Name()
	}
	return names
}
