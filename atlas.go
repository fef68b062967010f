package atlasgen

// An Atlas is the opaque per-shard dataset produced and consumed by each stage of the
// pipeline. Its structure is owned by the geometry engine; the pipeline only moves it around.
type Atlas interface {
	Name() string // Name returns the name of this Atlas, usually the key of the task which produced it
	Len() int     // Len returns the number of entities within this Atlas
}

// Statistics summarize the contents of an Atlas. Merging must be associative and commutative,
// as per-shard Statistics are reduced into per-country Statistics in no particular order.
type Statistics interface {
	Merge(other Statistics) (Statistics, error) // Merge produces new Statistics combining these and other
}

// A Delta describes the structural difference between two versions of the same Atlas
type Delta interface {
	Name() string // Name returns the name of the Atlas this Delta was computed for
	Empty() bool  // Empty returns true iff the two versions were identical
}

// Taggable is anything which carries OSM-style tags
type Taggable interface {
	Tag(key string) (string, bool) // Tag retrieves the value of a single tag
	AllTags() map[string]string    // AllTags returns all tags. The returned map must not be modified.
}
