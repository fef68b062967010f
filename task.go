package atlasgen

import "strings"

// KeySeparator separates the country from the shard name within a task key
const KeySeparator = "_"

// A GenerationTask is the unit of distributed work: one country-shard pair. Each task
// carries the complete set of Shards for its country (including its own), which later
// stages need to resolve features crossing Shard boundaries.
type GenerationTask struct {
	Country  string
	Shard    Shard
	Siblings ShardSet
}

// Key returns the identifier of this task, which every stage uses as the key of its output
func (t GenerationTask) Key() string {
	return TaskKey(t.Country, t.Shard)
}

// TaskKey builds the key for a country and a Shard
func TaskKey(country string, shard Shard) string {
	return country + KeySeparator + shard.Name()
}

// CountryFromKey returns the country portion of a key, which is everything before the first
// separator. Keys without a separator are country keys already.
func CountryFromKey(key string) string {
	if idx := strings.Index(key, KeySeparator); idx >= 0 {
		return key[:idx]
	}
	return key
}

// SplitKey splits a key into its country and shard name. The shard name is empty for
// country-level keys.
func SplitKey(key string) (country string, shardName string) {
	if idx := strings.Index(key, KeySeparator); idx >= 0 {
		return key[:idx], key[idx+len(KeySeparator):]
	}
	return key, ""
}
