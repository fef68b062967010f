package atlas

import (
	"fmt"
	"sort"

	"github.com/go-sif/atlasgen"
)

const (
	typeCountPrefix = "type:"
	tagCountPrefix  = "tag:"
	// EntitiesCount is the key of the total entity count
	EntitiesCount = "entities"
)

// Statistics counts the entities of an Atlas by type and by tag key
type Statistics struct {
	Counts map[string]int64 `json:"counts"`
}

// ComputeStatistics summarizes an Atlas
func ComputeStatistics(a *Atlas) *Statistics {
	counts := make(map[string]int64)
	for _, e := range a.Entities() {
		counts[EntitiesCount]++
		counts[typeCountPrefix+string(e.Type)]++
		for key := range e.Tags {
			counts[tagCountPrefix+key]++
		}
	}
	return &Statistics{Counts: counts}
}

// Count returns a single count
func (s *Statistics) Count(key string) int64 {
	return s.Counts[key]
}

// TypeCount returns the number of entities of a type
func (s *Statistics) TypeCount(t EntityType) int64 {
	return s.Counts[typeCountPrefix+string(t)]
}

// TagCount returns the number of entities carrying a tag key
func (s *Statistics) TagCount(key string) int64 {
	return s.Counts[tagCountPrefix+key]
}

// Keys returns the sorted keys of every count
func (s *Statistics) Keys() []string {
	keys := make([]string, 0, len(s.Counts))
	for key := range s.Counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Merge sums these Statistics with other, which must also be *Statistics. Neither operand is
// modified.
func (s *Statistics) Merge(other atlasgen.Statistics) (atlasgen.Statistics, error) {
	o, ok := other.(*Statistics)
	if !ok {
		return nil, fmt.Errorf("cannot merge %T into %T", other, s)
	}
	merged := make(map[string]int64, len(s.Counts)+len(o.Counts))
	for key, count := range s.Counts {
		merged[key] += count
	}
	for key, count := range o.Counts {
		merged[key] += count
	}
	return &Statistics{Counts: merged}, nil
}
