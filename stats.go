package atlasgen

import "time"

// RuntimeStatistics facilitates the retrieval of statistics about a running generation job
type RuntimeStatistics interface {
	// GetStartTime returns the start time of the job
	GetStartTime() time.Time
	// GetRuntime returns the running time of the job
	GetRuntime() time.Duration
	// GetStageRuntimes returns the persistence runtime of each stage which has run, by stage name
	GetStageRuntimes() map[string]time.Duration
	// GetEntriesPersisted returns the number of entries each stage has persisted, by stage name
	GetEntriesPersisted() map[string]int64
	// GetEvictionFailures returns the number of failed evictions, by the name of the stage which triggered them
	GetEvictionFailures() map[string]int64
}
