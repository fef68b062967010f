package pipeline

import (
	"fmt"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/boundary"
	"go.uber.org/zap"
)

// GenerateTasks produces one GenerationTask per country and Shard intersecting it. Every task
// of a country carries the complete set of that country's Shards as its siblings. Countries
// without Shards are skipped with a warning. A country listed twice is planned once.
func GenerateTasks(logger *zap.Logger, countries []string, directory *boundary.ShardDirectory) []atlasgen.GenerationTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	var tasks []atlasgen.GenerationTask
	planned := make(map[string]struct{}, len(countries))
	for _, country := range countries {
		if _, ok := planned[country]; ok {
			continue
		}
		planned[country] = struct{}{}
		shards := directory.ShardsFor(country)
		if len(shards) == 0 {
			logger.Warn(fmt.Sprintf("No shards were found for %s. Skipping task generation.", country))
			continue
		}
		for _, shard := range shards {
			tasks = append(tasks, atlasgen.GenerationTask{
				Country:  country,
				Shard:    shard,
				Siblings: shards,
			})
		}
	}
	return tasks
}
