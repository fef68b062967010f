package persistence

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-sif/atlasgen"
)

// Layout places the files of a keyed dataset: <country>/<scheme directory>/<key><extension>.
// Keys without a shard (country-level aggregates) are placed at <country>/<key><extension>.
type Layout struct {
	Scheme   Scheme
	Sharding atlasgen.Sharding
}

// Path returns the path of the file for a key, relative to the dataset's folder
func (l Layout) Path(key string, extension string) (string, error) {
	country, shardName := atlasgen.SplitKey(key)
	if shardName == "" || l.Sharding == nil {
		return path.Join(country, key+extension), nil
	}
	shard, err := l.Sharding.ShardForName(shardName)
	if err != nil {
		return "", fmt.Errorf("unable to place key %s: %w", key, err)
	}
	dir := ""
	if l.Scheme.IsDirectory() {
		dir = l.Scheme.Apply(shard)
	} else {
		dir, _ = path.Split(l.Scheme.Apply(shard))
	}
	return path.Join(country, dir, key+extension), nil
}

// KeyFromPath recovers the key of a file placed by a Layout
func KeyFromPath(p string, extension string) (string, bool) {
	_, file := path.Split(p)
	if !strings.HasSuffix(file, extension) {
		return "", false
	}
	return strings.TrimSuffix(file, extension), true
}
