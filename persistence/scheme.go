// Package persistence lays out and reads back the datasets written by each stage
package persistence

import (
	"path"
	"strconv"
	"strings"

	"github.com/go-sif/atlasgen"
)

const (
	zoomToken = "zz"
	xToken    = "xx"
	yToken    = "yy"
)

// A Scheme is a path template for the file (or directory) of a Shard. The tokens zz, xx and yy
// are replaced with the zoom, column and row of slippy tile shards, so that zz/zz-xx-yy.jsonl
// becomes 9/9-261-195.jsonl. Shards which are not tiles use their name as the file stem.
type Scheme string

// Apply resolves this Scheme for a Shard
func (s Scheme) Apply(shard atlasgen.Shard) string {
	template := string(s)
	tile, ok := shard.(atlasgen.TileShard)
	if !ok {
		_, file := path.Split(template)
		if strings.Contains(file, zoomToken) {
			return shard.Name() + path.Ext(file)
		}
		return ""
	}
	return strings.NewReplacer(
		zoomToken, strconv.Itoa(tile.Zoom()),
		xToken, strconv.Itoa(tile.X()),
		yToken, strconv.Itoa(tile.Y()),
	).Replace(template)
}

// IsDirectory returns true iff this Scheme only produces a directory, to which file names are appended
func (s Scheme) IsDirectory() bool {
	return s == "" || strings.HasSuffix(string(s), "/")
}
