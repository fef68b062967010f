package sharding

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sif/atlasgen"
	"github.com/paulmach/orb"
)

// DynamicSharding is a quad tree of slippy tiles of mixed zooms, split where data is dense.
// It is described by a file listing its leaf tiles, one z-x-y name per line.
type DynamicSharding struct {
	location string
	leaves   []SlippyTile
	byName   map[string]SlippyTile
}

// NewDynamicSharding parses a leaf tile listing. Blank lines and lines starting with # are ignored.
func NewDynamicSharding(location string, definition []byte) (*DynamicSharding, error) {
	s := &DynamicSharding{location: location, byName: make(map[string]SlippyTile)}
	scanner := bufio.NewScanner(bytes.NewReader(definition))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// tree files may annotate leaves with a trailing '+' or feature count
		line = strings.Fields(strings.TrimSuffix(line, "+"))[0]
		tile, err := ParseSlippyTile(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", location, lineNum, err)
		}
		if _, ok := s.byName[tile.Name()]; ok {
			continue
		}
		s.byName[tile.Name()] = tile
		s.leaves = append(s.leaves, tile)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(s.leaves) == 0 {
		return nil, fmt.Errorf("dynamic sharding %s defines no shards", location)
	}
	sort.Slice(s.leaves, func(i, j int) bool {
		return s.leaves[i].Name() < s.leaves[j].Name()
	})
	return s, nil
}

// Name returns dynamic@<location>
func (s *DynamicSharding) Name() string {
	return DynamicType + "@" + s.location
}

// Shards returns every leaf overlapping the bound
func (s *DynamicSharding) Shards(bound orb.Bound) []atlasgen.Shard {
	var result []atlasgen.Shard
	for _, leaf := range s.leaves {
		if overlaps(leaf.Bounds(), bound) {
			result = append(result, leaf)
		}
	}
	return result
}

// ShardForName returns the leaf with the given name
func (s *DynamicSharding) ShardForName(name string) (atlasgen.Shard, error) {
	tile, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("shard %s is not a leaf of %s", name, s.Name())
	}
	return tile, nil
}

// Neighbors returns the leaves which share an edge or a corner with the shard
func (s *DynamicSharding) Neighbors(shard atlasgen.Shard) []atlasgen.Shard {
	bound := shard.Bounds()
	var result []atlasgen.Shard
	for _, leaf := range s.leaves {
		if leaf.Name() == shard.Name() {
			continue
		}
		if leaf.Bounds().Intersects(bound) {
			result = append(result, leaf)
		}
	}
	return result
}

// overlaps returns true iff two bounds share a positive area, unlike orb.Bound.Intersects
// which is also true for bounds which merely touch
func overlaps(a orb.Bound, b orb.Bound) bool {
	return a.Min[0] < b.Max[0] && b.Min[0] < a.Max[0] && a.Min[1] < b.Max[1] && b.Min[1] < a.Max[1]
}
