package sharding

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-sif/atlasgen"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest supported slippy tile zoom
const MaxZoom = 22

// the latitude at which web mercator tiles end
const maxLatitude = 85.05112877980659

// SlippyTile is a Shard addressed by slippy map tile coordinates. It is comparable, and may be
// used as a map key.
type SlippyTile struct {
	z int
	x int
	y int
}

// NewSlippyTile produces a SlippyTile, validating its coordinates
func NewSlippyTile(z int, x int, y int) (SlippyTile, error) {
	if z < 0 || z > MaxZoom {
		return SlippyTile{}, fmt.Errorf("zoom %d must be between 0 and %d", z, MaxZoom)
	}
	n := 1 << uint(z)
	if x < 0 || x >= n || y < 0 || y >= n {
		return SlippyTile{}, fmt.Errorf("tile %d-%d-%d is out of range", z, x, y)
	}
	return SlippyTile{z: z, x: x, y: y}, nil
}

// ParseSlippyTile parses a tile name of the form z-x-y
func ParseSlippyTile(name string) (SlippyTile, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		return SlippyTile{}, fmt.Errorf("invalid slippy tile name %q", name)
	}
	var coords [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return SlippyTile{}, fmt.Errorf("invalid slippy tile name %q: %w", name, err)
		}
		coords[i] = v
	}
	return NewSlippyTile(coords[0], coords[1], coords[2])
}

// Name returns the name of this tile, z-x-y
func (t SlippyTile) Name() string {
	return fmt.Sprintf("%d-%d-%d", t.z, t.x, t.y)
}

// Bounds returns the extent of this tile
func (t SlippyTile) Bounds() orb.Bound {
	return maptile.New(uint32(t.x), uint32(t.y), maptile.Zoom(t.z)).Bound()
}

// Zoom returns the zoom of this tile
func (t SlippyTile) Zoom() int {
	return t.z
}

// X returns the column of this tile
func (t SlippyTile) X() int {
	return t.x
}

// Y returns the row of this tile
func (t SlippyTile) Y() int {
	return t.y
}

// Parent returns the tile which contains this one at a lower zoom
func (t SlippyTile) Parent(zoom int) SlippyTile {
	if zoom >= t.z {
		return t
	}
	shift := uint(t.z - zoom)
	return SlippyTile{z: zoom, x: t.x >> shift, y: t.y >> shift}
}

// tileAt returns the tile containing a point, clamped to the valid range of the zoom
func tileAt(point orb.Point, zoom int) SlippyTile {
	n := 1 << uint(zoom)
	lat := clamp(point[1], -maxLatitude, maxLatitude) * math.Pi / 180
	x := math.Floor((clamp(point[0], -180, 180) + 180) / 360 * float64(n))
	y := math.Floor((1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2 * float64(n))
	return SlippyTile{z: zoom, x: clampInt(int(x), 0, n-1), y: clampInt(int(y), 0, n-1)}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SlippySharding divides the world into the slippy tiles of a single zoom
type SlippySharding struct {
	zoom int
}

// NewSlippySharding produces a SlippySharding
func NewSlippySharding(zoom int) (*SlippySharding, error) {
	if zoom < 0 || zoom > MaxZoom {
		return nil, fmt.Errorf("zoom %d must be between 0 and %d", zoom, MaxZoom)
	}
	return &SlippySharding{zoom: zoom}, nil
}

// Name returns slippy@<zoom>
func (s *SlippySharding) Name() string {
	return fmt.Sprintf("%s@%d", SlippyType, s.zoom)
}

// Shards returns every tile overlapping the bound, in row-major order
func (s *SlippySharding) Shards(bound orb.Bound) []atlasgen.Shard {
	topLeft := tileAt(orb.Point{bound.Min[0], bound.Max[1]}, s.zoom)
	bottomRight := tileAt(orb.Point{bound.Max[0], bound.Min[1]}, s.zoom)
	var result []atlasgen.Shard
	for y := topLeft.y; y <= bottomRight.y; y++ {
		for x := topLeft.x; x <= bottomRight.x; x++ {
			result = append(result, SlippyTile{z: s.zoom, x: x, y: y})
		}
	}
	return result
}

// ShardForName parses a tile name, which must be at this sharding's zoom
func (s *SlippySharding) ShardForName(name string) (atlasgen.Shard, error) {
	tile, err := ParseSlippyTile(name)
	if err != nil {
		return nil, err
	}
	if tile.z != s.zoom {
		return nil, fmt.Errorf("tile %s does not belong to %s", name, s.Name())
	}
	return tile, nil
}

// Neighbors returns the up to eight tiles surrounding a tile
func (s *SlippySharding) Neighbors(shard atlasgen.Shard) []atlasgen.Shard {
	tile, err := ParseSlippyTile(shard.Name())
	if err != nil {
		return nil
	}
	n := 1 << uint(tile.z)
	var result []atlasgen.Shard
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := tile.x+dx, tile.y+dy
			if (dx == 0 && dy == 0) || x < 0 || x >= n || y < 0 || y >= n {
				continue
			}
			result = append(result, SlippyTile{z: tile.z, x: x, y: y})
		}
	}
	return result
}
