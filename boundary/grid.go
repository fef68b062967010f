package boundary

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

const defaultGridResolution = 1.0

type cell struct {
	x int
	y int
}

// gridIndex maps cells of a regular lon/lat grid to the countries whose outlines overlap them
type gridIndex struct {
	resolution float64
	cells      map[cell][]string
	indexed    map[string]struct{}
}

func newGridIndex(resolution float64) *gridIndex {
	if resolution <= 0 {
		resolution = defaultGridResolution
	}
	return &gridIndex{
		resolution: resolution,
		cells:      make(map[cell][]string),
		indexed:    make(map[string]struct{}),
	}
}

func (g *gridIndex) cellOf(point orb.Point) cell {
	return cell{
		x: int(math.Floor(point[0] / g.resolution)),
		y: int(math.Floor(point[1] / g.resolution)),
	}
}

func (g *gridIndex) add(country string, geometry orb.MultiPolygon) {
	if _, ok := g.indexed[country]; ok {
		return
	}
	g.indexed[country] = struct{}{}
	for _, polygon := range geometry {
		bound := polygon.Bound()
		min, max := g.cellOf(bound.Min), g.cellOf(bound.Max)
		for x := min.x; x <= max.x; x++ {
			for y := min.y; y <= max.y; y++ {
				c := cell{x: x, y: y}
				if !containsString(g.cells[c], country) {
					g.cells[c] = append(g.cells[c], country)
					sort.Strings(g.cells[c])
				}
			}
		}
	}
}

func (g *gridIndex) candidates(point orb.Point) []string {
	return g.cells[g.cellOf(point)]
}

func (g *gridIndex) countries() []string {
	result := make([]string, 0, len(g.indexed))
	for country := range g.indexed {
		result = append(result, country)
	}
	sort.Strings(result)
	return result
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
