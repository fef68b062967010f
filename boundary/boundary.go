// Package boundary provides the country boundaries a generation job slices against, and the
// directory of which shards each country covers
package boundary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/storage"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/gjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CountryCodeProperty is the feature property holding a boundary's country code
const CountryCodeProperty = "iso_country_code"

// CountryBoundary is the outline of a single country
type CountryBoundary struct {
	Country  string
	Geometry orb.MultiPolygon
	bound    orb.Bound
}

// CountryBoundaryMap is a BoundaryLookup over a set of country outlines. Boundary files are
// GeoJSON feature collections of Polygon or MultiPolygon features carrying an
// iso_country_code property, optionally with a gridIndex member.
type CountryBoundaryMap struct {
	boundaries  map[string]*CountryBoundary
	countries   []string
	grid        *gridIndex
	alwaysSlice atlasgen.TaggablePredicate
}

// NewCountryBoundaryMap produces a CountryBoundaryMap from outlines. Outlines sharing a country
// code are combined.
func NewCountryBoundaryMap(boundaries ...*CountryBoundary) *CountryBoundaryMap {
	m := &CountryBoundaryMap{
		boundaries:  make(map[string]*CountryBoundary),
		alwaysSlice: atlasgen.Nothing,
	}
	for _, b := range boundaries {
		existing, ok := m.boundaries[b.Country]
		if !ok {
			existing = &CountryBoundary{Country: b.Country}
			m.boundaries[b.Country] = existing
			m.countries = append(m.countries, b.Country)
		}
		existing.Geometry = append(existing.Geometry, b.Geometry...)
		existing.bound = existing.Geometry.Bound()
	}
	sort.Strings(m.countries)
	return m
}

// Read parses a boundary file
func Read(data []byte) (*CountryBoundaryMap, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse boundaries: %w", err)
	}
	var boundaries []*CountryBoundary
	for i, feature := range fc.Features {
		country := feature.Properties.MustString(CountryCodeProperty, "")
		if country == "" {
			return nil, fmt.Errorf("boundary feature %d has no %s", i, CountryCodeProperty)
		}
		var geometry orb.MultiPolygon
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			geometry = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			geometry = g
		default:
			return nil, fmt.Errorf("boundary of %s is a %T, not a polygon", country, feature.Geometry)
		}
		boundaries = append(boundaries, &CountryBoundary{Country: country, Geometry: geometry})
	}
	m := NewCountryBoundaryMap(boundaries...)
	if index := gjson.GetBytes(data, "gridIndex"); index.Exists() {
		m.grid = newGridIndex(index.Get("resolution").Float())
		countries := m.countries
		if listed := index.Get("countries"); listed.IsArray() {
			countries = nil
			for _, c := range listed.Array() {
				countries = append(countries, c.String())
			}
		}
		m.indexCountries(countries)
	}
	return m, nil
}

// Load reads the boundary file at a location
func Load(ctx context.Context, opener storage.Opener, location string) (*CountryBoundaryMap, error) {
	data, err := storage.ReadFile(ctx, opener, location)
	if err != nil {
		return nil, err
	}
	return Read(data)
}

// Countries returns the sorted codes of every country in this map
func (m *CountryBoundaryMap) Countries() []string {
	return m.countries
}

// Boundary returns the outline of a country
func (m *CountryBoundaryMap) Boundary(country string) (*CountryBoundary, bool) {
	b, ok := m.boundaries[country]
	return b, ok
}

// Bounds returns the extent of a country
func (m *CountryBoundaryMap) Bounds(country string) (orb.Bound, bool) {
	b, ok := m.boundaries[country]
	if !ok {
		return orb.Bound{}, false
	}
	return b.bound, true
}

// Intersects returns true iff the bounding box of any polygon of the country overlaps the
// bound by a positive area
func (m *CountryBoundaryMap) Intersects(country string, bound orb.Bound) bool {
	b, ok := m.boundaries[country]
	if !ok || !overlaps(b.bound, bound) {
		return false
	}
	for _, polygon := range b.Geometry {
		if overlaps(polygon.Bound(), bound) {
			return true
		}
	}
	return false
}

// Contains returns true iff the point falls within the country
func (m *CountryBoundaryMap) Contains(country string, point orb.Point) bool {
	b, ok := m.boundaries[country]
	if !ok || !b.bound.Contains(point) {
		return false
	}
	return planar.MultiPolygonContains(b.Geometry, point)
}

// CountriesAt returns the sorted countries containing a point, using the grid index if there is one
func (m *CountryBoundaryMap) CountriesAt(point orb.Point) []string {
	candidates := m.countries
	if m.grid != nil {
		candidates = m.grid.candidates(point)
	}
	var result []string
	for _, country := range candidates {
		if m.Contains(country, point) {
			result = append(result, country)
		}
	}
	return result
}

// SetShouldAlwaysSlicePredicate sets the predicate selecting features which are always sliced
func (m *CountryBoundaryMap) SetShouldAlwaysSlicePredicate(predicate atlasgen.TaggablePredicate) {
	if predicate == nil {
		predicate = atlasgen.Nothing
	}
	m.alwaysSlice = predicate
}

// ShouldAlwaysSlice returns true iff the Taggable must be sliced regardless of its size
func (m *CountryBoundaryMap) ShouldAlwaysSlice(t atlasgen.Taggable) bool {
	return m.alwaysSlice(t)
}

// HasGridIndex returns true iff this map has a grid index
func (m *CountryBoundaryMap) HasGridIndex() bool {
	return m.grid != nil
}

// InitializeGridIndex indexes the given countries in a grid of one degree cells
func (m *CountryBoundaryMap) InitializeGridIndex(countries []string) {
	m.grid = newGridIndex(defaultGridResolution)
	m.indexCountries(countries)
}

func (m *CountryBoundaryMap) indexCountries(countries []string) {
	for _, country := range countries {
		if b, ok := m.boundaries[country]; ok {
			m.grid.add(country, b.Geometry)
		}
	}
}

// Write writes this map as a boundary file, including its grid index
func (m *CountryBoundaryMap) Write(w io.Writer) error {
	fc := geojson.NewFeatureCollection()
	for _, country := range m.countries {
		feature := geojson.NewFeature(m.boundaries[country].Geometry)
		feature.Properties[CountryCodeProperty] = country
		fc.Append(feature)
	}
	features, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	file := map[string]interface{}{
		"type":     "FeatureCollection",
		"features": jsoniter.RawMessage(gjson.GetBytes(features, "features").Raw),
	}
	if m.grid != nil {
		file["gridIndex"] = map[string]interface{}{
			"resolution": m.grid.resolution,
			"countries":  m.grid.countries(),
		}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(file); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// overlaps returns true iff two bounds share a positive area
func overlaps(a orb.Bound, b orb.Bound) bool {
	return a.Min[0] < b.Max[0] && b.Min[0] < a.Max[0] && a.Min[1] < b.Max[1] && b.Min[1] < a.Max[1]
}
