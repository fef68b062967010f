// Package testing provides an in-memory fixture for running generation jobs in tests
package testing

import (
	"context"
	"fmt"

	"github.com/go-sif/atlasgen/pipeline"
	"github.com/go-sif/atlasgen/storage"
	"github.com/spf13/afero"
)

// Locations within a Fixture's file system
const (
	PBFPath    = "/pbfs"
	OutputPath = "/output"
)

// BelizeBoundaries spans three zoom 2 slippy tiles: 2-0-1, 2-1-1 and 2-2-1
const BelizeBoundaries = `{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {"iso_country_code": "BLZ"},
  "geometry": {"type": "Polygon", "coordinates": [[[-100, 10], [10, 10], [10, 20], [-100, 20], [-100, 10]]]}}]}`

// BelizeExtracts are raw extracts for each tile of BelizeBoundaries, by path beneath PBFPath
var BelizeExtracts = map[string]string{
	"2/2-0-1.jsonl": `{"id": 1, "type": "point", "tags": {"amenity": "school"}, "lon": -95, "lat": 15}
{"id": 2, "type": "line", "tags": {"highway": "primary"}, "nodes": [{"id": 100, "lon": -95, "lat": 15}, {"id": 101, "lon": -92, "lat": 15}, {"id": 102, "lon": -91, "lat": 16}]}
{"id": 3, "type": "line", "tags": {"highway": "secondary"}, "nodes": [{"id": 101, "lon": -92, "lat": 15}, {"id": 103, "lon": -92, "lat": 12}]}
{"id": 4, "type": "point", "tags": {"amenity": "cafe"}, "lon": -150, "lat": 15}
{"id": 5, "type": "relation", "tags": {"type": "route", "route": "bus"}, "members": [2, 6]}
`,
	"2/2-1-1.jsonl": `{"id": 6, "type": "line", "tags": {"highway": "tertiary"}, "nodes": [{"id": 104, "lon": -80, "lat": 15}, {"id": 105, "lon": -70, "lat": 15}]}
{"id": 7, "type": "area", "tags": {"natural": "water"}, "nodes": [{"id": 106, "lon": -60, "lat": 12}, {"id": 107, "lon": -58, "lat": 12}, {"id": 108, "lon": -58, "lat": 14}]}
{"id": 5, "type": "relation", "tags": {"type": "route", "route": "bus"}, "members": [2, 6]}
`,
	"2/2-2-1.jsonl": `{"id": 8, "type": "point", "tags": {"amenity": "school"}, "lon": 5, "lat": 15}
{"id": 9, "type": "line", "tags": {"waterway": "river"}, "nodes": [{"id": 109, "lon": 2, "lat": 15}, {"id": 110, "lon": 8, "lat": 15}]}
`,
}

// Fixture is an in-memory file system holding the raw input of a job
type Fixture struct {
	FS     afero.Fs
	Opener storage.Opener
}

// NewBelizeFixture produces a Fixture with the boundaries, sharding and raw extracts of Belize
func NewBelizeFixture() (*Fixture, error) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"boundaries.json": BelizeBoundaries,
		"sharding.txt":    "slippy@2\n",
	}
	for p, contents := range BelizeExtracts {
		files[p] = contents
	}
	for p, contents := range files {
		if err := afero.WriteFile(fs, PBFPath+"/"+p, []byte(contents), 0644); err != nil {
			return nil, err
		}
	}
	return &Fixture{FS: fs, Opener: storage.NewAferoOpener(fs)}, nil
}

// WriteFile adds a file to the Fixture
func (f *Fixture) WriteFile(p string, contents string) error {
	return afero.WriteFile(f.FS, p, []byte(contents), 0644)
}

// Parameters returns the Parameters of a job over the Fixture's raw input, writing to output
func (f *Fixture) Parameters(output string) pipeline.Parameters {
	return pipeline.Parameters{
		Countries: []string{"BLZ"},
		PBFPath:   PBFPath,
		Output:    output,
	}
}

// LocalRun runs a generation job against the Fixture, recovering any panic as an error
func (f *Fixture) LocalRun(ctx context.Context, params pipeline.Parameters, collab pipeline.Collaborators) (generator *pipeline.Generator, err error) {
	// handle panics
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = anErr
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	collab.Opener = f.Opener
	generator, err = pipeline.NewGenerator(params, collab)
	if err != nil {
		return nil, err
	}
	return generator, generator.Run(ctx)
}
