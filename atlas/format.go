package atlas

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-sif/atlasgen"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb/geojson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// AtlasExtension is the file extension of serialized atlases
	AtlasExtension = ".atlas"
	// StatisticsExtension is the file extension of serialized statistics
	StatisticsExtension = ".stats.json"
	// DeltaExtension is the file extension of serialized deltas
	DeltaExtension = ".delta.json"
	// GeoJSONExtension is the file extension of line-delimited GeoJSON exports
	GeoJSONExtension = ".ldgeojson"
)

type serializedAtlas struct {
	Name     string    `json:"name"`
	Entities []*Entity `json:"entities"`
}

// Format serializes atlases as zstd-compressed JSON
type Format struct{}

// Extension returns the file extension of serialized atlases
func (Format) Extension() string {
	return AtlasExtension
}

// Encode writes an Atlas, which must be an *Atlas
func (Format) Encode(w io.Writer, value atlasgen.Atlas) error {
	a, ok := value.(*Atlas)
	if !ok {
		return fmt.Errorf("cannot encode %T as an atlas", value)
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(serializedAtlas{Name: a.Name(), Entities: a.Entities()}); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads an Atlas
func (Format) Decode(r io.Reader) (atlasgen.Atlas, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var serialized serializedAtlas
	if err := json.NewDecoder(zr).Decode(&serialized); err != nil {
		return nil, err
	}
	return New(serialized.Name, serialized.Entities...), nil
}

// StatisticsFormat serializes Statistics as JSON
type StatisticsFormat struct{}

// Extension returns the file extension of serialized statistics
func (StatisticsFormat) Extension() string {
	return StatisticsExtension
}

// Encode writes Statistics, which must be *Statistics
func (StatisticsFormat) Encode(w io.Writer, value atlasgen.Statistics) error {
	s, ok := value.(*Statistics)
	if !ok {
		return fmt.Errorf("cannot encode %T as statistics", value)
	}
	return json.NewEncoder(w).Encode(s)
}

// Decode reads Statistics
func (StatisticsFormat) Decode(r io.Reader) (atlasgen.Statistics, error) {
	s := &Statistics{}
	if err := json.NewDecoder(r).Decode(s); err != nil {
		return nil, err
	}
	if s.Counts == nil {
		s.Counts = make(map[string]int64)
	}
	return s, nil
}

// DeltaFormat serializes Deltas as JSON, one Delta per line. Every Delta of a key shares its file.
type DeltaFormat struct{}

// Extension returns the file extension of serialized deltas
func (DeltaFormat) Extension() string {
	return DeltaExtension
}

// Encode writes a Delta, which must be a *Delta
func (DeltaFormat) Encode(w io.Writer, value atlasgen.Delta) error {
	d, ok := value.(*Delta)
	if !ok {
		return fmt.Errorf("cannot encode %T as a delta", value)
	}
	return json.NewEncoder(w).Encode(d)
}

// Decode reads the first Delta of a file
func (DeltaFormat) Decode(r io.Reader) (atlasgen.Delta, error) {
	d := &Delta{}
	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeDeltas reads every Delta of a file
func DecodeDeltas(r io.Reader) ([]*Delta, error) {
	var deltas []*Delta
	decoder := json.NewDecoder(r)
	for decoder.More() {
		d := &Delta{}
		if err := decoder.Decode(d); err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// GeoJSONEncoder writes an Atlas as line-delimited GeoJSON, one feature per located entity.
// Relations have no geometry of their own and are skipped.
type GeoJSONEncoder struct{}

// Extension returns the file extension of line-delimited GeoJSON
func (GeoJSONEncoder) Extension() string {
	return GeoJSONExtension
}

// Encode writes an Atlas, which must be an *Atlas
func (GeoJSONEncoder) Encode(w io.Writer, value atlasgen.Atlas) error {
	a, ok := value.(*Atlas)
	if !ok {
		return fmt.Errorf("cannot encode %T as geojson", value)
	}
	bw := bufio.NewWriter(w)
	for _, e := range a.Entities() {
		geometry := e.Geometry()
		if geometry == nil {
			continue
		}
		feature := geojson.NewFeature(geometry)
		feature.ID = e.ID
		feature.Properties["type"] = string(e.Type)
		for key, value := range e.Tags {
			feature.Properties[key] = value
		}
		line, err := feature.MarshalJSON()
		if err != nil {
			return fmt.Errorf("unable to encode entity %d: %w", e.ID, err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
