package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/filter"
	"github.com/go-sif/atlasgen/storage"
)

// Defaults for optional Parameters
const (
	DefaultPBFScheme   = "zz/zz-xx-yy.jsonl"
	DefaultAtlasScheme = "zz/"
)

// Loading option keys which are not filter configurations
const (
	PBFPathKey      = "pbf.path"
	CountryCodesKey = "country.codes"
)

// Files read from the raw input root when not given explicitly
const (
	ShardingFile   = "sharding.txt"
	BoundariesFile = "boundaries.json"
)

// Parameters are the parameters of a generation job
type Parameters struct {
	Countries              []string // [REQUIRED] ISO3 codes of the countries to generate
	PreviousOutputForDelta string   // output root of a previous run; empty disables deltas
	PBFPath                string   // [REQUIRED] root of the raw extracts
	PBFSharding            string   // sharding of the raw extracts; defaults to the atlas sharding
	PBFScheme              string   // naming scheme of the raw extracts
	AtlasScheme            string   // naming scheme of the output
	Output                 string   // [REQUIRED] output root
	Sharding               string   // atlas sharding; defaults to <PBFPath>/sharding.txt
	CountryShapes          string   // boundary file; defaults to <PBFPath>/boundaries.json

	ShouldIncludeFilteredOutputConfiguration string // taggable filter configuration for the filtered output
	ConfiguredFilterOutput                   string // configured filter file for the configured output
	ConfiguredFilterName                     string // name of the filter within ConfiguredFilterOutput
	LineDelimitedGeojsonOutput               bool   // export the way sectioned atlas as line-delimited geojson
	ShouldAlwaysSliceConfiguration           string // taggable filter configuration of features sliced even on the boundary

	SlicingConfiguration       string // slicing filter configuration
	EdgeConfiguration          string // edge filter configuration
	WaySectioningConfiguration string // way sectioning filter configuration

	CopyShardingAndBoundaries bool // copy the sharding and boundaries next to the way sectioned output
}

// Validate checks Parameters for the errors which must stop a job before any stage runs,
// and fills in defaults
func (p *Parameters) Validate() error {
	var countries []string
	seen := make(map[string]struct{}, len(p.Countries))
	for _, country := range p.Countries {
		country = strings.TrimSpace(country)
		if _, ok := seen[country]; ok || len(country) == 0 {
			continue
		}
		seen[country] = struct{}{}
		countries = append(countries, country)
	}
	p.Countries = countries
	if len(p.Countries) == 0 {
		return errors.ConfigurationError{Message: "at least one country must be provided"}
	}
	if len(p.PBFPath) == 0 {
		return errors.ConfigurationError{Message: "a raw extract location must be provided"}
	}
	if len(p.Output) == 0 {
		return errors.ConfigurationError{Message: "an output location must be provided"}
	}
	if len(p.ConfiguredFilterOutput) > 0 && len(p.ConfiguredFilterName) == 0 {
		return errors.ConfigurationError{Message: "A filter name must be provided for configured filter output!"}
	}
	if len(p.ConfiguredFilterName) > 0 && len(p.ConfiguredFilterOutput) == 0 {
		return errors.ConfigurationError{Message: fmt.Sprintf("A configured filter output must be provided for filter %s!", p.ConfiguredFilterName)}
	}
	if len(p.PBFScheme) == 0 {
		p.PBFScheme = DefaultPBFScheme
	}
	if len(p.AtlasScheme) == 0 {
		p.AtlasScheme = DefaultAtlasScheme
	}
	return nil
}

// ExtractLoadingOptions flattens the parameters every task needs into primitive key-value
// pairs. Filter configurations are read here, on the driver, so that tasks receive their
// contents rather than their locations.
func ExtractLoadingOptions(ctx context.Context, opener storage.Opener, p *Parameters) (map[string]string, error) {
	options := map[string]string{
		PBFPathKey:      p.PBFPath,
		CountryCodesKey: strings.Join(p.Countries, ","),
	}
	configurations := []struct {
		key      string
		location string
	}{
		{filter.SlicingConfigurationKey, p.SlicingConfiguration},
		{filter.EdgeConfigurationKey, p.EdgeConfiguration},
		{filter.WaySectioningConfigurationKey, p.WaySectioningConfiguration},
	}
	for _, conf := range configurations {
		if len(conf.location) == 0 {
			continue
		}
		data, err := storage.ReadFile(ctx, opener, conf.location)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s from %s: %w", conf.key, conf.location, err)
		}
		options[conf.key] = string(data)
	}
	return options, nil
}
