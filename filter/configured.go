package filter

import (
	"fmt"
	"sort"

	"github.com/go-sif/atlasgen/errors"
	"gopkg.in/yaml.v3"
)

// ConfiguredFilter is a named filter from a configured filter file
type ConfiguredFilter struct {
	*TaggableFilter
	Name        string
	Description string
}

type configuredFilterFile struct {
	Filters map[string]struct {
		TaggableFilter string `yaml:"taggableFilter"`
		Description    string `yaml:"description"`
	} `yaml:"filters"`
}

// ConfiguredFilterFrom selects a named filter from a configured filter file. The file is YAML
// (or JSON):
//
//	filters:
//	  water:
//	    taggableFilter: natural->water|waterway->*
//	    description: inland water
func ConfiguredFilterFrom(name string, config []byte) (*ConfiguredFilter, error) {
	var file configuredFilterFile
	if err := yaml.Unmarshal(config, &file); err != nil {
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("unable to parse configured filters: %v", err)}
	}
	entry, ok := file.Filters[name]
	if !ok {
		known := make([]string, 0, len(file.Filters))
		for n := range file.Filters {
			known = append(known, n)
		}
		sort.Strings(known)
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("no configured filter named %q (known: %v)", name, known)}
	}
	f, err := Parse(entry.TaggableFilter)
	if err != nil {
		return nil, errors.ConfigurationError{Message: err.Error()}
	}
	return &ConfiguredFilter{TaggableFilter: f, Name: name, Description: entry.Description}, nil
}
