package filter

import (
	"fmt"
	"strings"

	"github.com/go-sif/atlasgen"
	"github.com/tidwall/gjson"
)

// FromConfiguration builds a TaggableFilter from a JSON filter configuration, of the form
// {"filter": "<definition>"} or {"filters": ["<definition>", ...]}, the latter matching if any
// of its definitions does
func FromConfiguration(config []byte) (*TaggableFilter, error) {
	if !gjson.ValidBytes(config) {
		return nil, fmt.Errorf("filter configuration is not valid JSON")
	}
	parsed := gjson.ParseBytes(config)
	var definitions []string
	if single := parsed.Get("filter"); single.Exists() {
		definitions = append(definitions, single.String())
	}
	for _, definition := range parsed.Get("filters").Array() {
		definitions = append(definitions, definition.String())
	}
	if len(definitions) == 0 {
		return nil, fmt.Errorf("filter configuration defines no filter")
	}
	return Parse(strings.Join(definitions, orSeparator))
}

// PredicateFromConfiguration builds a predicate from a JSON filter configuration, or returns
// fallback when there is no configuration
func PredicateFromConfiguration(config string, fallback atlasgen.TaggablePredicate) (atlasgen.TaggablePredicate, error) {
	if strings.TrimSpace(config) == "" {
		return fallback, nil
	}
	f, err := FromConfiguration([]byte(config))
	if err != nil {
		return nil, err
	}
	return f.Predicate(), nil
}
