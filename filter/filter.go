// Package filter builds Taggable predicates from textual definitions.
//
// A definition is a list of alternatives separated by |, each of which is a list of
// conditions separated by &, all of which must hold:
//
//	highway->motorway,trunk&oneway->yes|natural->water
//
// Conditions take the forms key->v1,v2 (any listed value), key->* (any value), key->! (key
// absent) and key->!v (key absent or not v).
package filter

import (
	"fmt"
	"strings"

	"github.com/go-sif/atlasgen"
)

const (
	orSeparator    = "|"
	andSeparator   = "&"
	keySeparator   = "->"
	valueSeparator = ","
	anyValue       = "*"
	negation       = "!"
)

type condition struct {
	key     string
	values  map[string]struct{}
	any     bool
	negated bool
}

func (c condition) test(t atlasgen.Taggable) bool {
	value, ok := t.Tag(c.key)
	if c.negated {
		if !ok {
			return true
		}
		if len(c.values) == 0 {
			return false
		}
		_, excluded := c.values[value]
		return !excluded
	}
	if !ok {
		return false
	}
	if c.any {
		return true
	}
	_, found := c.values[value]
	return found
}

// TaggableFilter is a parsed filter definition
type TaggableFilter struct {
	definition   string
	alternatives [][]condition
}

// Parse parses a filter definition. The empty definition matches nothing.
func Parse(definition string) (*TaggableFilter, error) {
	f := &TaggableFilter{definition: strings.TrimSpace(definition)}
	if f.definition == "" {
		return f, nil
	}
	for _, alternative := range strings.Split(f.definition, orSeparator) {
		var conditions []condition
		for _, term := range strings.Split(alternative, andSeparator) {
			c, err := parseCondition(strings.TrimSpace(term))
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", definition, err)
			}
			conditions = append(conditions, c)
		}
		f.alternatives = append(f.alternatives, conditions)
	}
	return f, nil
}

// MustParse parses a filter definition, panicking if it is invalid
func MustParse(definition string) *TaggableFilter {
	f, err := Parse(definition)
	if err != nil {
		panic(err)
	}
	return f
}

func parseCondition(term string) (condition, error) {
	idx := strings.Index(term, keySeparator)
	if idx <= 0 {
		return condition{}, fmt.Errorf("condition %q must be of the form key->values", term)
	}
	c := condition{key: strings.TrimSpace(term[:idx]), values: make(map[string]struct{})}
	values := strings.TrimSpace(term[idx+len(keySeparator):])
	if strings.HasPrefix(values, negation) {
		c.negated = true
		values = strings.TrimPrefix(values, negation)
	}
	switch {
	case values == anyValue && !c.negated:
		c.any = true
	case values == "" && !c.negated:
		return condition{}, fmt.Errorf("condition %q has no values", term)
	case values != "":
		for _, v := range strings.Split(values, valueSeparator) {
			c.values[strings.TrimSpace(v)] = struct{}{}
		}
	}
	return c, nil
}

// Test returns true iff the Taggable satisfies any alternative of this filter
func (f *TaggableFilter) Test(t atlasgen.Taggable) bool {
	for _, conditions := range f.alternatives {
		matched := true
		for _, c := range conditions {
			if !c.test(t) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// Predicate returns this filter as a TaggablePredicate
func (f *TaggableFilter) Predicate() atlasgen.TaggablePredicate {
	return f.Test
}

// String returns the definition of this filter
func (f *TaggableFilter) String() string {
	return f.definition
}
