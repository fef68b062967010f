package filter

import "github.com/go-sif/atlasgen"

// Keys of the loading options shared with every task
const (
	SlicingConfigurationKey       = "slicing.configuration"
	EdgeConfigurationKey          = "edge.configuration"
	WaySectioningConfigurationKey = "way.sectioning.configuration"
)

const (
	// DefaultSlicingFilter selects the features whose relations are sliced against boundaries
	DefaultSlicingFilter = "natural->water,coastline|waterway->*|place->islet,island|boundary->*"
	// DefaultEdgeFilter selects the features which become navigable edges
	DefaultEdgeFilter = "highway->*|route->ferry"
	// DefaultWaySectioningFilter selects the lines which are sectioned at shared nodes
	DefaultWaySectioningFilter = "highway->*"
)

func fromOptions(options map[string]string, key string, fallback string) (atlasgen.TaggablePredicate, error) {
	return PredicateFromConfiguration(options[key], MustParse(fallback).Predicate())
}

// SlicingFilter builds the slicing filter from loading options
func SlicingFilter(options map[string]string) (atlasgen.TaggablePredicate, error) {
	return fromOptions(options, SlicingConfigurationKey, DefaultSlicingFilter)
}

// EdgeFilter builds the edge filter from loading options
func EdgeFilter(options map[string]string) (atlasgen.TaggablePredicate, error) {
	return fromOptions(options, EdgeConfigurationKey, DefaultEdgeFilter)
}

// WaySectioningFilter builds the way sectioning filter from loading options
func WaySectioningFilter(options map[string]string) (atlasgen.TaggablePredicate, error) {
	return fromOptions(options, WaySectioningConfigurationKey, DefaultWaySectioningFilter)
}
