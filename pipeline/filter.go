package pipeline

import (
	"context"
	"fmt"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/filter"
	"github.com/go-sif/atlasgen/geometry"
	"github.com/go-sif/atlasgen/internal/collection"
	"github.com/go-sif/atlasgen/storage"
)

// TaggableFilterFrom reads a taggable filter configuration. Without a configuration the
// predicate matches nothing, which disables the filtered output rather than failing.
func TaggableFilterFrom(ctx context.Context, opener storage.Opener, location string) (atlasgen.TaggablePredicate, error) {
	if len(location) == 0 {
		return atlasgen.Nothing, nil
	}
	data, err := storage.ReadFile(ctx, opener, location)
	if err != nil {
		return nil, fmt.Errorf("unable to read taggable filter %s: %w", location, err)
	}
	f, err := filter.FromConfiguration(data)
	if err != nil {
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("taggable filter %s: %v", location, err)}
	}
	return f.Predicate(), nil
}

// ConfiguredFilterFrom reads the named filter of a configured filter file. It returns nil when
// neither is given, and a ConfigurationError when only one of them is.
func ConfiguredFilterFrom(ctx context.Context, opener storage.Opener, location string, name string) (*filter.ConfiguredFilter, error) {
	if len(location) == 0 && len(name) == 0 {
		return nil, nil
	}
	if len(name) == 0 {
		return nil, errors.ConfigurationError{Message: "A filter name must be provided for configured filter output!"}
	}
	if len(location) == 0 {
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("A configured filter output must be provided for filter %s!", name)}
	}
	data, err := storage.ReadFile(ctx, opener, location)
	if err != nil {
		return nil, fmt.Errorf("unable to read configured filter %s: %w", location, err)
	}
	return filter.ConfiguredFilterFrom(name, data)
}

// filterAtlases cuts every atlas down to the entities matching a predicate, dropping the keys
// left with nothing
func filterAtlases(group JobGroup, atlases *collection.Pairs[atlasgen.Atlas], codec collection.Codec[atlasgen.Atlas], engine geometry.Engine, predicate atlasgen.TaggablePredicate, cut atlasgen.CutType) *collection.Pairs[atlasgen.Atlas] {
	return mapAtlases(group, atlases, codec, func(key string, a atlasgen.Atlas) (atlasgen.Atlas, error) {
		return engine.SubAtlas(a, predicate, cut)
	})
}
