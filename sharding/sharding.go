// Package sharding implements the strategies used to divide the world into Shards
package sharding

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/storage"
)

const (
	// SlippyType identifies SlippySharding specifications (slippy@<zoom>)
	SlippyType = "slippy"
	// DynamicType identifies DynamicSharding specifications (dynamic@<location of the leaf listing>)
	DynamicType = "dynamic"
)

// ForString builds a Sharding from its specification string, <type>@<parameter>
func ForString(ctx context.Context, spec string, opener storage.Opener) (atlasgen.Sharding, error) {
	idx := strings.Index(spec, "@")
	if idx < 0 {
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("sharding %q must be of the form <type>@<parameter>", spec)}
	}
	shardingType, parameter := spec[:idx], spec[idx+1:]
	switch shardingType {
	case SlippyType:
		zoom, err := strconv.Atoi(parameter)
		if err != nil {
			return nil, errors.ConfigurationError{Message: fmt.Sprintf("invalid slippy sharding zoom %q", parameter)}
		}
		s, err := NewSlippySharding(zoom)
		if err != nil {
			return nil, errors.ConfigurationError{Message: err.Error()}
		}
		return s, nil
	case DynamicType:
		definition, err := storage.ReadFile(ctx, opener, parameter)
		if err != nil {
			return nil, fmt.Errorf("unable to read dynamic sharding %s: %w", parameter, err)
		}
		return NewDynamicSharding(parameter, definition)
	default:
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("unknown sharding type %q", shardingType)}
	}
}
