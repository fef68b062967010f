package main

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-sif/atlasgen/cluster"
	"github.com/go-sif/atlasgen/internal/pcache"
	"github.com/go-sif/atlasgen/logging"
	"github.com/go-sif/atlasgen/pipeline"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names. They double as viper keys and, upper-cased behind the ATLASGEN_ prefix,
// as environment variables.
const (
	flagCountries                 = "countries"
	flagPreviousOutputForDelta    = "previousOutputForDelta"
	flagPBFs                      = "pbfs"
	flagPBFSharding               = "pbfSharding"
	flagPBFScheme                 = "pbfScheme"
	flagAtlasScheme               = "atlasScheme"
	flagOutput                    = "output"
	flagSharding                  = "sharding"
	flagCountryShapes             = "countryShapes"
	flagFilteredOutput            = "shouldIncludeFilteredOutputConfiguration"
	flagConfiguredFilterOutput    = "configuredFilterOutput"
	flagConfiguredFilterName      = "configuredFilterName"
	flagLineDelimitedGeojson      = "lineDelimitedGeojsonOutput"
	flagAlwaysSlice               = "shouldAlwaysSliceConfiguration"
	flagSlicingConfiguration      = "slicingConfiguration"
	flagEdgeConfiguration         = "edgeConfiguration"
	flagWaySectioning             = "waySectioningConfiguration"
	flagCopyShardingAndBoundaries = "copyShardingAndBoundaries"
	flagWorkers                   = "workers"
	flagCache                     = "cache"
	flagCacheSize                 = "cacheSize"
	flagStatusAddress             = "statusAddress"
	flagMetricsAddress            = "metricsAddress"
	flagTrace                     = "trace"
	flagLogLevel                  = "logLevel"
	flagLogEncoding               = "logEncoding"
)

const (
	envPrefix        = "ATLASGEN"
	memoryCache      = "memory"
	defaultCacheSize = 512
)

func registerFlags(flags *pflag.FlagSet) {
	flags.StringSlice(flagCountries, nil, "Comma separated ISO3 codes of the countries to generate (required)")
	flags.String(flagPreviousOutputForDelta, "", "Output root of a previous run. Deltas are computed against it when set")
	flags.String(flagPBFs, "", "Root of the raw extracts (required)")
	flags.String(flagPBFSharding, "", "Sharding of the raw extracts. Defaults to the atlas sharding")
	flags.String(flagPBFScheme, pipeline.DefaultPBFScheme, "Naming scheme of the raw extracts")
	flags.String(flagAtlasScheme, pipeline.DefaultAtlasScheme, "Naming scheme of the output")
	flags.String(flagOutput, "", "Output root: a local path, file://, s3:// or gs:// location (required)")
	flags.String(flagSharding, "", "Atlas sharding as <type>@<parameter>. Read from <pbfs>/sharding.txt when empty")
	flags.String(flagCountryShapes, "", "Country boundary file. Read from <pbfs>/boundaries.json when empty")
	flags.String(flagFilteredOutput, "", "Taggable filter configuration of the filtered output")
	flags.String(flagConfiguredFilterOutput, "", "Configured filter file of the configured output")
	flags.String(flagConfiguredFilterName, "", "Name of the filter to use within the configured filter file")
	flags.Bool(flagLineDelimitedGeojson, false, "Export the way sectioned atlases as line-delimited geojson")
	flags.String(flagAlwaysSlice, "", "Taggable filter configuration of features sliced even when they cross no boundary")
	flags.String(flagSlicingConfiguration, "", "Slicing filter configuration")
	flags.String(flagEdgeConfiguration, "", "Edge filter configuration")
	flags.String(flagWaySectioning, "", "Way sectioning filter configuration")
	flags.Bool(flagCopyShardingAndBoundaries, false, "Copy sharding.txt and boundaries.json next to the way sectioned output")
	flags.Int(flagWorkers, runtime.NumCPU(), "Number of partitions computed concurrently")
	flags.String(flagCache, memoryCache, "Retention backend for stage results: memory or redis://host:port/db")
	flags.Int(flagCacheSize, defaultCacheSize, "Number of partitions retained in memory")
	flags.String(flagStatusAddress, "", "Listen address of the gRPC stage status service, e.g. :9090")
	flags.String(flagMetricsAddress, "", "Listen address of the Prometheus /metrics endpoint, e.g. :2112")
	flags.Bool(flagTrace, false, "Export stage spans to stdout")
	flags.String(flagLogLevel, "info", "Log level (trace, debug, info, warn, error)")
	flags.String(flagLogEncoding, "console", "Log encoding (console, json)")
}

// newConfig binds a flag set to a fresh viper instance, so that each setting can come from a
// flag, an ATLASGEN_ environment variable or a config file, in that order of precedence
func newConfig(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("unable to bind flags: %w", err)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

func parametersFrom(v *viper.Viper) pipeline.Parameters {
	return pipeline.Parameters{
		Countries:              countriesFrom(v.GetStringSlice(flagCountries)),
		PreviousOutputForDelta: v.GetString(flagPreviousOutputForDelta),
		PBFPath:                v.GetString(flagPBFs),
		PBFSharding:            v.GetString(flagPBFSharding),
		PBFScheme:              v.GetString(flagPBFScheme),
		AtlasScheme:            v.GetString(flagAtlasScheme),
		Output:                 v.GetString(flagOutput),
		Sharding:               v.GetString(flagSharding),
		CountryShapes:          v.GetString(flagCountryShapes),

		ShouldIncludeFilteredOutputConfiguration: v.GetString(flagFilteredOutput),
		ConfiguredFilterOutput:                   v.GetString(flagConfiguredFilterOutput),
		ConfiguredFilterName:                     v.GetString(flagConfiguredFilterName),
		LineDelimitedGeojsonOutput:               v.GetBool(flagLineDelimitedGeojson),
		ShouldAlwaysSliceConfiguration:           v.GetString(flagAlwaysSlice),

		SlicingConfiguration:       v.GetString(flagSlicingConfiguration),
		EdgeConfiguration:          v.GetString(flagEdgeConfiguration),
		WaySectioningConfiguration: v.GetString(flagWaySectioning),

		CopyShardingAndBoundaries: v.GetBool(flagCopyShardingAndBoundaries),
	}
}

// countriesFrom accepts both repeated flags and a single comma separated environment value
func countriesFrom(values []string) []string {
	var countries []string
	for _, value := range values {
		for _, country := range strings.Split(value, ",") {
			if country = strings.TrimSpace(country); country != "" {
				countries = append(countries, country)
			}
		}
	}
	return countries
}

func loggingConfigFrom(v *viper.Viper) (logging.Config, error) {
	level, err := logging.StringToLogLevel(v.GetString(flagLogLevel))
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{Level: level, Encoding: v.GetString(flagLogEncoding)}, nil
}

func retentionFrom(v *viper.Viper) (pcache.RetentionStore, error) {
	backend := v.GetString(flagCache)
	switch {
	case backend == "" || backend == memoryCache:
		return pcache.NewLRU(&pcache.LRUConfig{Size: v.GetInt(flagCacheSize), CompressedFraction: 0.5})
	case strings.HasPrefix(backend, "redis://"), strings.HasPrefix(backend, "rediss://"):
		return pcache.NewRedis(backend, 0)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", backend)
	}
}

// statusOptionsFrom parses a listen address; nil means the status service is disabled
func statusOptionsFrom(v *viper.Viper) (*cluster.StatusOptions, error) {
	address := v.GetString(flagStatusAddress)
	if address == "" {
		return nil, nil
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid status address %s: %w", address, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid status port %s: %w", port, err)
	}
	return &cluster.StatusOptions{Host: host, Port: p}, nil
}
