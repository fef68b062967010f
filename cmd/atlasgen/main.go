// Command atlasgen generates sharded atlases for a set of countries from raw extracts
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-sif/atlasgen/cluster"
	"github.com/go-sif/atlasgen/internal/stats"
	"github.com/go-sif/atlasgen/internal/tracing"
	"github.com/go-sif/atlasgen/logging"
	"github.com/go-sif/atlasgen/pipeline"
	"github.com/gofrs/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	envErr := loadDotEnv(".env")

	var configFile string
	root := &cobra.Command{
		Use:           "atlasgen",
		Short:         "Generate sharded atlases from raw extracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newConfig(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, v, envErr)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "Path to a configuration file (yaml, json or toml)")
	registerFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads a dotenv file into the environment. A missing file is not an error.
func loadDotEnv(filename string) error {
	if err := godotenv.Load(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to load %s: %w", filename, err)
	}
	return nil
}

func run(ctx context.Context, v *viper.Viper, envErr error) (err error) {
	logConf, err := loggingConfigFrom(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(logConf)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	jobID := uuid.Must(uuid.NewV4()).String()
	logger = logger.With(zap.String("job", jobID))
	if envErr != nil {
		logger.Debug("Ignoring environment file", zap.Error(envErr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	runStats, err := stats.NewRunStatistics(registry)
	if err != nil {
		return err
	}
	if address := v.GetString(flagMetricsAddress); address != "" {
		metrics := serveMetrics(address, registry, logger)
		defer shutdownMetrics(metrics, logger)
	}

	tracer, shutdownTracer, err := tracing.NewTracer(tracing.Config{Enabled: v.GetBool(flagTrace)})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to flush stage spans", zap.Error(err))
		}
	}()

	retention, err := retentionFrom(v)
	if err != nil {
		return err
	}
	defer func() { _ = retention.Close() }()

	collab := pipeline.Collaborators{
		Retention: retention,
		Workers:   v.GetInt(flagWorkers),
		Logger:    logger,
		Tracer:    tracer,
		Stats:     runStats,
	}
	statusOpts, err := statusOptionsFrom(v)
	if err != nil {
		return err
	}
	if statusOpts != nil {
		status := cluster.NewStatusServer(statusOpts, logger)
		go func() {
			if err := status.Start(); err != nil {
				logger.Error("Stage status service failed", zap.Error(err))
			}
		}()
		defer status.GracefulStop()
		defer func() { status.JobFinished(err) }()
		collab.Status = status
	}

	generator, err := pipeline.NewGenerator(parametersFrom(v), collab)
	if err != nil {
		return err
	}
	err = generator.Run(ctx)
	logger.Info("Generation finished",
		zap.Duration("runtime", generator.Statistics().GetRuntime()),
		zap.Bool("succeeded", err == nil),
	)
	return err
}

func serveMetrics(address string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics", zap.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics endpoint failed", zap.Error(err))
		}
	}()
	return server
}

func shutdownMetrics(server *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Failed to stop metrics endpoint", zap.Error(err))
	}
}
