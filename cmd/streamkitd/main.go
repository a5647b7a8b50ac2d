// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamkitd runs the StreamKit pipeline execution engine: the
// admin HTTP surface (createSession/destroySession/getPipeline/process)
// backed by a dynamic engine and a oneshot engine sharing one plugin-aware
// node registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/streamkit/streamkit/internal/adminapi"
	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/engineprofile"
	xglog "github.com/streamkit/streamkit/internal/log"
	"github.com/streamkit/streamkit/internal/metrics"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/node/builtin"
	"github.com/streamkit/streamkit/internal/oneshotengine"
	"github.com/streamkit/streamkit/internal/pluginhost"
	"github.com/streamkit/streamkit/internal/rescache"
	"github.com/streamkit/streamkit/internal/telemetry"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to engine profile config file (YAML)")
	listenAddr := flag.String("listen", envOr("STREAMKIT_LISTEN", ":8080"), "admin HTTP surface listen address")
	metricsAddr := flag.String("metrics-listen", envOr("STREAMKIT_METRICS_LISTEN", ":9090"), "metrics listen address")
	dataDir := flag.String("data-dir", envOr("STREAMKIT_DATA_DIR", "./data"), "directory for the plugin registry database")
	dynamicMaxConcurrent := flag.Int("dynamic-max-sessions", envOrInt("STREAMKIT_DYNAMIC_MAX_SESSIONS", 64), "max concurrent dynamic sessions, 0 for unbounded")
	oneshotMaxConcurrent := flag.Int64("oneshot-max-concurrent", int64(envOrInt("STREAMKIT_ONESHOT_MAX_CONCURRENT", 16)), "max concurrent oneshot runs")
	oneshotDeadline := flag.Duration("oneshot-deadline", 60*time.Second, "per-request deadline for a oneshot run")
	rateLimitRPS := flag.Int("rate-limit-rps", envOrInt("STREAMKIT_RATE_LIMIT_RPS", 50), "admin surface requests per second per client IP, 0 disables")
	tracingEnabled := flag.Bool("tracing-enabled", envOr("STREAMKIT_TRACING_ENABLED", "false") == "true", "enable OpenTelemetry tracing")
	tracingExporter := flag.String("tracing-exporter", envOr("STREAMKIT_TRACING_EXPORTER", "grpc"), "OTLP exporter transport: grpc or http")
	tracingEndpoint := flag.String("tracing-endpoint", envOr("STREAMKIT_TRACING_ENDPOINT", "localhost:4317"), "OTLP collector endpoint")
	tracingSampleRate := flag.Float64("tracing-sample-rate", 1.0, "trace sampling rate, 0.0 to 1.0")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamkitd %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: envOr("STREAMKIT_LOG_LEVEL", "info"), Service: "streamkitd", Version: version})
	logger := xglog.WithComponent("streamkitd")

	tracingProvider, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:        *tracingEnabled,
		ServiceName:    "streamkitd",
		ServiceVersion: version,
		Environment:    envOr("STREAMKIT_ENV", "production"),
		ExporterType:   *tracingExporter,
		Endpoint:       *tracingEndpoint,
		SamplingRate:   *tracingSampleRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing provider shutdown error")
		}
	}()

	cfg, err := engineprofile.NewLoader(*configPath).Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load engine profile")
	}
	logger.Info().
		Str("profile", string(cfg.Profile)).
		Str("plugin_dir", cfg.PluginDir).
		Msg("engine profile loaded")

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("data_dir", *dataDir).Msg("failed to create data directory")
	}
	if err := os.MkdirAll(cfg.PluginDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("plugin_dir", cfg.PluginDir).Msg("failed to create plugin directory")
	}

	base := node.NewMapRegistry()
	builtin.Register(base)

	cache := rescache.New(cfg.ResourceCache.MaxBytes, cfg.ResourceCache.KeepModelsLoaded, xglog.WithComponent("rescache"))

	store, err := pluginhost.OpenStore(filepath.Join(*dataDir, "plugins.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open plugin registry")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close plugin registry")
		}
	}()

	host := pluginhost.NewHost(base, store, cache, xglog.WithComponent("pluginhost"))
	persisted, err := store.LoadAll()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read persisted plugin registrations")
	}
	for _, rec := range persisted {
		loader := loaderForDialect(rec.Dialect)
		if loader == nil {
			logger.Warn().Str("dialect", string(rec.Dialect)).Str("kind", rec.Kind).Msg("pluginhost: unknown dialect in persisted registration, skipping")
			continue
		}
		if _, err := host.Load(loader, rec.Path); err != nil {
			logger.Warn().Err(err).Str("kind", rec.Kind).Msg("pluginhost: failed to reload persisted plugin")
		}
	}

	watcher := pluginhost.NewWatcher(host, cfg.PluginDir, pluginhost.NewNativeLoader(), pluginhost.NewWASMLoader(), xglog.WithComponent("pluginhost.watcher"))

	dynamic := dynamicengine.NewEngine(host, cfg.DynamicProfile(), *dynamicMaxConcurrent, 30*time.Second, xglog.WithComponent("dynamicengine"))
	oneshot := oneshotengine.NewEngine(host, cfg.OneshotProfile(), *oneshotMaxConcurrent, xglog.WithComponent("oneshotengine"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(dynamic.Collector(), oneshot.Collector())
	reg.MustRegister(metrics.EventBusDroppedTotal, metrics.NodeProcessDuration, metrics.NodeFailuresTotal,
		metrics.PluginLoadsTotal, metrics.PluginPanicsTotal, metrics.ControlRequestDuration,
		metrics.AdminRequestsTotal, metrics.ResourceCacheUsedBytes, metrics.ResourceCacheEntries,
		metrics.ResourceCacheEvictionsTotal)

	adminServer := &adminapi.Server{
		Dynamic:         dynamic,
		Oneshot:         oneshot,
		Registry:        host,
		IsKindAllowed:   nil,
		Logger:          xglog.WithComponent("adminapi"),
		RateLimitRPS:    *rateLimitRPS,
		OneshotDeadline: *oneshotDeadline,
	}

	httpServer := &http.Server{Addr: *listenAddr, Handler: adminServer.Handler()}
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return watcher.Run(gctx) })

	g.Go(func() error {
		var lastEvictions int64
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				metrics.ObserveResourceCache("shared", cache, &lastEvictions)
			}
		}
	})

	g.Go(func() error {
		logger.Info().Str("addr", *listenAddr).Msg("admin api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", *metricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	<-gctx.Done()
	logger.Info().Msg("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin api shutdown error")
	}
	if err := oneshot.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("oneshot engine drain error")
	}
	if err := dynamic.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("dynamic engine shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("streamkitd exited with error")
	}
	logger.Info().Msg("streamkitd stopped")
}

func loaderForDialect(dialect pluginhost.Dialect) pluginhost.Loader {
	switch dialect {
	case pluginhost.DialectNative:
		return pluginhost.NewNativeLoader()
	case pluginhost.DialectWASM:
		return pluginhost.NewWASMLoader()
	default:
		return nil
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
