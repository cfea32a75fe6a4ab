package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/config"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/httpapi"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/ingest"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/lambdafn"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/logging"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/observability"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/ratelimit"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/table"
	"github.com/GuilhermeSoares009/otel-lambda-ingest/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if cfg.InLambda() {
		runLambda(cfg, logger)
		return
	}
	runLocal(cfg, logger)
}

// runLambda builds the process-wide clients once and hands control to the
// Lambda runtime.
func runLambda(cfg *config.Config, logger *slog.Logger) {
	ctx := context.Background()

	telemetry, err := observability.Init(ctx, observabilityConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to initialize observability", "err", err)
		os.Exit(2)
	}

	writer, err := table.NewDynamoTable(ctx, table.DynamoConfig{
		TableName: cfg.TableName,
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.DynamoEndpoint,
	})
	if err != nil {
		logger.Error("failed to create DynamoDB table client", "err", err)
		os.Exit(2)
	}

	handler := ingest.NewHandler(ingest.Options{
		Fetcher:   upstream.NewClient(cfg.UpstreamURL, cfg.HTTPTimeout, logger),
		Table:     writer,
		Auxiliary: cfg.AuxiliaryFetch,
		Profile:   cfg.Profile,
		Logger:    logger,
	})

	logger.Info("starting lambda handler",
		slog.String("profile", cfg.Profile),
		slog.String("table", writer.Name()),
		slog.Bool("auxiliary_fetch", cfg.AuxiliaryFetch),
	)
	lambdafn.New(handler).Start(telemetry.LambdaOptions()...)
}

// runLocal serves every profile behind one local gateway. Telemetry follows
// the configured profile for the whole process.
func runLocal(cfg *config.Config, logger *slog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Init(ctx, observabilityConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to initialize observability", "err", err)
		os.Exit(2)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down telemetry", "err", err)
		}
	}()

	var writer table.Writer
	var records *table.MemoryTable
	if cfg.TableName != "" {
		writer, err = table.NewDynamoTable(ctx, table.DynamoConfig{
			TableName: cfg.TableName,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.DynamoEndpoint,
		})
		if err != nil {
			logger.Error("failed to create DynamoDB table client", "err", err)
			os.Exit(2)
		}
	} else {
		records = table.NewMemoryTable(0)
		writer = records
	}

	client := upstream.NewClient(cfg.UpstreamURL, cfg.HTTPTimeout, logger)
	ingesters := make(map[string]httpapi.Ingester, 3)
	for _, profile := range config.Profiles() {
		auxiliary := profile == config.ProfileCollector
		if profile == cfg.Profile {
			auxiliary = cfg.AuxiliaryFetch
		}
		ingesters[profile] = ingest.NewHandler(ingest.Options{
			Fetcher:   client,
			Table:     writer,
			Auxiliary: auxiliary,
			Profile:   profile,
			Logger:    logger,
		})
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit, time.Minute)
	server := httpapi.NewServer(limiter, ingesters, records, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		logger.Info("local gateway listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func observabilityConfig(cfg *config.Config, logger *slog.Logger) observability.Config {
	return observability.Config{
		Profile:      cfg.Profile,
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Logger:       logger,
	}
}
