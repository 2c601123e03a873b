package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/evstore/internal/ai"
	"github.com/xxxsen/evstore/internal/config"
	"github.com/xxxsen/evstore/internal/embedcache"
	"github.com/xxxsen/evstore/internal/exportsink"
	"github.com/xxxsen/evstore/internal/handler"
	"github.com/xxxsen/evstore/internal/job"
	"github.com/xxxsen/evstore/internal/middleware"
	"github.com/xxxsen/evstore/internal/quota"
	"github.com/xxxsen/evstore/internal/schedule"
	"github.com/xxxsen/evstore/internal/service"
	"github.com/xxxsen/evstore/internal/store"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "evstore",
		Short: "evstore session vector store server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run evstore server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
		zap.Int("dimension", cfg.AI.Dimension),
		zap.Duration("session_ttl", cfg.Session.TTL()),
		zap.String("export_sink", cfg.Export.Type),
	)

	providerArgs := cfg.AI.Data
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewManager(aiProvider, ai.ManagerConfig{
		Model:       cfg.AI.Model,
		Dimension:   cfg.AI.Dimension,
		Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		MaxParallel: cfg.AI.MaxParallel,
		BatchSize:   cfg.AI.BatchSize,
		RateLimit:   cfg.AI.RateLimit,
	})
	queryEmbedder := embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.QueryCacheSize, cfg.Session.TTL())

	sessionStore := store.New(store.Config{
		Dimension:           cfg.AI.Dimension,
		TTL:                 cfg.Session.TTL(),
		MaxChunksPerSession: cfg.Session.MaxChunks,
	})
	tracker := quota.NewTracker(cfg.Quota.Limit, cfg.Quota.Window())
	sink, err := exportsink.New(cfg.Export)
	if err != nil {
		return fmt.Errorf("init export sink: %w", err)
	}

	ingestService := service.NewIngestService(sessionStore, tracker, embedder, service.IngestLimits{
		MaxBatchSize:  cfg.Session.MaxBatchSize,
		MaxTextLength: cfg.Session.MaxTextLength,
	})
	retrievalService := service.NewRetrievalService(sessionStore, queryEmbedder, cfg.Query.MaxK)
	sessionService := service.NewSessionService(sessionStore)
	exportService := service.NewExportService(sessionStore, sink)

	deps := handler.RouterDeps{
		Ingest:          handler.NewIngestHandler(ingestService),
		Query:           handler.NewQueryHandler(retrievalService),
		Sessions:        handler.NewSessionHandler(sessionService),
		Export:          handler.NewExportHandler(exportService),
		JWTSecret:       []byte(cfg.JWTSecret),
		RateLimitWindow: cfg.Quota.IngestInterval(),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewSessionSweepJob(sessionStore), cfg.Session.SweepSpec); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
