package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/mintbalance/internal/ai"
	"github.com/dvloznov/mintbalance/internal/api"
	"github.com/dvloznov/mintbalance/internal/backup"
	"github.com/dvloznov/mintbalance/internal/config"
	infraBQ "github.com/dvloznov/mintbalance/internal/infra/bigquery"
	"github.com/dvloznov/mintbalance/internal/jobs/inmemory"
	"github.com/dvloznov/mintbalance/internal/ledger"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/dvloznov/mintbalance/internal/notionsync"
	"github.com/dvloznov/mintbalance/internal/store"
	"github.com/dvloznov/mintbalance/internal/worker"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", config.DefaultPath(), "path to mintbalance.yaml")
		port       = flag.String("port", "", "HTTP server port (overrides server.port)")
	)
	flag.Parse()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log, err := logger.Configure(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to configure logger")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open ledger")
	}
	defer repo.Close()

	policy, err := cfg.AI.FailurePolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid AI failure policy")
	}
	opts := []ledger.Option{ledger.WithPolicy(policy)}
	if cfg.AI.Mode != "" {
		opts = append(opts, ledger.WithMode(ai.Kind(cfg.AI.Mode)))
	}
	svc := ledger.NewService(repo, ledger.NewBackends(cfg.AI), opts...)

	// Optional integrations for background jobs
	var workerOpts []worker.Option
	if cfg.Backup.Bucket != "" {
		objects, err := backup.NewGCSObjectStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer objects.Close()
		workerOpts = append(workerOpts, worker.WithBackup(backup.NewService(objects, cfg.Backup.Bucket, cfg.Backup.Prefix)))
	} else {
		log.Warn().Msg("No backup bucket configured - backup jobs will fail")
	}
	if cfg.BigQuery.ProjectID != "" {
		bq, err := infraBQ.NewBigQueryTransactionRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer bq.Close()
		if err := bq.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare BigQuery table")
		}
		workerOpts = append(workerOpts, worker.WithExport(bq))
	}
	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		workerOpts = append(workerOpts, worker.WithNotion(worker.Notion{
			Client:     notionsync.NewNotionClient(cfg.Notion.Token),
			DatabaseID: cfg.Notion.DatabaseID,
		}))
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.AI.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := worker.NewHandler(svc, workerOpts...)
	if err := jobQueue.Start(workerCtx, jobHandler.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.AI.Workers).Msg("Job workers started")

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.Deps{
			Ledger:      svc,
			Publisher:   jobQueue,
			JobStore:    jobStore,
			Log:         log,
			AllowOrigin: cfg.Server.AllowOrigin,
			AuthToken:   cfg.Server.AuthToken,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("store", cfg.Store.Path).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before the ledger closes
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
