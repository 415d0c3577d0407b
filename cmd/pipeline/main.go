package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"apod_pipeline/internal/config"
	"apod_pipeline/internal/metrics"
	"apod_pipeline/internal/publisher"
	"apod_pipeline/internal/scheduler"
	"apod_pipeline/internal/service"
	"apod_pipeline/internal/source/apod"
	"apod_pipeline/internal/storage/csvfile"
	"apod_pipeline/internal/storage/postgres"
	"apod_pipeline/internal/versioning"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	backfillDate := flag.String("date", "", "run once for a single date (YYYY-MM-DD) and exit")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Optional RabbitMQ publisher for record-loaded events
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	// Initialize stores
	recordStore := postgres.NewRecordStore(db)
	runStateStore := postgres.NewRunStateStore(db)
	txManager := postgres.NewTransactionManager(db)
	fileStore := csvfile.NewStore(cfg.CSV.Path, logger)

	// Schema must exist before the first run's Exists check, otherwise a
	// fresh database misreports the first record as an update.
	if err := recordStore.EnsureSchema(context.Background()); err != nil {
		logger.Error("failed to create apod_data table", "error", err)
		os.Exit(1)
	}
	if err := runStateStore.EnsureSchema(context.Background()); err != nil {
		logger.Error("failed to create run_state table", "error", err)
		os.Exit(1)
	}

	// Initialize APOD source
	apodSource := apod.New(apod.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Timeout: cfg.API.Timeout,
	}, logger)

	// Optional versioning (dvc track + git commit)
	var tracker service.Tracker
	var committer service.Committer
	if cfg.Versioning.Enabled {
		runner := versioning.NewExecRunner()
		tracker = versioning.NewDVC(runner, cfg.Versioning.Workdir, cfg.Versioning.DVCBin, logger)
		committer = versioning.NewGit(runner, cfg.Versioning.Workdir, cfg.Versioning.GitBin, logger)
	}

	// Optional prometheus metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		go func() {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, metrics.Handler(reg)); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	pipelineService := service.NewPipelineService(
		apodSource,
		recordStore,
		fileStore,
		runStateStore,
		txManager,
		tracker,
		committer,
		pub,
		m,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *backfillDate != "" {
		runCtx, cancelRun := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancelRun()
		if _, err := pipelineService.RunForDate(runCtx, *backfillDate); err != nil {
			logger.Error("backfill run failed", "date", *backfillDate, "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewScheduler(pipelineService, scheduler.Config{
		Interval:    cfg.Pipeline.Interval,
		RunTimeout:  cfg.Pipeline.RunTimeout,
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		RetryDelay:  cfg.Pipeline.RetryDelay,
	}, logger)

	logger.Info("starting apod pipeline",
		"source", apodSource.Name(),
		"interval", cfg.Pipeline.Interval,
		"csv_path", cfg.CSV.Path,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
