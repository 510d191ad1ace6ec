package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gw-transfer-batch/internal/api/handlers"
	"gw-transfer-batch/internal/api/middlew"
	"gw-transfer-batch/internal/config"
	"gw-transfer-batch/internal/db"
	"gw-transfer-batch/internal/kafka"
	"gw-transfer-batch/internal/scheduler"
	"gw-transfer-batch/internal/server"
	"gw-transfer-batch/internal/service"
	"gw-transfer-batch/internal/storage"
	"gw-transfer-batch/internal/storage/mongodb"
	"gw-transfer-batch/internal/storage/postgres"
	"gw-transfer-batch/internal/storage/sqlite"
	"gw-transfer-batch/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type App struct {
	log       *slog.Logger
	logFile   *os.File
	cfg       *config.Config
	loc       *time.Location
	server    *server.Server
	repo      storage.TransferRepository
	journal   storage.RunJournal
	producer  kafka.Producer
	runner    *service.BatchRunner
	scheduler *scheduler.Scheduler
}

func NewApp() (*App, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}

	loggerWithFile, err := logger.NewLoggerWithFile(cfg.Log.File, logger.ParseLevel(cfg.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("logger initialization failed: %w", err)
	}
	log := loggerWithFile.Logger
	log.Info("configuration loaded",
		slog.String("storage", cfg.StorageDriver),
		slog.Bool("debug_mode", cfg.Schedule.DebugMode))

	loc, err := scheduler.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	repo, err := newTransferRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		log.Info("initializing kafka producer", slog.Any("brokers", cfg.Kafka.Brokers))
		producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Timeout, log)
		if err != nil {
			return nil, fmt.Errorf("kafka initialization failed: %w", err)
		}
	} else {
		log.Info("kafka disabled in configuration")
		producer = kafka.NewNoOpProducer(log)
	}

	var journal storage.RunJournal
	if cfg.MongoDB.Enabled {
		log.Info("connecting to mongodb run journal", slog.String("database", cfg.MongoDB.Database))
		journal, err = mongodb.NewRunJournal(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Collection, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, fmt.Errorf("mongodb initialization failed: %w", err)
		}
	} else {
		log.Info("run journal disabled in configuration")
		journal = storage.NewNopRunJournal(log)
	}

	return &App{
		log:      log,
		logFile:  loggerWithFile.LogFile,
		cfg:      cfg,
		loc:      loc,
		repo:     repo,
		journal:  journal,
		producer: producer,
	}, nil
}

func newTransferRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.TransferRepository, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverSQLite:
		log.Info("using sqlite store", slog.String("path", cfg.SQLite.Path))
		repo, err := sqlite.NewTransferRepository(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite initialization failed: %w", err)
		}
		return repo, nil
	default:
		log.Info("running database migrations", slog.String("path", cfg.DB.MigrationsPath))
		if err := db.RunMigrations(cfg.DB.MigrationURL(), cfg.DB.MigrationsPath); err != nil {
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}

		// Each chunk holds one connection for its transaction.
		parallelism := cfg.Batch.Parallelism
		if parallelism == 0 {
			parallelism = runtime.NumCPU()
		}
		poolCfg := db.PoolConfig{
			MaxConns:          parallelism + 4,
			MinConns:          2,
			HealthCheckPeriod: 30 * time.Second,
			PoolTimeout:       5 * time.Second,
			RetryAttempts:     5,
			RetryDelay:        time.Second,
		}

		pool, err := db.NewPool(ctx, cfg.DB.DSN(), poolCfg, log)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		log.Info("database connection established")
		return postgres.NewTransferRepository(pool), nil
	}
}

// BuildBatchLayer assembles the pipeline, the runner and the daily scheduler.
func (a *App) BuildBatchLayer() {
	processor := service.NewProcessor(a.repo, service.ProcessorConfig{
		Delimiter:    a.cfg.Batch.DelimiterRune(),
		RejectionDir: a.cfg.Batch.DataDir,
		ChunkSize:    a.cfg.Batch.ChunkSize,
		Parallelism:  a.cfg.Batch.Parallelism,
		ReasonColumn: a.cfg.Batch.ReasonColumn,
	})

	a.runner = service.NewBatchRunner(processor, a.producer, a.journal, a.log, service.RunnerConfig{
		DataDir:      a.cfg.Batch.DataDir,
		DefaultInput: a.cfg.Batch.InputPath(),
		LogDir:       a.cfg.Batch.LogDir,
		Location:     a.loc,
		Parallelism:  processor.Parallelism(),
	})

	a.scheduler = scheduler.New(func(ctx context.Context) error {
		_, err := a.runner.Run(ctx, service.RunRequest{})
		return err
	}, scheduler.Config{
		Hour:      a.cfg.Schedule.Hour,
		Location:  a.loc,
		DebugMode: a.cfg.Schedule.DebugMode,
	}, scheduler.SystemClock{}, a.log)

	a.log.Info("batch layer assembled",
		slog.Int("chunk_size", a.cfg.Batch.ChunkSize),
		slog.Int("parallelism", processor.Parallelism()))
}

// BuildTriggerLayer registers the HTTP trigger. It needs BuildBatchLayer first.
func (a *App) BuildTriggerLayer() error {
	if a.runner == nil {
		err := errors.New("runner not initialized, call BuildBatchLayer first")
		a.log.Error(err.Error())
		return err
	}
	if !a.cfg.HTTPEnabled {
		a.log.Info("http trigger disabled in configuration")
		return nil
	}

	a.server = server.NewServer(a.cfg.HTTPPort)
	a.server.Router.Use(middleware.RequestID)
	a.server.Router.Use(middlew.WithLogger(a.log))
	a.server.Router.Use(middleware.RealIP)
	a.server.Router.Use(middleware.Recoverer)

	runHandler := handlers.NewRunHandler(a.runner)

	a.server.Router.Get("/health", handlers.Health)
	a.server.RegisterSwagger()
	a.server.Router.Group(func(r chi.Router) {
		r.Use(middlew.RequireOperator([]byte(a.cfg.Auth.OperatorSecret)))

		r.Post("/api/v1/runs", runHandler.StartRun)
		r.Get("/api/v1/runs/{runID}", runHandler.GetRun)
	})

	if a.cfg.Auth.OperatorSecret == "" {
		a.log.Warn("OPERATOR_JWT_SECRET is empty, run endpoints are not authenticated")
	}
	a.log.Info("trigger layer assembled", slog.String("addr", a.server.Addr()))
	return nil
}

// Run starts the scheduler and the HTTP trigger and blocks until a signal
// arrives. In debug mode it returns once the single run is over.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler == nil {
		return errors.New("scheduler not initialized, call BuildBatchLayer first")
	}

	if a.cfg.Schedule.DebugMode {
		err := a.scheduler.Run(ctx)
		a.close()
		return err
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		a.log.Info("http server starting", slog.String("addr", a.server.Addr()))
		go func() {
			if err := a.server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("http server failed: %w", err)
			}
		}()
	}

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- a.scheduler.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		stop()
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	a.log.Info("application stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Error("http server shutdown failed", slog.String("error", err.Error()))
		}
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		a.log.Warn("timeout waiting for the running batch, forcing stop")
	}

	a.close()
	return runErr
}

func (a *App) close() {
	if err := a.producer.Close(); err != nil {
		a.log.Error("failed to close kafka producer", slog.String("error", err.Error()))
	}

	if err := a.journal.Close(); err != nil {
		a.log.Error("failed to close run journal", slog.String("error", err.Error()))
	}

	a.log.Info("closing transfer store")
	if err := a.repo.Close(); err != nil {
		a.log.Error("failed to close transfer store", slog.String("error", err.Error()))
	}

	a.log.Info("application stopped")
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}
}
