package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alexanderramin/complytrack/internal/cli"
	"github.com/alexanderramin/complytrack/internal/config"
	"github.com/alexanderramin/complytrack/internal/db"
	"github.com/alexanderramin/complytrack/internal/events"
	"github.com/alexanderramin/complytrack/internal/repository"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.NewLoader(bootLogger).Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("finding home directory: %w", err)
	}

	// Open database
	database, err := db.OpenDB(cfg.DatabasePath(home))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	taskRepo := repository.NewSQLiteTaskRepo(database)
	trainingRepo := repository.NewSQLiteTrainingRepo(database)
	matrixRepo := repository.NewSQLiteMatrixRepo(database)
	certRepo := repository.NewSQLiteCertificateRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsObserver, err := service.NewPrometheusUseCaseObserver(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	observers := []service.UseCaseObserver{metricsObserver}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		observers = append(observers, service.NewLogUseCaseObserver(os.Stderr))
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		nats, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return err
		}
		defer nats.Close()
		publisher = nats
	}

	clock := service.SystemClock{}
	opts := []service.Option{
		service.WithClock(clock),
		service.WithPublisher(publisher),
		service.WithObserver(service.MultiUseCaseObserver(observers...)),
		service.WithLogger(logger),
		service.WithMaxOccurrences(cfg.Recurrence.MaxOccurrences),
	}

	app := &cli.App{
		Tasks:        service.NewTaskService(taskRepo, uow, opts...),
		Trainings:    service.NewTrainingService(trainingRepo, matrixRepo, certRepo, uow, opts...),
		Certificates: service.NewCertificateService(certRepo, uow, opts...),
		Config:       cfg,
		Clock:        clock,
		Logger:       logger,
		Registry:     registry,
	}

	// Detect interactive terminal for forms and the board.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// Execute root command
	rootCmd := cli.NewRootCmd(app)
	return rootCmd.Execute()
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
