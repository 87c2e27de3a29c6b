// Command bikecounts pulls bicycle counter sites and counts from the
// Eco-Counter API and writes the Open Data CSV tables.
//
// Each run writes into output_<YYYY-MM-DD>/:
//   - bike_counters.csv (the site registry)
//   - bike_counts_loc_<site>_<YYYY-MM-DD>.csv (per site, completed months)
//   - bicycle_counts.csv (all sites, when export.combined is set)
//
// Usage:
//
//	bikecounts [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-step string
//	      count granularity: 15m, day, month or year (overrides export.step)
//	-once
//	      run a single export even when schedule.cron is set
//
// Exit codes: 2 configuration, 3 authentication, 4 API or network,
// 5 some sites failed, 1 anything else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/aliceafriedman/BikeCounters/internal/api"
	"github.com/aliceafriedman/BikeCounters/internal/config"
	"github.com/aliceafriedman/BikeCounters/internal/database"
	"github.com/aliceafriedman/BikeCounters/internal/metrics"
	"github.com/aliceafriedman/BikeCounters/internal/models"
	"github.com/aliceafriedman/BikeCounters/internal/pipeline"
	"github.com/aliceafriedman/BikeCounters/internal/scheduler"
)

func main() {
	flags := parseFlags()

	appConfig, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitCode(err))
	}
	if flags.Step != "" {
		appConfig.Export.Step = flags.Step
	}

	logger := newLogger(appConfig.Logging)

	if err := appConfig.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(exitCode(err))
	}

	// Secret material is checked before any network activity
	creds, err := config.LoadCredentials(appConfig.Export.SecretFile)
	if err != nil {
		logger.WithError(err).Error("Failed to load credentials")
		os.Exit(exitCode(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	job, cleanup, err := newJob(appConfig, creds, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to set up export")
		os.Exit(exitCode(err))
	}
	defer cleanup()

	if appConfig.Schedule.Cron == "" || flags.Once {
		if err := job(ctx); err != nil {
			logger.WithError(err).Error("Export failed")
			cleanup()
			os.Exit(exitCode(err))
		}
		return
	}

	sched, err := scheduler.NewScheduler(ctx, appConfig.Schedule.Cron, job, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create scheduler")
		cleanup()
		os.Exit(exitCode(fmt.Errorf("%w: %v", config.ErrConfig, err)))
	}
	if err := sched.Start(); err != nil {
		logger.WithError(err).Error("Failed to start scheduler")
		cleanup()
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Println("Received shutdown signal, stopping scheduler...")
	sched.Stop()
	logger.Println("Scheduler stopped")
}

type Flags struct {
	ConfigPath string
	Step       string
	Once       bool
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "config.yaml", "Path to the config file")
	flag.StringVar(&f.Step, "step", "", "Count granularity: 15m, day, month or year")
	flag.BoolVar(&f.Once, "once", false, "Run a single export even when a schedule is configured")

	flag.Parse()

	return f
}

// newJob builds the export run from configuration. The returned cleanup
// closes the count store.
func newJob(cfg *config.Config, creds config.Credentials, logger *logrus.Logger) (scheduler.Job, func(), error) {
	step, err := models.ParseStep(cfg.Export.Step)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	m := metrics.New()
	client := api.NewClient(api.Options{
		TokenURL:         cfg.API.TokenURL,
		SitesURL:         cfg.API.SitesURL,
		CountsURL:        cfg.API.CountsURL,
		ClientCredential: cfg.API.ClientCredential,
		Timeout:          cfg.API.Timeout,
		MaxRetries:       cfg.API.MaxRetries,
		RetryBackoff:     cfg.API.RetryBackoff,
		ExcludeFields:    cfg.Export.ExcludeColumns,
	}, &http.Client{}, logger, m)
	tokens := api.NewTokenSource(client, creds, cfg.API.TokenLifetime)

	cleanup := func() {}
	var sink pipeline.CountSink
	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepo(cfg.Database.DSN, cfg.Database.ValueField)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to count store: %w", err)
		}
		if err := repo.EnsureSchema(context.Background()); err != nil {
			repo.Close()
			return nil, nil, err
		}
		sink = repo
		cleanup = func() { repo.Close() }
	}

	exporter := pipeline.NewExporter(client, tokens, sink, m, logger, pipeline.Options{
		OutputRoot: cfg.Export.OutputRoot,
		Step:       step,
		Workers:    cfg.Export.Workers,
		Combined:   cfg.Export.Combined,
		FailFast:   cfg.Export.FailFast,
	})

	job := func(ctx context.Context) error {
		_, err := exporter.Run(ctx)
		if cfg.Metrics.Textfile != "" {
			if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
				logger.WithError(werr).Warn("Failed to write metrics textfile")
			}
		}
		return err
	}
	return job, cleanup, nil
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrConfig):
		return 2
	case errors.Is(err, api.ErrAuth):
		return 3
	case errors.Is(err, pipeline.ErrSitesFailed):
		return 5
	case errors.Is(err, api.ErrAPI), errors.Is(err, api.ErrTransientNetwork):
		return 4
	default:
		return 1
	}
}
