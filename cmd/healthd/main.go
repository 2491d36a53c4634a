package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/project-health/internal/alerts"
	"github.com/p-blackswan/project-health/internal/analyzer"
	"github.com/p-blackswan/project-health/internal/calculator"
	"github.com/p-blackswan/project-health/internal/config"
	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/escalation"
	"github.com/p-blackswan/project-health/internal/health"
	"github.com/p-blackswan/project-health/internal/history"
	"github.com/p-blackswan/project-health/internal/metrics"
	"github.com/p-blackswan/project-health/internal/mgmt"
	"github.com/p-blackswan/project-health/internal/reschedule"
	"github.com/p-blackswan/project-health/internal/retry"
	"github.com/p-blackswan/project-health/internal/source"
	"github.com/p-blackswan/project-health/internal/store"
)

const retentionEvery = time.Hour

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("mgmt_addr", cfg.MgmtListenAddr).
		Str("projects_file", cfg.ProjectsFile).
		Dur("interval", cfg.MonitorInterval).
		Bool("persistence", cfg.PersistenceEnabled()).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting project health service")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	checker := health.NewChecker(logger)

	hist := history.New(cfg.HistoryLimit)
	var db *store.Store
	if cfg.PersistenceEnabled() {
		db, err = store.New(cfg.DBPath, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
		}
		defer db.Close()
		if _, err := db.Rehydrate(ctx, hist); err != nil {
			logger.Warn().Err(err).Msg("history rehydration failed, starting empty")
		}
		checker.Register("database", health.Ping(db))
	} else {
		logger.Info().Msg("DB_PATH empty, results are not persisted")
	}

	calc := calculator.New(logger)
	eng := engine.New(
		calc,
		alerts.NewGenerator(cfg.AlertThresholds(), logger),
		reschedule.New(logger),
		analyzer.New(hist, calc, logger),
		logger,
	)

	notifiers := []escalation.Notifier{escalation.NewLogNotifier(logger)}
	if cfg.SlackEnabled() {
		notifiers = append(notifiers, escalation.NewSlackNotifierFromToken(cfg.SlackBotToken, cfg.SlackAlertChannel, logger))
	} else {
		logger.Info().Msg("Slack not configured, escalations are logged only")
	}
	dispatcher := escalation.NewDispatcher(
		escalation.NewMultiNotifier(notifiers...),
		escalation.DispatcherConfig{
			MinSeverity: cfg.MinSeverity(),
			DedupWindow: cfg.NotifyDedupWindow,
			Retry:       retry.DefaultConfig(),
		},
		logger,
		escalation.WithRecorder(m),
	)

	// The store runs first so a failed notification never loses a cycle.
	sinks := []engine.Sink{}
	if db != nil {
		sinks = append(sinks, db)
	}
	sinks = append(sinks, m, dispatcher)

	monitor := engine.NewMonitor(eng, &source.FileSource{Path: cfg.ProjectsFile}, engine.MonitorConfig{
		Interval: cfg.MonitorInterval,
		Timeout:  cfg.CycleTimeout,
	}, logger, sinks...)

	checker.Register("cycle", health.Freshness(func() time.Time {
		return monitor.Status().LastSuccess
	}, 3*cfg.MonitorInterval, nil))

	deps := mgmt.Deps{
		Monitor: monitor,
		Trends:  eng,
		Checker: checker,
		Metrics: m,
	}
	if db != nil {
		deps.Store = db
	}
	server := mgmt.NewServer(mgmt.ServerConfig{
		ListenAddr: cfg.MgmtListenAddr,
		AuthConfig: mgmt.AuthConfig{
			Mode:      cfg.MgmtAuthMode,
			APIKey:    cfg.MgmtAPIKey,
			JWTSecret: []byte(cfg.MgmtJWTSecret),
		},
		RateLimit: mgmt.RateLimitConfig{
			RPS:   cfg.MgmtRateLimitRPS,
			Burst: cfg.MgmtRateLimitBurst,
		},
		CORSOrigins: cfg.MgmtCORSOrigins,
	}, deps, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	if db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runRetention(ctx, db, m, cfg.ResultRetention, logger)
		}()
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("management API server error")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("management API shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("shutdown complete")
}

// runRetention prunes old results hourly and publishes the database size.
func runRetention(ctx context.Context, db *store.Store, m *metrics.Metrics, retention time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(retentionEvery)
	defer ticker.Stop()
	for {
		if err := db.RunRetention(ctx, retention); err != nil {
			logger.Warn().Err(err).Msg("retention sweep failed")
		}
		if size, err := db.DBSizeBytes(); err == nil {
			m.SetDBSize(size)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
