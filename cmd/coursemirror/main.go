package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/tbeck/coursemirror/internal/config"
	"github.com/tbeck/coursemirror/internal/course"
	"github.com/tbeck/coursemirror/internal/fingerprint"
	"github.com/tbeck/coursemirror/internal/index"
	"github.com/tbeck/coursemirror/internal/index/sqlite"
	"github.com/tbeck/coursemirror/internal/logctx"
	"github.com/tbeck/coursemirror/internal/portal"
	"github.com/tbeck/coursemirror/internal/rebuild"
	"github.com/tbeck/coursemirror/internal/report"
	"github.com/tbeck/coursemirror/internal/scheduler"
	"github.com/tbeck/coursemirror/internal/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("coursemirror starting...", "log_level", cfg.LogLevel, "workers", cfg.Workers)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: "coursemirror",
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	// =========================================================================
	// Start Fingerprint Index
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open fingerprint index: %w", err)
	}
	defer db.Close()

	idx := index.NewInstrumented(db, tel)

	// =========================================================================
	// Start Fingerprint Engine
	policy := fingerprint.DefaultPolicy()

	if cfg.PolicyFile != "" {
		policy, err = fingerprint.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("failed to load fingerprint policy: %w", err)
		}

		// Fingerprints are only comparable under the policy that produced
		// them. An index built under a different policy is fully stale and
		// must be discarded by the operator.
		logger.Warn("custom fingerprint policy loaded, existing index entries are only valid if built with it",
			"policy_file", cfg.PolicyFile)
	}

	engine := fingerprint.NewEngine(policy)

	// =========================================================================
	// Start Portal Client
	client := portal.NewHTTPClient(cfg.PortalToken)
	enum := portal.NewEnumerator(client, cfg.ManifestURL)

	if cfg.Rebuild {
		return runRebuild(ctx, cfg, enum, engine, idx)
	}

	// =========================================================================
	// Start Metrics Server
	serverErrors := make(chan error, 1)
	server := setupServer(ctx, tel, cfg)

	go func() {
		logger.Info("serving metrics", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)
			server.Close()
		}
	}()

	// =========================================================================
	// Start Sync
	jobs, err := enum.Stream(ctx, cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("failed to enumerate courses: %w", err)
	}

	sched := scheduler.New(engine, idx, cfg.DownloadDir, cfg.Workers, scheduler.RetryConfig{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}, tel)

	results := sched.Run(ctx, jobs)

	summary := report.NewReporter().Consume(ctx, results)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	default:
	}

	if summary.Failed > 0 && summary.Failed > summary.Cancelled {
		return fmt.Errorf("%d of %d files failed, re-run to retry", summary.Failed, summary.Total())
	}

	return ctx.Err()
}

func runRebuild(ctx context.Context, cfg *config.Config, enum *portal.Enumerator, engine *fingerprint.Engine, idx index.Index) error {
	logger := logctx.LoggerFromContext(ctx)

	m, err := enum.FetchManifest(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch manifest: %w", err)
	}

	courses := make([]course.Course, 0, len(m.Courses))
	for _, mc := range m.Courses {
		courses = append(courses, course.Course{ID: mc.ID, Name: mc.Name})
	}

	seeded, err := rebuild.Rebuild(ctx, courses, cfg.DownloadDir, engine, idx)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	logger.Info("index rebuilt from local files", "fingerprints", seeded)

	return nil
}

// setupServer exposes liveness and metrics endpoints while a sync runs.
func setupServer(ctx context.Context, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", tel.Handler())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
