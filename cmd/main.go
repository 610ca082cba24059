package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FelixJx/fupan-game/internal/adapters/http/api"
	"github.com/FelixJx/fupan-game/internal/adapters/repository"
	"github.com/FelixJx/fupan-game/internal/adapters/scheduler"
	"github.com/FelixJx/fupan-game/internal/app"
	"github.com/FelixJx/fupan-game/internal/config"
	"github.com/FelixJx/fupan-game/internal/domain/steps"
	"github.com/FelixJx/fupan-game/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 90 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Local overrides only; absence of a .env file is the normal case.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open session store", logger.Error(err))
		return
	}

	svc := app.New(
		app.WithLogger(log.Named("app")),
		app.WithStore(store),
		app.WithStepEngine(steps.NewEngine(
			steps.WithBaseReward(cfg.StepBaseReward),
			steps.WithRichnessBonus(cfg.StepRichnessBonus),
		)),
		app.WithGradingDelay(time.Duration(cfg.GradingDelaySeconds)*time.Second),
		app.WithMarketPushInterval(time.Duration(cfg.MarketPushSeconds)*time.Second),
		app.WithSchedulerOptions(
			scheduler.WithPollInterval(time.Duration(cfg.GradingPollSeconds)*time.Second),
			scheduler.WithMaxAttempts(cfg.GradingMaxAttempts),
			scheduler.WithBackoffBase(time.Duration(cfg.GradingBackoffSeconds)*time.Second),
		),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	apiServer := api.NewServer(svc, api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildStore selects sqlite persistence when a path is configured, or the
// in-memory store otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DatabasePath == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewSQLStore(ctx, cfg.DatabasePath)
}
