// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	wizardapi "github.com/tbeckett/slotwizard/internal/api/wizard"
	"github.com/tbeckett/slotwizard/internal/config"
	"github.com/tbeckett/slotwizard/internal/leagueapi"
	"github.com/tbeckett/slotwizard/internal/optimizer"
	"github.com/tbeckett/slotwizard/internal/ratelimit"
	"github.com/tbeckett/slotwizard/internal/scheduler"
	"github.com/tbeckett/slotwizard/internal/wizard"
)

const shutdownTimeout = 30 * time.Second

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config/config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	league, err := leagueapi.NewClient(cfg.LeagueAPI.BaseURL, cfg.LeagueAPI.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build league API client")
	}
	runner, err := optimizer.NewClient(cfg.Optimizer.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build optimizer client")
	}

	store := wizard.NewStore(time.Duration(cfg.Wizard.SessionTTLMinutes)*time.Minute, nil)
	limiter := ratelimit.New(nil)
	defer limiter.Close()
	wizardapi.InitHandlers(wizard.NewService(league, runner, store), limiter)

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	janitorCron := cfg.Wizard.JanitorCron
	if janitorCron == "" {
		janitorCron = scheduler.DefaultJanitorCron
	}
	if _, err := scheduler.AddJob("session-janitor", janitorCron, func(ctx context.Context) {
		if err := scheduler.SweepSessions(ctx, store); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Session sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register session janitor")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Create server instance
	server := newServer(cfg)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
