package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puddingmeetup/server/internal/api"
	"github.com/puddingmeetup/server/internal/auth"
	"github.com/puddingmeetup/server/internal/config"
	"github.com/puddingmeetup/server/internal/domain/attendance"
	"github.com/puddingmeetup/server/internal/domain/events"
	"github.com/puddingmeetup/server/internal/domain/ids"
	"github.com/puddingmeetup/server/internal/domain/leaderboard"
	"github.com/puddingmeetup/server/internal/domain/users"
	"github.com/puddingmeetup/server/internal/jobs"
	"github.com/puddingmeetup/server/internal/metrics"
	"github.com/puddingmeetup/server/internal/storage/postgres"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables
- Bootstrap an admin user if ADMIN_* env vars are set
- Start River background workers for the event lifecycle sweep
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting pudding meetup server")

	metrics.Init(Version, GitCommit, BuildDate)

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MinConnections)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	usersService := users.NewService(repo.Users(), logger)
	eventsService := events.NewService(repo.Events(), logger)
	attendanceService := attendance.NewService(repo.Attendance(), logger)
	leaderboardService := leaderboard.NewService(repo.Leaderboard(), logger)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrapAdminUser(bootstrapCtx, cfg, repo, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	bootstrapCancel()

	workers := river.NewWorkers()
	jobs.RegisterWorkers(workers, repo.Events(), logger)
	riverClient, err := jobs.NewClient(pool, workers, slog.Default(), jobs.NewPeriodicJobs())
	if err != nil {
		return fmt.Errorf("river client init failed: %w", err)
	}

	riverCtx, riverCancel := context.WithCancel(context.Background())
	defer riverCancel()
	if err := riverClient.Start(riverCtx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Msg("river background job workers started")
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("river workers shutdown error")
		}
	}()

	handler := api.NewRouter(cfg, logger, api.Deps{
		Users:       usersService,
		Events:      eventsService,
		Attendance:  attendanceService,
		Leaderboard: leaderboardService,
		JWT:         jwtManager,
		DB:          repo,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// bootstrapAdminUser seeds an admin account from ADMIN_* env vars on first
// boot. The check and insert share a transaction; an existing account with
// the same email wins.
func bootstrapAdminUser(ctx context.Context, cfg config.Config, repo *postgres.Repository, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Name == "" || bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Debug().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}

	email := users.NormalizeEmail(bootstrap.Email)
	hash, err := auth.HashPassword(bootstrap.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return fmt.Errorf("mint admin id: %w", err)
	}

	err = repo.WithTx(ctx, func(tx *postgres.Repository) error {
		if _, err := tx.Users().GetByEmail(ctx, email); err == nil {
			return nil
		} else if !errors.Is(err, users.ErrNotFound) {
			return fmt.Errorf("check admin user: %w", err)
		}

		if _, err := tx.Users().Create(ctx, users.CreateParams{
			ID:           id,
			Name:         bootstrap.Name,
			Email:        email,
			PasswordHash: hash,
			Role:         users.RoleAdmin,
		}); err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}

		logger.Info().Str("user_id", id).Msg("admin user bootstrapped")
		return nil
	})
	return err
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
