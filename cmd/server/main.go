// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/gamehub/internal/auth"
	"github.com/jason-s-yu/gamehub/internal/cache"
	"github.com/jason-s-yu/gamehub/internal/config"
	"github.com/jason-s-yu/gamehub/internal/database"
	"github.com/jason-s-yu/gamehub/internal/dependencies/clock"
	"github.com/jason-s-yu/gamehub/internal/dependencies/random"
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/handlers"
	"github.com/jason-s-yu/gamehub/internal/room"
	"github.com/jason-s-yu/gamehub/internal/scheduler"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfg config.Config
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the gamehub websocket and HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), &cfg)
		},
	}
	config.RegisterServerFlags(cmd.Flags(), &cfg)
	config.BindEnv(cmd.Flags())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	if err := auth.Init(cfg.TokenExpireTime); err != nil {
		return err
	}

	var (
		users    database.UserStore
		registry room.Registry
	)
	pool, err := database.Connect(ctx, cfg.PostgresURL())
	if err == nil && cfg.Migrate {
		err = database.Migrate(cfg.PostgresURL())
	}
	if err != nil {
		logger.Warnf("postgres unavailable, accounts and permanent rooms will not survive a restart: %v", err)
		if pool != nil {
			pool.Close()
			pool = nil
		}
		mem := database.NewMemoryUserStore()
		users, registry = mem, database.NewMemoryRoomRegistry(mem)
	} else {
		defer pool.Close()
		users, registry = database.NewPostgresUserStore(pool), database.NewPostgresRoomRegistry(pool)
		logger.Info("connected to postgres")
	}

	var actions cache.ActionLog = cache.NoopActionLog{}
	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warnf("redis unavailable, room actions will not be recorded: %v", err)
	} else {
		defer rdb.Close()
		actions = cache.NewRedisActionLog(rdb, cfg.HistorianQueueName)
		logger.Infof("publishing room actions to %s", cfg.HistorianQueueName)
	}

	clk, rnd := clock.New(), random.New()
	dir := room.NewDirectory(registry, rnd, clk, logger)
	hub := handlers.NewHub(dir, game.NewStore(), scheduler.NewTimerScheduler(), actions, users, game.Deps{Random: rnd, Clock: clk}, handlers.Options{
		RPSAdvanceDelay:            cfg.RPSAdvanceDelay,
		ThisOrThatAdvanceDelay:     cfg.ThisOrThatAdvanceDelay,
		WouldYouRatherAdvanceDelay: cfg.WouldYouRatherAdvanceDelay,
		MessageRate:                cfg.MessageRate,
		MessageBurst:               cfg.MessageBurst,
	}, logger)

	router := handlers.NewRouter(logger, hub, handlers.NewAccountHandler(users, logger), handlers.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		PublicURL:      cfg.PublicURL,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server exited: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	hub.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	return nil
}
