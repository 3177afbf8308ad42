// cmd/historian/main.go pops room actions from the Redis queue and persists
// them to PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/gamehub/internal/cache"
	"github.com/jason-s-yu/gamehub/internal/config"
	"github.com/jason-s-yu/gamehub/internal/database"
	"github.com/jason-s-yu/gamehub/internal/dependencies/clock"
	"github.com/jason-s-yu/gamehub/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

func main() {
	var cfg config.Config
	cmd := &cobra.Command{
		Use:           "historian",
		Short:         "Persist room actions from Redis into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(*cobra.Command, []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), &cfg)
		},
	}
	config.RegisterHistorianFlags(cmd.Flags(), &cfg)
	config.BindEnv(cmd.Flags())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "historian:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	pool, err := database.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := historian.New(rdb, historian.NewPostgresSink(pool), historian.Config{
		Queue:         cfg.HistorianQueueName,
		BatchSize:     cfg.HistorianBatchSize,
		FlushInterval: cfg.HistorianFlushInterval,
		Inactivity:    cfg.RoomInactivityTimeout,
	}, clock.New(), logger)
	svc.Run(ctx)
	return nil
}
