// Package config defines the flags shared by the gamehub commands. Every
// flag can also be set from the environment: --redis-addr reads REDIS_ADDR.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/gamehub/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int
	LogLevel       string
	LogJSON        bool
	AllowedOrigins []string
	PublicURL      string

	PostgresUser     string
	PostgresPassword string
	PGHost           string
	PGPort           int
	PGDatabase       string
	DatabaseURL      string
	Migrate          bool

	RedisAddr          string
	RedisDB            int
	HistorianQueueName string

	TokenExpireTime string

	RPSAdvanceDelay            time.Duration
	ThisOrThatAdvanceDelay     time.Duration
	WouldYouRatherAdvanceDelay time.Duration

	AuthRateLimit  int
	AuthRateWindow time.Duration
	MessageRate    float64
	MessageBurst   int

	HistorianBatchSize     int
	HistorianFlushInterval time.Duration
	RoomInactivityTimeout  time.Duration

	server, historian bool
}

func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func registerCommon(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(normalize)

	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "emit logs as JSON (env: LOG_JSON)")

	fs.StringVar(&cfg.PostgresUser, "postgres-user", "", "postgres user (env: POSTGRES_USER)")
	fs.StringVar(&cfg.PostgresPassword, "postgres-password", "", "postgres password (env: POSTGRES_PASSWORD)")
	fs.StringVar(&cfg.PGHost, "pg-host", "localhost", "postgres host (env: PG_HOST)")
	fs.IntVar(&cfg.PGPort, "pg-port", 5432, "postgres port (env: PG_PORT)")
	fs.StringVar(&cfg.PGDatabase, "pg-database", "gamehub", "postgres database (env: PG_DATABASE)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "full postgres connection string, overrides the pg-* flags (env: DATABASE_URL)")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "redis address (env: REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database index (env: REDIS_DB)")
	fs.StringVar(&cfg.HistorianQueueName, "historian-queue-name", "gamehub_actions", "redis list carrying room actions (env: HISTORIAN_QUEUE_NAME)")
}

// RegisterServerFlags adds the flags of the game server to fs.
func RegisterServerFlags(fs *pflag.FlagSet, cfg *Config) {
	registerCommon(fs, cfg)
	cfg.server = true

	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: PORT)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "origins allowed to open websockets and call the API (env: ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.PublicURL, "public-url", "http://localhost:8080", "externally reachable base URL used in join links (env: PUBLIC_URL)")
	fs.BoolVar(&cfg.Migrate, "migrate", true, "apply database migrations at startup (env: MIGRATE)")
	fs.StringVar(&cfg.TokenExpireTime, "token-expire-time", "72h", "session token lifetime, or \"never\" (env: TOKEN_EXPIRE_TIME)")

	fs.DurationVar(&cfg.RPSAdvanceDelay, "rps-advance-delay", 3*time.Second, "pause before the next rock-paper-scissors round (env: RPS_ADVANCE_DELAY)")
	fs.DurationVar(&cfg.ThisOrThatAdvanceDelay, "this-or-that-advance-delay", 2*time.Second, "pause before the next this-or-that question (env: THIS_OR_THAT_ADVANCE_DELAY)")
	fs.DurationVar(&cfg.WouldYouRatherAdvanceDelay, "would-you-rather-advance-delay", 4*time.Second, "pause before the next would-you-rather question (env: WOULD_YOU_RATHER_ADVANCE_DELAY)")

	fs.IntVar(&cfg.AuthRateLimit, "auth-rate-limit", 10, "signup/login attempts allowed per IP per window (env: AUTH_RATE_LIMIT)")
	fs.DurationVar(&cfg.AuthRateWindow, "auth-rate-window", 15*time.Minute, "window for --auth-rate-limit (env: AUTH_RATE_WINDOW)")
	fs.Float64Var(&cfg.MessageRate, "message-rate", 20, "websocket messages per second per connection (env: MESSAGE_RATE)")
	fs.IntVar(&cfg.MessageBurst, "message-burst", 40, "websocket message burst per connection (env: MESSAGE_BURST)")
}

// RegisterHistorianFlags adds the flags of the historian worker to fs.
func RegisterHistorianFlags(fs *pflag.FlagSet, cfg *Config) {
	registerCommon(fs, cfg)
	cfg.historian = true

	fs.IntVar(&cfg.HistorianBatchSize, "historian-batch-size", 20, "actions written per transaction (env: HISTORIAN_BATCH_SIZE)")
	fs.DurationVar(&cfg.HistorianFlushInterval, "historian-flush-interval", 500*time.Millisecond, "maximum time an action waits before being written (env: HISTORIAN_FLUSH_INTERVAL)")
	fs.DurationVar(&cfg.RoomInactivityTimeout, "room-inactivity-timeout", 10*time.Minute, "idle time before a room session is marked abandoned (env: ROOM_INACTIVITY_TIMEOUT)")
}

// BindEnv copies environment values into every flag not set explicitly.
// Call it after registering flags and before parsing them.
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if s, ok := val.([]string); ok {
				val = strings.Join(s, ",")
			}
			_ = fs.Set(f.Name, fmt.Sprintf("%v", val))
		}
	})
}

// Validate checks values no flag type can enforce, for the flags the
// running command registered.
func (c *Config) Validate() error {
	if c.PGPort < 1 || c.PGPort > 65535 {
		return fmt.Errorf("invalid pg-port (must be between 1-65535 inclusive): %d", c.PGPort)
	}
	if strings.TrimSpace(c.HistorianQueueName) == "" {
		return errors.New("historian-queue-name must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level: %w", err)
	}

	durations := map[string]time.Duration{}
	if c.server {
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
		}
		if c.AuthRateLimit < 1 || c.MessageRate <= 0 || c.MessageBurst < 1 {
			return errors.New("auth-rate-limit, message-rate and message-burst must be positive")
		}
		durations["rps-advance-delay"] = c.RPSAdvanceDelay
		durations["this-or-that-advance-delay"] = c.ThisOrThatAdvanceDelay
		durations["would-you-rather-advance-delay"] = c.WouldYouRatherAdvanceDelay
		durations["auth-rate-window"] = c.AuthRateWindow
	}
	if c.historian {
		if c.HistorianBatchSize < 1 {
			return fmt.Errorf("historian-batch-size must be positive, got %d", c.HistorianBatchSize)
		}
		durations["historian-flush-interval"] = c.HistorianFlushInterval
		durations["room-inactivity-timeout"] = c.RoomInactivityTimeout
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// PostgresURL is --database-url when given, otherwise it is assembled from
// the pg-* flags.
func (c *Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return database.URL(c.PostgresUser, c.PostgresPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// NewLogger builds the process logger from the log flags.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
