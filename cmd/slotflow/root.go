package main

import (
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rsharan/slotflow/pkg/slotflow/booking"
	"github.com/rsharan/slotflow/pkg/slotflow/config"
	"github.com/rsharan/slotflow/pkg/slotflow/store"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "slotflow",
		Short: "Conversational intake engine for vehicle service bookings",
		Long: `slotflow drives multi-turn intake conversations: it extracts
booking details from free-form messages, validates them, checks
availability, and creates the booking after an explicit confirmation.

Run "slotflow chat" for a terminal conversation or "slotflow serve"
to expose the engine over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newChatCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	return cmd
}

func (f *rootFlags) load() (config.Config, *slog.Logger, error) {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if f.configPath == "" {
		return config.Default(), logger, nil
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// buildService wires the store and lock selected by the config into
// the intake flow. The model tier activates itself only when the
// configured API key environment variable is set.
func buildService(cfg config.Config, logger *slog.Logger) (*booking.Service, error) {
	opts := []booking.Option{
		booking.WithLogger(logger),
		booking.WithModelTier(cfg),
	}

	switch cfg.Store {
	case "memory":
		// the default inside booking.New
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		opts = append(opts, booking.WithStore(st))
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st := store.NewRedisStoreFromClient(client, store.WithTTL(cfg.Redis.TTL.Std()))
		opts = append(opts,
			booking.WithStore(st),
			booking.WithLocker(store.NewRedisLocker(client, "slotflow:lock:")),
		)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	return booking.New(cfg, opts...)
}
