// Package main is the entry point for the lease charge regularization and
// rent revision engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"gitlab.com/yelinaung/lease-engine/internal/access"
	"gitlab.com/yelinaung/lease-engine/internal/config"
	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/gemini"
	"gitlab.com/yelinaung/lease-engine/internal/index"
	"gitlab.com/yelinaung/lease-engine/internal/ledger"
	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/notify"
	"gitlab.com/yelinaung/lease-engine/internal/regularization"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
	"gitlab.com/yelinaung/lease-engine/internal/revision"
	"gitlab.com/yelinaung/lease-engine/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `usage: lease-engine <command> [flags]

commands:
  version      print build information
  migrate      apply database migrations
  index-load   load index values from a YAML file
  index-sync   fetch the configured index series and store it
  record       record an operating expense
  suggest      suggest a category for an expense label
  preview      preview the charge regularization of a lease year
  commit       commit the charge regularization of a lease year
  quote        quote the indexed rent of a lease at a date
  revise       commit a rent revision
  state        show the revision state of a lease`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		fmt.Printf("lease-engine %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Configure(os.Stderr, cfg.LogFormat)
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogHashSalt != "" {
		if err := logger.InitHashSalt(cfg.LogHashSalt); err != nil {
			return err
		}
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:    cfg.OTelExporter,
		ServiceName: cfg.OTelServiceName,
		Version:     version,
		Writer:      os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	a, err := newApp(ctx, cfg, repository.NewPGStore(pool, pool))
	if err != nil {
		return err
	}
	a.pool = pool

	ctx = access.WithActor(ctx, access.Actor{UserID: cfg.ActorUserID})
	return cmd(ctx, a, args)
}

// app holds the services shared by every command.
type app struct {
	cfg            *config.Config
	pool           *pgxpool.Pool
	store          repository.Store
	ledger         *ledger.Service
	regularization *regularization.Service
	revision       *revision.Service
	notify         *notify.Dispatcher
}

func newApp(ctx context.Context, cfg *config.Config, store repository.Store) (*app, error) {
	var suggester ledger.CategorySuggester
	if cfg.GeminiEnabled() {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		suggester = client
	}

	var notifiers []notify.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}

	return &app{
		cfg:            cfg,
		store:          store,
		ledger:         ledger.New(store, suggester),
		regularization: regularization.New(store),
		revision:       revision.New(store, index.NewSource(store.Index(), cfg.IndexSeries)),
		notify:         notify.NewDispatcher(store, notifiers...),
	}, nil
}
