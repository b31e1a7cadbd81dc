// Command lucra runs the debit-alert ingestion daemon: it polls Gmail for
// bank debit alerts, parses them, and persists the extracted transactions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/blazzjosh/lucra.ai/internal/daemon"
	"github.com/blazzjosh/lucra.ai/pkg/api"
	"github.com/blazzjosh/lucra.ai/pkg/catalog"
	"github.com/blazzjosh/lucra.ai/pkg/client"
	"github.com/blazzjosh/lucra.ai/pkg/config"
	"github.com/blazzjosh/lucra.ai/pkg/logging"
	"github.com/blazzjosh/lucra.ai/pkg/parser"
	gmailreader "github.com/blazzjosh/lucra.ai/pkg/reader/gmail"
	"github.com/blazzjosh/lucra.ai/pkg/writer/jsonfile"
	"github.com/blazzjosh/lucra.ai/pkg/writer/postgres"
)

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	logger := logging.Setup(logging.DefaultConfig())

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var cfg config.Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		logger.Error("failed to unmarshal config", "error", err)
		os.Exit(1)
	}

	if cfg.Writer == "" {
		cfg.Writer = "postgres"
	}

	logger.Info("configuration loaded", "writer", cfg.Writer)

	// Writer selection also decides where the currency catalog lives: the
	// database for postgres, a fixed in-memory set otherwise.
	var (
		writer       api.Writer
		currencyCat  api.CurrencyCatalog
		deduper      api.Deduper
		closeStorage func()
	)
	switch cfg.Writer {
	case "postgres":
		pg, err := postgres.New(postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger.With("component", "writer"))
		if err != nil {
			logger.Error("failed to create postgres writer", "error", err)
			os.Exit(1)
		}
		writer = pg
		currencyCat = pg
		deduper = pg
		closeStorage = pg.Close

	case "jsonfile":
		path := cfg.JSONFilePath
		if path == "" {
			path = "data/alerts.json"
		}
		jf, err := jsonfile.New(jsonfile.Config{FilePath: path}, logger.With("component", "writer"))
		if err != nil {
			logger.Error("failed to create jsonfile writer", "error", err)
			os.Exit(1)
		}
		writer = jf
		currencyCat = catalog.NewStatic("NGN", "USD", "EUR", "GBP")

	default:
		logger.Error("unknown writer", "writer", cfg.Writer)
		os.Exit(1)
	}
	if closeStorage != nil {
		defer closeStorage()
	}

	p := parser.New(currencyCat, logger.With("component", "parser"))

	httpClient, err := client.New(config.ClientSecretFile,
		gmailapi.GmailReadonlyScope,
		gmailapi.GmailModifyScope,
	)
	if err != nil {
		logger.Error("failed to create http client", "error", err)
		os.Exit(1)
	}

	reader, err := gmailreader.New(httpClient, gmailreader.Config{
		Parser:     p,
		Deduper:    deduper,
		AfterDate:  cfg.AfterDate,
		Interval:   time.Duration(cfg.PollIntervalSeconds) * time.Second,
		MaxResults: cfg.MaxResults,
	}, logger.With("component", "reader"))
	if err != nil {
		logger.Error("failed to create gmail reader", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := daemon.New(reader, writer, logger).Run(ctx); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}
