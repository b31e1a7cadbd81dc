// Command alertdump fetches emails matching the bank registry's search query
// and dumps their bodies plus parse outcomes to files. It is used to collect
// samples for unit-test fixtures.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/blazzjosh/lucra.ai/pkg/catalog"
	"github.com/blazzjosh/lucra.ai/pkg/client"
	"github.com/blazzjosh/lucra.ai/pkg/config"
	"github.com/blazzjosh/lucra.ai/pkg/logging"
	"github.com/blazzjosh/lucra.ai/pkg/parser"
	gmailreader "github.com/blazzjosh/lucra.ai/pkg/reader/gmail"
)

const dumpDir = "testdata/dump"

func main() {
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

	httpClient, err := client.New(config.ClientSecretFile, gmail.GmailReadonlyScope)
	if err != nil {
		logger.Error("failed to create http client", "error", err)
		os.Exit(1)
	}

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		logger.Error("failed to create gmail service", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		logger.Error("failed to create dump directory", "error", err)
		os.Exit(1)
	}

	// Parse against the static catalog so outcomes do not depend on a
	// database being up.
	p := parser.New(catalog.NewStatic("NGN", "USD", "EUR", "GBP"), logger)
	query := gmailreader.BuildQuery(p.Banks(), cfg.AfterDate)

	logger.Info("fetching messages", "query", query)

	count, err := dumpMessages(context.Background(), svc, p, query, logger)
	if err != nil {
		logger.Error("failed to dump messages", "error", err)
		os.Exit(1)
	}

	logger.Info("dump complete", "count", count, "directory", dumpDir)
}

func dumpMessages(ctx context.Context, svc *gmail.Service, p *parser.Parser, query string, logger *slog.Logger) (int, error) {
	resp, err := svc.Users.Messages.List("me").Q(query).MaxResults(20).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("listing messages: %w", err)
	}

	count := 0
	for _, msg := range resp.Messages {
		if err := dumpMessage(ctx, svc, p, msg.Id, logger); err != nil {
			logger.Warn("failed to dump message", "message_id", msg.Id, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

func dumpMessage(ctx context.Context, svc *gmail.Service, p *parser.Parser, msgID string, logger *slog.Logger) error {
	msg, err := svc.Users.Messages.Get("me", msgID).Format("full").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	var from, subject string
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			from = h.Value
		case "Subject":
			subject = h.Value
		}
	}

	body := gmailreader.ExtractHTMLBody(msg.Payload)
	if body == "" {
		return fmt.Errorf("empty body")
	}

	path := filepath.Join(dumpDir, msgID+".html")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("writing dump file: %w", err)
	}

	rec, status := p.Parse(ctx, from, subject, body)
	if status.Parsed() {
		logger.Info("parsed",
			"file", path,
			"bank", rec.BankName,
			"currency", rec.CurrencyCode,
			"has_amount", rec.Amount != nil,
			"fields", len(rec.Fields),
		)
	} else {
		logger.Info("not parseable", "file", path, "from", from, "subject", subject, "status", status.String())
	}
	return nil
}
