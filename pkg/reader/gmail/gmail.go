// Package gmail implements a Reader that pulls bank debit alerts from Gmail.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/blazzjosh/lucra.ai/pkg/api"
	"github.com/blazzjosh/lucra.ai/pkg/parser"
)

// Reader polls Gmail for debit-alert emails and parses them.
type Reader struct {
	client     *gmail.Service
	parser     *parser.Parser
	deduper    api.Deduper
	query      string
	interval   time.Duration
	maxResults int64
	logger     *slog.Logger
}

// Config holds configuration for the Gmail reader.
type Config struct {
	// Parser classifies and extracts each fetched email.
	Parser *parser.Parser
	// Deduper skips messages that were already ingested. Optional; without
	// one the writer's conflict handling is the only dedup layer.
	Deduper api.Deduper
	// AfterDate restricts the search, in Gmail query form ("2024/12/31").
	AfterDate string
	// Interval between polls. Defaults to 10 seconds.
	Interval time.Duration
	// MaxResults caps messages listed per poll. Zero means API default.
	MaxResults int64
}

// New creates a new Gmail reader. The search query is derived from the
// parser's bank registry so that adding a bank profile automatically widens
// the poll.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Parser == nil {
		return nil, fmt.Errorf("gmail reader requires a parser")
	}

	client, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 10 * time.Second
	}

	return &Reader{
		client:     client,
		parser:     cfg.Parser,
		deduper:    cfg.Deduper,
		query:      BuildQuery(cfg.Parser.Banks(), cfg.AfterDate),
		interval:   interval,
		maxResults: cfg.MaxResults,
		logger:     logger,
	}, nil
}

// BuildQuery assembles the Gmail search query from the registered bank
// profiles' subject keywords, deduplicated, plus an optional after: filter.
func BuildQuery(banks []parser.BankProfile, afterDate string) string {
	seen := make(map[string]bool)
	var terms []string
	for _, bank := range banks {
		for _, kw := range bank.SubjectKeywords {
			key := strings.ToLower(kw)
			if seen[key] {
				continue
			}
			seen[key] = true
			terms = append(terms, fmt.Sprintf("subject:%q", kw))
		}
	}

	query := "(" + strings.Join(terms, " OR ") + ")"
	if afterDate != "" {
		query += " after:" + afterDate
	}
	return query
}

// Read polls Gmail until the context is canceled, sending parsed alerts to
// out. Messages are marked read only after an acknowledgment arrives on
// ackChan, so an alert that fails to persist is retried on a later poll.
func (r *Reader) Read(ctx context.Context, out chan<- *api.DebitAlert, ackChan <-chan string) error {
	defer close(out)

	go r.handleAcknowledgments(ctx, ackChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.poll(ctx, out)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gmail reader stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx, out)
		}
	}
}

func (r *Reader) handleAcknowledgments(ctx context.Context, ackChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msgID, ok := <-ackChan:
			if !ok {
				r.logger.Info("acknowledgment channel closed")
				return
			}
			r.markAsRead(ctx, msgID)
		}
	}
}

func (r *Reader) markAsRead(ctx context.Context, msgID string) {
	_, err := r.client.Users.Messages.Modify("me", msgID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		r.logger.Warn("failed to mark message as read", "message_id", msgID, "error", err)
	} else {
		r.logger.Debug("marked message as read", "message_id", msgID)
	}
}

func (r *Reader) poll(ctx context.Context, out chan<- *api.DebitAlert) {
	r.logger.Debug("polling for debit alerts", "query", r.query)

	var resp *gmail.ListMessagesResponse
	err := withRateLimitRetry(func() error {
		call := r.client.Users.Messages.List("me").Q(r.query).Context(ctx)
		if r.maxResults > 0 {
			call = call.MaxResults(r.maxResults)
		}
		var listErr error
		resp, listErr = call.Do()
		return listErr
	})
	if err != nil {
		r.logger.Error("failed to list messages", "error", err)
		return
	}

	if len(resp.Messages) == 0 {
		r.logger.Debug("no matching messages")
		return
	}
	r.logger.Info("found messages", "count", len(resp.Messages))

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}

	existing := map[string]bool{}
	if r.deduper != nil {
		var dedupErr error
		existing, dedupErr = r.deduper.ExistingMessageIDs(ctx, ids)
		if dedupErr != nil {
			// Fall back to processing everything; the writer's conflict
			// handling keeps duplicates out of storage.
			r.logger.Warn("dedup check failed, processing all messages", "error", dedupErr)
			existing = map[string]bool{}
		}
	}

	for _, id := range ids {
		if existing[id] {
			r.logger.Debug("skipping already ingested message", "message_id", id)
			continue
		}
		if err := r.processMessage(ctx, id, out); err != nil {
			r.logger.Error("failed to process message", "message_id", id, "error", err)
		}
	}
}

func (r *Reader) processMessage(ctx context.Context, msgID string, out chan<- *api.DebitAlert) error {
	var msg *gmail.Message
	err := withRateLimitRetry(func() error {
		var getErr error
		msg, getErr = r.client.Users.Messages.Get("me", msgID).Format("full").Context(ctx).Do()
		return getErr
	})
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	from := headerValue(msg, "From")
	to := headerValue(msg, "To")
	subject := headerValue(msg, "Subject")

	body := ExtractHTMLBody(msg.Payload)
	if body == "" {
		r.logger.Warn("empty message body", "message_id", msgID, "subject", subject)
		return nil
	}

	record, status := r.parser.Parse(ctx, from, subject, body)
	if !status.Parsed() {
		// Expected for non-alert mail matching the subject query; skip
		// silently and move on with the batch.
		r.logger.Debug("message not parseable",
			"message_id", msgID,
			"subject", subject,
			"status", status.String(),
		)
		return nil
	}

	alert := &api.DebitAlert{
		MessageID: msgID,
		From:      bareAddress(from),
		To:        bareAddress(to),
		Subject:   subject,
		Body:      body,
		EmailDate: emailDate(msg),
		Record:    *record,
	}

	r.logger.Debug("parsed debit alert",
		"message_id", msgID,
		"bank", record.BankName,
		"currency", record.CurrencyCode,
		"has_amount", record.Amount != nil,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- alert:
	}
	return nil
}

// withRateLimitRetry retries a Gmail API call when it is rate limited.
func withRateLimitRetry(fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(func(err error) bool {
			if apiErr, ok := err.(*googleapi.Error); ok {
				return apiErr.Code == http.StatusTooManyRequests
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(5*time.Second),
		retry.LastErrorOnly(true),
	)
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, header := range msg.Payload.Headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

// ExtractHTMLBody walks the MIME tree for the first text/html part,
// descending into nested multiparts. Falls back to the top-level body when no
// HTML part exists.
func ExtractHTMLBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
				return string(decoded)
			}
		}
		if len(part.Parts) > 0 {
			if nested := ExtractHTMLBody(part); nested != "" {
				return nested
			}
		}
	}

	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			return string(decoded)
		}
	}

	return ""
}

var angleAddr = regexp.MustCompile(`<(.+)>`)

// bareAddress reduces a "Display Name <addr@host>" header to addr@host.
func bareAddress(header string) string {
	if m := angleAddr.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return header
}

// emailDate prefers the Date header and falls back to the provider's internal
// receive time.
func emailDate(msg *gmail.Message) time.Time {
	if raw := headerValue(msg, "Date"); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t
		}
	}
	return time.Unix(msg.InternalDate/1000, 0)
}
