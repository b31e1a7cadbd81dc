package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/blazzjosh/lucra.ai/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// testConfig returns a config pointing at the integration database, or skips
// the test when none is configured.
func testConfig(t *testing.T) Config {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}
	return Config{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}
}

func TestNew_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "lucra",
		User:     "lucra",
		Password: "password",
		SSLMode:  "disable",
	}

	if _, err := New(cfg, testLogger()); err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

func TestNew_Defaults(t *testing.T) {
	writer, err := New(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer writer.Close()

	if writer.batchSize != 10 {
		t.Errorf("expected default batchSize=10, got %d", writer.batchSize)
	}
	if writer.flushInterval != 30*time.Second {
		t.Errorf("expected default flushInterval=30s, got %v", writer.flushInterval)
	}
}

func TestLookupCurrency_Seeded(t *testing.T) {
	writer, err := New(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer writer.Close()

	ctx := context.Background()

	for _, code := range []string{"NGN", "USD", "EUR", "GBP"} {
		id, found, err := writer.LookupCurrency(ctx, code)
		if err != nil {
			t.Fatalf("LookupCurrency(%s): %v", code, err)
		}
		if !found {
			t.Errorf("LookupCurrency(%s): not found, want seeded", code)
		}
		if id == uuid.Nil {
			t.Errorf("LookupCurrency(%s): nil id", code)
		}
	}

	if _, found, err := writer.LookupCurrency(ctx, "XYZ"); err != nil || found {
		t.Errorf("LookupCurrency(XYZ) = found=%v err=%v, want not found", found, err)
	}
}

func TestWrite_SingleAlert(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 1 // force immediate write
	cfg.FlushInterval = 1 * time.Second

	writer, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ngnID, found, err := writer.LookupCurrency(ctx, "NGN")
	if err != nil || !found {
		t.Fatalf("LookupCurrency(NGN) = found=%v err=%v", found, err)
	}

	amount := 12500.00
	alert := &api.DebitAlert{
		MessageID: fmt.Sprintf("test-msg-%d", time.Now().UnixNano()),
		From:      "alert@providusbank.com",
		To:        "customer@example.com",
		Subject:   "Debit Alert",
		Body:      "Amount: NGN 12,500.00",
		EmailDate: time.Now(),
		Record: api.TransactionRecord{
			BankName:     "ProvidusBank",
			Fields:       map[string]string{"Account Number": "0123456789"},
			Amount:       &amount,
			CurrencyCode: "NGN",
			CurrencyID:   ngnID,
		},
	}

	in := make(chan *api.DebitAlert, 1)
	ackChan := make(chan string, 1)

	errChan := make(chan error, 1)
	go func() {
		errChan <- writer.Write(ctx, in, ackChan)
	}()

	in <- alert
	close(in)

	select {
	case msgID := <-ackChan:
		if msgID != alert.MessageID {
			t.Errorf("expected ack for %s, got %s", alert.MessageID, msgID)
		}
	case <-time.After(3 * time.Second):
		t.Error("timeout waiting for acknowledgment")
	}

	if err := <-errChan; err != nil {
		t.Errorf("writer returned error: %v", err)
	}

	// The alert must now register as ingested.
	existing, err := writer.ExistingMessageIDs(context.Background(), []string{alert.MessageID})
	if err != nil {
		t.Fatalf("ExistingMessageIDs: %v", err)
	}
	if !existing[alert.MessageID] {
		t.Errorf("message %s not reported as existing", alert.MessageID)
	}
}

// Alerts without a bank-extracted amount are acknowledged but never stored.
func TestWrite_NilAmountSkipped(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 1
	cfg.FlushInterval = 1 * time.Second

	writer, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alert := &api.DebitAlert{
		MessageID: fmt.Sprintf("test-nil-%d", time.Now().UnixNano()),
		From:      "alert@providusbank.com",
		Subject:   "Debit Alert",
		Body:      "You spent £3.50 today",
		EmailDate: time.Now(),
		Record: api.TransactionRecord{
			BankName:     "ProvidusBank",
			Fields:       map[string]string{},
			CurrencyCode: "GBP",
		},
	}

	in := make(chan *api.DebitAlert, 1)
	ackChan := make(chan string, 1)
	errChan := make(chan error, 1)
	go func() {
		errChan <- writer.Write(ctx, in, ackChan)
	}()

	in <- alert
	close(in)

	select {
	case msgID := <-ackChan:
		if msgID != alert.MessageID {
			t.Errorf("expected ack for %s, got %s", alert.MessageID, msgID)
		}
	case <-time.After(3 * time.Second):
		t.Error("timeout waiting for acknowledgment")
	}
	if err := <-errChan; err != nil {
		t.Errorf("writer returned error: %v", err)
	}

	existing, err := writer.ExistingMessageIDs(context.Background(), []string{alert.MessageID})
	if err != nil {
		t.Fatalf("ExistingMessageIDs: %v", err)
	}
	if existing[alert.MessageID] {
		t.Errorf("nil-amount alert %s should not be persisted", alert.MessageID)
	}
}
