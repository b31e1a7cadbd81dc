// Package postgres persists debit alerts to PostgreSQL and serves as the
// authoritative currency catalog.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/blazzjosh/lucra.ai/pkg/api"
)

//go:embed 001_create_schema.sql
var migrationSQL string

// Config holds the PostgreSQL writer configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// BatchSize is the number of alerts to buffer before writing.
	BatchSize int
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Writer writes debit alerts to a PostgreSQL database. It also implements
// api.CurrencyCatalog and api.Deduper against the same pool.
type Writer struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
}

// New creates a new PostgreSQL writer, verifies connectivity, and runs the
// schema migration.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	w := &Writer{
		pool:          pool,
		logger:        logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}

	if err := w.runMigrations(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return w, nil
}

func (w *Writer) runMigrations(ctx context.Context) error {
	w.logger.Info("running database migrations")
	if _, err := w.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	w.logger.Info("migrations completed")
	return nil
}

// LookupCurrency implements api.CurrencyCatalog. Inactive currencies are
// treated as unknown.
func (w *Writer) LookupCurrency(ctx context.Context, code string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := w.pool.QueryRow(ctx,
		`SELECT id FROM currency WHERE code = $1 AND active`, code,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("looking up currency %q: %w", code, err)
	}
	return id, true, nil
}

// ExistingMessageIDs implements api.Deduper.
func (w *Writer) ExistingMessageIDs(ctx context.Context, messageIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return existing, nil
	}

	rows, err := w.pool.Query(ctx,
		`SELECT email_id FROM debit_emails WHERE email_id = ANY($1)`, messageIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying existing message ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning message id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// Write consumes debit alerts from the channel and writes them in batches
// with periodic flushes.
func (w *Writer) Write(ctx context.Context, in <-chan *api.DebitAlert, ackChan chan<- string) error {
	batch := make([]*api.DebitAlert, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		if err := w.writeBatch(ctx, batch); err != nil {
			return err
		}

		for _, alert := range batch {
			if alert.MessageID == "" {
				continue
			}
			select {
			case ackChan <- alert.MessageID:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		w.logger.Info("wrote alert batch", "count", len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				w.logger.Error("failed to flush final batch", "error", err)
			}
			return ctx.Err()

		case alert, ok := <-in:
			if !ok {
				return flush()
			}

			batch = append(batch, alert)
			if len(batch) >= w.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// writeBatch inserts a batch of alerts inside one transaction. Re-deliveries
// of a message id are dropped by the unique constraint.
func (w *Writer) writeBatch(ctx context.Context, alerts []*api.DebitAlert) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pgBatch := &pgx.Batch{}
	queued := 0
	for _, alert := range alerts {
		rec := alert.Record

		// Alerts whose bank patterns produced no amount are acked but not
		// persisted; an incomplete financial record must never be stored.
		if rec.Amount == nil {
			w.logger.Debug("skipping alert without bank amount",
				"message_id", alert.MessageID,
				"bank", rec.BankName,
			)
			continue
		}

		details, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("marshaling fields for %s: %w", alert.MessageID, err)
		}

		pgBatch.Queue(`
			INSERT INTO debit_emails (
				email_id, subject, body, from_address, to_address,
				bank_name, amount, currency_id, details, email_date, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
			ON CONFLICT (email_id) DO NOTHING
		`,
			alert.MessageID,
			alert.Subject,
			alert.Body,
			alert.From,
			alert.To,
			rec.BankName,
			decimal.NewFromFloat(*rec.Amount),
			rec.CurrencyID,
			details,
			alert.EmailDate,
		)
		queued++
	}

	if queued > 0 {
		results := tx.SendBatch(ctx, pgBatch)
		for i := 0; i < queued; i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("inserting alert %d: %w", i, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("closing batch results: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
		w.logger.Info("closed PostgreSQL connection pool")
	}
}
