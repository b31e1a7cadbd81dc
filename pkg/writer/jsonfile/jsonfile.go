// Package jsonfile implements a Writer that appends debit alerts to a JSON
// file. It exists for running without a database: inspecting what the parser
// produces, or collecting samples.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/blazzjosh/lucra.ai/pkg/api"
)

// Config holds configuration for the JSON file writer.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
	// BatchSize is the number of alerts to buffer before writing.
	BatchSize int
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration
}

// Writer writes debit alerts to a JSON file with batched flushes.
type Writer struct {
	filePath      string
	alerts        []*api.DebitAlert
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

// New creates a new JSON file writer. Existing file content is loaded so
// repeated runs append rather than overwrite.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("jsonfile writer requires a file path")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 30 * time.Second
	}

	w := &Writer{
		filePath:      cfg.FilePath,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger,
	}

	if err := w.loadExisting(); err != nil {
		logger.Warn("could not load existing alerts", "error", err)
	}

	logger.Info("jsonfile writer initialized", "file", cfg.FilePath, "existing_count", len(w.alerts))
	return w, nil
}

func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &w.alerts)
}

// Write consumes alerts from the channel and flushes them to the file in
// batches.
func (w *Writer) Write(ctx context.Context, in <-chan *api.DebitAlert, ackChan chan<- string) error {
	batch := make([]*api.DebitAlert, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.flushBatch(batch); err != nil {
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

// flushBatch appends the batch and rewrites the file. JSON arrays cannot be
// appended in place, so the whole collection is written each time.
func (w *Writer) flushBatch(alerts []*api.DebitAlert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.alerts = append(w.alerts, alerts...)

	data, err := json.MarshalIndent(w.alerts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote alerts to json",
		"batch_count", len(alerts),
		"total_count", len(w.alerts),
	)
	return nil
}

// AlertCount returns the total number of alerts written.
func (w *Writer) AlertCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.alerts)
}
