// Package daemon wires the reader and writer into the ingestion pipeline.
package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/blazzjosh/lucra.ai/pkg/api"
)

// Runner manages the ingestion pipeline lifecycle.
type Runner struct {
	reader api.Reader
	writer api.Writer
	logger *slog.Logger
}

// New creates a new daemon runner.
func New(reader api.Reader, writer api.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		reader: reader,
		writer: writer,
		logger: logger,
	}
}

// Run starts the pipeline and blocks until the context is canceled. Alerts
// flow reader to writer; acknowledgments of persisted message IDs flow back
// so the reader can mark emails as read.
func (r *Runner) Run(ctx context.Context) error {
	alerts := make(chan *api.DebitAlert, 100)
	ackChan := make(chan string, 100)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- r.writer.Write(ctx, alerts, ackChan)
	}()

	r.logger.Info("daemon started")
	if err := r.reader.Read(ctx, alerts, ackChan); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("reader error", "error", err)
	}

	if err := <-writerDone; err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("writer error", "error", err)
	}

	r.logger.Info("daemon stopped")
	return nil
}
