// Package report carries per-pass outcome summaries to their sinks.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"shelver/internal/logging"
	"shelver/internal/mover"
)

// Trigger values describe what started a pass.
const (
	TriggerStartup = "startup"
	TriggerEvent   = "event"
	TriggerManual  = "manual"
)

// Pass aggregates every outcome produced by one dispatcher pass.
type Pass struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []mover.Outcome
}

// Counts tallies outcomes by status.
type Counts struct {
	Moved      int
	Skipped    int
	Failed     int
	MovedBytes int64
}

// Counts returns status totals for the pass.
func (p *Pass) Counts() Counts {
	var c Counts
	if p == nil {
		return c
	}
	for _, o := range p.Outcomes {
		switch o.Status {
		case mover.StatusMoved:
			c.Moved++
			c.MovedBytes += o.Bytes
		case mover.StatusSkipped:
			c.Skipped++
		case mover.StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Duration returns how long the pass ran.
func (p *Pass) Duration() time.Duration {
	if p == nil || p.FinishedAt.IsZero() {
		return 0
	}
	return p.FinishedAt.Sub(p.StartedAt)
}

// Sink receives outcomes as they complete and the pass once it finishes.
type Sink interface {
	RecordOutcome(ctx context.Context, passID string, outcome mover.Outcome)
	RecordPass(ctx context.Context, pass *Pass)
}

// Multi fans out to several sinks in order.
type Multi []Sink

func (m Multi) RecordOutcome(ctx context.Context, passID string, outcome mover.Outcome) {
	for _, s := range m {
		if s != nil {
			s.RecordOutcome(ctx, passID, outcome)
		}
	}
}

func (m Multi) RecordPass(ctx context.Context, pass *Pass) {
	for _, s := range m {
		if s != nil {
			s.RecordPass(ctx, pass)
		}
	}
}

// LogSink writes outcomes to a structured logger. Skips log at DEBUG, moves
// at INFO and failures at ERROR.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "report")}
}

func (s *LogSink) RecordOutcome(ctx context.Context, _ string, o mover.Outcome) {
	logger := logging.WithContext(ctx, s.logger)
	switch o.Status {
	case mover.StatusMoved:
		logger.Info("file moved",
			logging.String("source", o.Source),
			logging.String("destination", o.Destination),
			logging.String("size", humanize.Bytes(uint64(max(o.Bytes, 0)))),
			logging.Int("attempts", o.Attempts),
			logging.Duration("elapsed", o.Duration),
		)
	case mover.StatusSkipped:
		attrs := logging.DecisionAttrs("organize", "skipped", string(o.Reason))
		if o.Err != nil {
			attrs = append(attrs, logging.Error(o.Err))
		}
		logger.Debug("file skipped", logging.Args(attrs...)...)
	case mover.StatusFailed:
		logging.ErrorWithContext(logger, "file move failed", "move_failed",
			logging.String("source", o.Source),
			logging.Int("attempts", o.Attempts),
			logging.Error(o.Err),
			logging.String(logging.FieldErrorHint, "check permissions on the destination folder; the file stays in place and is retried on the next pass"),
		)
	}
}

func (s *LogSink) RecordPass(_ context.Context, p *Pass) {
	c := p.Counts()
	logger := s.logger
	attrs := []logging.Attr{
		logging.String(logging.FieldPassID, p.ID),
		logging.String(logging.FieldTrigger, p.Trigger),
		logging.Int("files", len(p.Outcomes)),
		logging.Int("moved", c.Moved),
		logging.Int("skipped", c.Skipped),
		logging.Int("failed", c.Failed),
		logging.String("moved_size", humanize.Bytes(uint64(c.MovedBytes))),
		logging.Duration("elapsed", p.Duration()),
	}
	if c.Moved == 0 && c.Failed == 0 {
		logger.Debug("pass complete", logging.Args(attrs...)...)
		return
	}
	logger.Info("pass complete", logging.Args(attrs...)...)
}
