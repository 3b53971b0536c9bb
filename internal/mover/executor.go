package mover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shelver/internal/config"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/naming"
	"shelver/internal/retry"
	"shelver/internal/services"
)

// Namer allocates a destination path that does not exist yet.
type Namer interface {
	MakeUnique(path string) (string, error)
}

// Executor moves files into destination folders under the watch root.
type Executor struct {
	root        string
	namer       Namer
	maxAttempts int
	delay       time.Duration
	sleep       func(context.Context, time.Duration) error
	probe       ProbeFunc
	move        func(src, dst string) error
	mkdirAll    func(path string, perm os.FileMode) error
	logger      *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithNamer overrides the collision namer.
func WithNamer(n Namer) Option {
	return func(e *Executor) {
		if n != nil {
			e.namer = n
		}
	}
}

// WithSleeper overrides how retry delays are waited out (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithProbe overrides the accessibility probe.
func WithProbe(p ProbeFunc) Option {
	return func(e *Executor) {
		if p != nil {
			e.probe = p
		}
	}
}

// WithMoveFunc overrides the no-replace move primitive.
func WithMoveFunc(fn func(src, dst string) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.move = fn
		}
	}
}

// WithMkdirAll overrides destination folder creation.
func WithMkdirAll(fn func(string, os.FileMode) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.mkdirAll = fn
		}
	}
}

// New constructs an executor rooted at cfg.WatchRoot.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		root:        cfg.WatchRoot,
		namer:       naming.New(naming.WithMaxAttempts(cfg.Organizer.MaxNameAttempts)),
		maxAttempts: cfg.Retry.MaxAttempts,
		delay:       cfg.RetryDelay(),
		probe:       Probe,
		move:        fileutil.Move,
		mkdirAll:    os.MkdirAll,
		logger:      logging.NewComponentLogger(logger, "mover"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Move relocates source into folder (relative to the watch root) keeping
// filename unless it collides. The returned outcome is final for this pass.
func (e *Executor) Move(ctx context.Context, source, folder, filename string) Outcome {
	start := time.Now()
	logger := logging.WithContext(ctx, e.logger)

	info, err := e.probe(source)
	if err != nil {
		out := Skipped(ReasonNotAccessible, err)
		out.Source = source
		out.Filename = filename
		out.Duration = time.Since(start)
		return out
	}

	destDir := filepath.Join(e.root, folder)
	var destination string

	policy := retry.Policy{
		MaxAttempts: e.maxAttempts,
		Delay:       e.delay,
		IsRetryable: services.IsTransient,
		Sleep:       e.sleep,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, "move attempt failed; retrying",
				"move_retry",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", e.maxAttempts),
				logging.Duration("delay", e.delay),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "file may still be in use; it will be retried automatically"),
				logging.String(logging.FieldImpact, "move delayed"),
			)
		},
	}

	attempts, err := retry.Do(ctx, policy, func(int) error {
		if err := e.mkdirAll(destDir, 0o755); err != nil {
			return Classify("create destination folder", err)
		}
		target, err := e.namer.MakeUnique(filepath.Join(destDir, filename))
		if err != nil {
			return Classify("allocate destination name", err)
		}
		if err := e.move(source, target); err != nil {
			var cleanup *fileutil.SourceCleanupError
			if errors.As(err, &cleanup) {
				destination = target
				logging.WarnWithContext(logger, "source removal failed after cross-volume copy; duplicate file remains",
					"source_cleanup_failed",
					logging.String("source", source),
					logging.String("destination", target),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "delete the source file manually"),
					logging.String(logging.FieldImpact, "file exists in both locations"),
				)
				return nil
			}
			return Classify("rename", err)
		}
		destination = target
		return nil
	})

	var out Outcome
	switch {
	case err == nil:
		out = Moved(source, destination, attempts)
	case errors.Is(err, services.ErrNameSpaceExhausted):
		out = Failed(err, 0)
	default:
		out = Failed(fmt.Errorf("move %s after %d attempt(s): %w", filename, attempts, err), attempts)
	}
	out.Source = source
	out.Filename = filename
	if info != nil {
		out.Bytes = info.Size()
	}
	out.Duration = time.Since(start)
	return out
}
