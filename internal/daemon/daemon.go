package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shelver/internal/config"
	"shelver/internal/coordinator"
	"shelver/internal/dispatch"
	"shelver/internal/history"
	"shelver/internal/logging"
	"shelver/internal/mover"
	"shelver/internal/report"
	"shelver/internal/rules"
	"shelver/internal/watch"
)

// ErrAlreadyRunning reports that another instance holds the lock.
var ErrAlreadyRunning = errors.New("another shelver instance is already running")

// Daemon owns the organizing pipeline for one watch root.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	table      *rules.Table
	history    *history.Store
	dispatcher *dispatch.Dispatcher

	lockPath string
	lock     *flock.Flock
	pidPath  string

	newSource func(root string, logger *slog.Logger) (watch.Source, error)

	mu      sync.Mutex
	coord   *coordinator.Coordinator
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	State        coordinator.State
	Passes       int64
	WatchRoot    string
	Rules        int
	Extensions   int
	LockFilePath string
	HistoryPath  string
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	newSource func(string, *slog.Logger) (watch.Source, error)
	sinks     []report.Sink
	moverOpts []mover.Option
	noHistory bool
	pidPath   string
}

// WithSourceFactory replaces the filesystem watcher (useful for tests).
func WithSourceFactory(fn func(string, *slog.Logger) (watch.Source, error)) Option {
	return func(o *options) { o.newSource = fn }
}

// WithSinks adds outcome sinks after the log and history sinks.
func WithSinks(sinks ...report.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithMoverOptions forwards options to the move executor.
func WithMoverOptions(opts ...mover.Option) Option {
	return func(o *options) { o.moverOpts = append(o.moverOpts, opts...) }
}

// WithoutHistory disables the journal regardless of configuration.
func WithoutHistory() Option {
	return func(o *options) { o.noHistory = true }
}

// WithPIDFile records the process id at path for as long as Run holds the
// instance lock.
func WithPIDFile(path string) Option {
	return func(o *options) { o.pidPath = path }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{
		newSource: func(root string, logger *slog.Logger) (watch.Source, error) {
			return watch.New(root, logger)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	table, err := rules.New(cfg.Categories)
	if err != nil {
		return nil, fmt.Errorf("build rule table: %w", err)
	}
	logShadowed(logger, table)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		table:     table,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		pidPath:   o.pidPath,
		newSource: o.newSource,
	}

	sinks := report.Multi{report.NewLogSink(logger)}
	if cfg.History.Enabled && !o.noHistory {
		store, err := history.Open(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.history = store
		d.pruneHistory()
		sinks = append(sinks, store)
	}
	sinks = append(sinks, o.sinks...)

	exec := mover.New(cfg, logger, o.moverOpts...)
	d.dispatcher = dispatch.New(cfg, table, exec, sinks, logger)
	return d, nil
}

func logShadowed(logger *slog.Logger, table *rules.Table) {
	for _, s := range table.Shadowed() {
		logging.WarnWithContext(logger, "extension declared by more than one category; first declaration wins",
			"rule_shadowed",
			logging.String("extension", s.Extension),
			logging.String("winner", s.Winner),
			logging.String("ignored", s.Ignored),
			logging.String(logging.FieldErrorHint, "remove the duplicate extension from one category"),
			logging.String(logging.FieldImpact, "files with this extension go to the first category"),
		)
	}
}

func (d *Daemon) pruneHistory() {
	days := d.cfg.History.RetentionDays
	if d.history == nil || days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := d.history.Prune(context.Background(), cutoff)
	if err != nil {
		d.logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		d.logger.Debug("history pruned", logging.Int64("passes", removed), logging.Int("retention_days", days))
	}
}

func (d *Daemon) acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Run performs the startup pass and keeps organizing until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()

	if d.pidPath != "" {
		if err := writePIDFile(d.pidPath); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(d.pidPath)
	}

	source, err := d.newSource(d.cfg.WatchRoot, d.logger)
	if err != nil {
		return fmt.Errorf("watch %s: %w", d.cfg.WatchRoot, err)
	}

	coord := coordinator.New(d.dispatcher, source, d.cfg.DebounceWindow(), d.logger)
	d.mu.Lock()
	d.coord = coord
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.coord = nil
		d.mu.Unlock()
	}()

	d.logger.Info("shelver daemon started",
		logging.String("watch_root", d.cfg.WatchRoot),
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Organizer.Workers),
		logging.Int("extensions", d.table.Len()),
	)
	err = coord.Run(ctx)
	d.logger.Info("shelver daemon stopped", logging.Int64("passes", coord.Passes()))
	return err
}

// RunOnce performs a single pass outside the watch loop.
func (d *Daemon) RunOnce(ctx context.Context) (*report.Pass, error) {
	if d.running.Load() {
		return nil, errors.New("daemon already running")
	}
	if err := d.acquire(); err != nil {
		return nil, err
	}
	defer d.release()
	return d.dispatcher.RunPass(ctx, report.TriggerManual)
}

// Trigger requests a manual pass from a running daemon. It reports false when
// the daemon is not watching.
func (d *Daemon) Trigger() bool {
	d.mu.Lock()
	coord := d.coord
	d.mu.Unlock()
	if coord == nil {
		return false
	}
	coord.Trigger(report.TriggerManual)
	return true
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// Status returns runtime information.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		State:        coordinator.StateIdle,
		WatchRoot:    d.cfg.WatchRoot,
		Rules:        len(d.table.Rules()),
		Extensions:   d.table.Len(),
		LockFilePath: d.lockPath,
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	d.mu.Lock()
	if d.coord != nil {
		status.State = d.coord.State()
		status.Passes = d.coord.Passes()
	}
	d.mu.Unlock()
	return status
}

// Table exposes the rule table in use.
func (d *Daemon) Table() *rules.Table {
	return d.table
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}
