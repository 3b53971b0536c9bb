// Package dispatch runs scan passes over the watch root.
//
// A pass snapshots the regular files directly inside the root, resolves each
// against the rule table and hands matched files to a fixed pool of workers.
// Every file yields exactly one outcome; the pass returns once all workers
// have finished. A failure on one file never stops its siblings.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelver/internal/config"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/mover"
	"shelver/internal/report"
	"shelver/internal/rules"
	"shelver/internal/services"
)

// Resolver maps a filename to its destination folder.
type Resolver interface {
	Resolve(filename string) (rules.Destination, bool)
}

// Mover relocates one file.
type Mover interface {
	Move(ctx context.Context, source, folder, filename string) mover.Outcome
}

// Task is one file scheduled in one pass.
type Task struct {
	Source   string
	Filename string
}

// Dispatcher enumerates the watch root and fans work out to a worker pool.
type Dispatcher struct {
	root     string
	workers  int
	ignore   []string
	resolver Resolver
	mover    Mover
	sink     report.Sink
	logger   *slog.Logger
}

// New constructs a dispatcher. sink may be nil.
func New(cfg *config.Config, resolver Resolver, mv Mover, sink report.Sink, logger *slog.Logger) *Dispatcher {
	workers := cfg.Organizer.Workers
	if workers <= 0 {
		workers = 1
	}
	ignore := make([]string, 0, len(cfg.Organizer.IgnorePatterns))
	for _, pattern := range cfg.Organizer.IgnorePatterns {
		ignore = append(ignore, strings.ToLower(pattern))
	}
	return &Dispatcher{
		root:     cfg.WatchRoot,
		workers:  workers,
		ignore:   ignore,
		resolver: resolver,
		mover:    mv,
		sink:     sink,
		logger:   logging.NewComponentLogger(logger, "dispatch"),
	}
}

// RunPass performs one full pass. Cancelling ctx does not interrupt a pass
// that has started; moves already scheduled run to completion.
func (d *Dispatcher) RunPass(ctx context.Context, trigger string) (*report.Pass, error) {
	pass := &report.Pass{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	ctx = services.WithTrigger(services.WithPassID(context.WithoutCancel(ctx), pass.ID), trigger)
	logger := logging.WithContext(ctx, d.logger)

	tasks, err := d.enumerate()
	if err != nil {
		pass.FinishedAt = time.Now()
		return pass, services.Wrap(services.ErrTransient, "dispatch", "list watch root", d.root, err)
	}
	logger.Debug("pass started", logging.Int("files", len(tasks)))

	pass.Outcomes = d.process(ctx, pass.ID, tasks)
	pass.FinishedAt = time.Now()
	if d.sink != nil {
		d.sink.RecordPass(ctx, pass)
	}
	return pass, nil
}

func (d *Dispatcher) enumerate() ([]Task, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		tasks = append(tasks, Task{
			Source:   filepath.Join(d.root, entry.Name()),
			Filename: entry.Name(),
		})
	}
	return tasks, nil
}

// process runs every task and returns outcomes in task order.
func (d *Dispatcher) process(ctx context.Context, passID string, tasks []Task) []mover.Outcome {
	outcomes := make([]mover.Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(d.workers, len(tasks)) {
		wg.Go(func() {
			for idx := range jobs {
				task := tasks[idx]
				taskCtx := services.WithFile(ctx, task.Filename)
				out := d.handle(taskCtx, task)
				outcomes[idx] = out
				if d.sink != nil {
					d.sink.RecordOutcome(taskCtx, passID, out)
				}
			}
		})
	}
	for idx := range tasks {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) handle(ctx context.Context, task Task) (out mover.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = mover.Failed(fmt.Errorf("panic while organizing %s: %v", task.Filename, r), 0)
		}
		out.Source = task.Source
		out.Filename = task.Filename
	}()

	if d.ignored(task.Filename) {
		return mover.Skipped(mover.ReasonIgnored, nil)
	}
	dest, ok := d.resolver.Resolve(task.Filename)
	if !ok {
		return mover.Skipped(mover.ReasonNoRuleMatch, nil)
	}
	return d.mover.Move(ctx, task.Source, dest.Folder, dest.Filename)
}

func (d *Dispatcher) ignored(name string) bool {
	if strings.HasPrefix(name, fileutil.TempPrefix) {
		return true
	}
	name = strings.ToLower(name)
	for _, pattern := range d.ignore {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
