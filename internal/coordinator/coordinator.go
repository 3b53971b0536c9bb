// Package coordinator turns change notifications into serialized scan passes.
//
// The coordinator is Idle or Scanning. It runs one pass at startup, then one
// pass per debounced burst of notifications. A burst fires after one quiet
// debounce window, or once its first event is maxWaitFactor windows old if
// notifications keep arriving. A burst that arrives while a pass is running
// queues exactly one follow-up pass; two passes never overlap. Cancellation
// stops new passes, waits for the running one, then releases the watch
// subscription.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"shelver/internal/logging"
	"shelver/internal/report"
	"shelver/internal/watch"
)

// State is the coordinator's pass state.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
)

// maxWaitFactor bounds a burst to this many debounce windows.
const maxWaitFactor = 4

// Runner executes one scan pass.
type Runner interface {
	RunPass(ctx context.Context, trigger string) (*report.Pass, error)
}

// Coordinator serializes passes triggered by startup, notifications and
// manual requests.
type Coordinator struct {
	runner   Runner
	source   watch.Source
	debounce time.Duration
	logger   *slog.Logger

	pending chan string
	state   atomic.Value
	passes  atomic.Int64
	running atomic.Bool
}

// New constructs a coordinator. source may be nil to run only startup and
// manual passes.
func New(runner Runner, source watch.Source, debounce time.Duration, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		runner:   runner,
		source:   source,
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "coordinator"),
		pending:  make(chan string, 1),
	}
	c.state.Store(StateIdle)
	return c
}

// State reports whether a pass is running.
func (c *Coordinator) State() State {
	return c.state.Load().(State)
}

// Passes reports how many passes have completed.
func (c *Coordinator) Passes() int64 {
	return c.passes.Load()
}

// Trigger requests a pass. If a pass is already queued the request merges
// into it.
func (c *Coordinator) Trigger(trigger string) {
	select {
	case c.pending <- trigger:
	default:
		c.logger.Debug("pass already queued; coalescing trigger", logging.String(logging.FieldTrigger, trigger))
	}
}

// Run blocks until ctx is cancelled or the watch subscription fails.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.runner == nil {
		return errors.New("coordinator: runner is required")
	}
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator: already running")
	}
	defer c.running.Store(false)

	passCtx, stopPasses := context.WithCancel(ctx)
	defer stopPasses()

	var wg sync.WaitGroup
	wg.Go(func() { c.passLoop(passCtx) })

	c.Trigger(report.TriggerStartup)
	err := c.eventLoop(ctx)

	stopPasses()
	wg.Wait()
	if c.source != nil {
		if closeErr := c.source.Close(); closeErr != nil {
			c.logger.Warn("watch subscription close failed", logging.Error(closeErr))
		}
	}
	c.logger.Debug("coordinator stopped", logging.Int64("passes", c.Passes()))
	return err
}

func (c *Coordinator) eventLoop(ctx context.Context) error {
	var (
		events <-chan watch.Event
		errs   <-chan error
	)
	if c.source != nil {
		events = c.source.Events()
		errs = c.source.Errors()
	}

	var (
		timer      *time.Timer
		settle     <-chan time.Time
		burstStart time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("coordinator: watch subscription closed")
			}
			c.logger.Debug("change received",
				logging.String(logging.FieldEventType, string(ev.Kind)),
				logging.String("path", ev.Path),
			)
			if c.debounce <= 0 {
				c.Trigger(report.TriggerEvent)
				continue
			}
			now := time.Now()
			if burstStart.IsZero() {
				burstStart = now
			}
			wait := min(c.debounce, burstStart.Add(maxWaitFactor*c.debounce).Sub(now))
			wait = max(wait, 0)
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			settle = timer.C
		case <-settle:
			settle = nil
			burstStart = time.Time{}
			c.Trigger(report.TriggerEvent)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.WarnWithContext(c.logger, "watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "changes may be missed until the next notification"),
				logging.String(logging.FieldImpact, "a pass may be delayed"),
			)
		}
	}
}

func (c *Coordinator) passLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-c.pending:
			if ctx.Err() != nil {
				return
			}
			c.runPass(ctx, trigger)
		}
	}
}

func (c *Coordinator) runPass(ctx context.Context, trigger string) {
	c.state.Store(StateScanning)
	defer c.state.Store(StateIdle)

	pass, err := c.runner.RunPass(ctx, trigger)
	c.passes.Add(1)
	if err != nil {
		logging.ErrorWithContext(c.logger, "scan pass failed", "pass_failed",
			logging.String(logging.FieldTrigger, trigger),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the watch root is readable"),
		)
		return
	}
	if pass != nil {
		c.logger.Debug("pass finished",
			logging.String(logging.FieldPassID, pass.ID),
			logging.String(logging.FieldTrigger, trigger),
			logging.Duration("elapsed", pass.Duration()),
		)
	}
}
