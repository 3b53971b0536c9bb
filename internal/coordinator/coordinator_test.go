package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shelver/internal/coordinator"
	"shelver/internal/logging"
	"shelver/internal/report"
	"shelver/internal/watch"
)

type fakeSource struct {
	events chan watch.Event
	errs   chan error
	mu     sync.Mutex
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan watch.Event, 16), errs: make(chan error, 1)}
}

func (f *fakeSource) Events() <-chan watch.Event { return f.events }
func (f *fakeSource) Errors() <-chan error       { return f.errs }
func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeRunner struct {
	mu       sync.Mutex
	triggers []string
	active   int
	overlap  bool
	started  chan string
	release  chan struct{}
	err      error
}

func newFakeRunner(blocking bool) *fakeRunner {
	r := &fakeRunner{started: make(chan string, 32)}
	if blocking {
		r.release = make(chan struct{})
	}
	return r
}

func (r *fakeRunner) RunPass(_ context.Context, trigger string) (*report.Pass, error) {
	r.mu.Lock()
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()

	r.started <- trigger
	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return &report.Pass{ID: "p", Trigger: trigger}, r.err
}

func (r *fakeRunner) snapshot() ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...), r.overlap
}

func waitStarted(t *testing.T, r *fakeRunner) string {
	t.Helper()
	select {
	case trig := <-r.started:
		return trig
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pass")
		return ""
	}
}

func expectNoPass(t *testing.T, r *fakeRunner, wait time.Duration) {
	t.Helper()
	select {
	case trig := <-r.started:
		t.Fatalf("unexpected pass %q", trig)
	case <-time.After(wait):
	}
}

func startCoordinator(t *testing.T, c *coordinator.Coordinator) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return cancel, done
}

func TestRunPerformsStartupPass(t *testing.T) {
	runner := newFakeRunner(false)
	c := coordinator.New(runner, newFakeSource(), 10*time.Millisecond, logging.NewNop())
	cancel, done := startCoordinator(t, c)
	defer cancel()

	if trig := waitStarted(t, runner); trig != report.TriggerStartup {
		t.Fatalf("expected startup pass, got %q", trig)
	}
	expectNoPass(t, runner, 50*time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestBurstOfEventsIsDebouncedIntoOnePass(t *testing.T) {
	runner := newFakeRunner(false)
	source := newFakeSource()
	c := coordinator.New(runner, source, 40*time.Millisecond, logging.NewNop())
	cancel, done := startCoordinator(t, c)
	defer cancel()
	waitStarted(t, runner)

	for range 5 {
		source.events <- watch.Event{Kind: watch.KindCreated, Path: "/w/a.jpg"}
	}
	if trig := waitStarted(t, runner); trig != report.TriggerEvent {
		t.Fatalf("expected event pass, got %q", trig)
	}
	expectNoPass(t, runner, 100*time.Millisecond)

	cancel()
	<-done
	if triggers, _ := runner.snapshot(); len(triggers) != 2 {
		t.Fatalf("expected 2 passes, got %v", triggers)
	}
}

func TestTriggerDuringPassQueuesExactlyOneMore(t *testing.T) {
	runner := newFakeRunner(true)
	c := coordinator.New(runner, newFakeSource(), 0, logging.NewNop())
	cancel, done := startCoordinator(t, c)
	defer cancel()

	waitStarted(t, runner)
	if c.State() != coordinator.StateScanning {
		t.Fatalf("expected scanning, got %s", c.State())
	}
	for range 5 {
		c.Trigger(report.TriggerManual)
	}
	runner.release <- struct{}{}

	if trig := waitStarted(t, runner); trig != report.TriggerManual {
		t.Fatalf("expected queued pass, got %q", trig)
	}
	runner.release <- struct{}{}
	expectNoPass(t, runner, 50*time.Millisecond)

	cancel()
	<-done
	triggers, overlap := runner.snapshot()
	if len(triggers) != 2 {
		t.Fatalf("expected 2 passes, got %v", triggers)
	}
	if overlap {
		t.Fatal("passes overlapped")
	}
	if c.State() != coordinator.StateIdle {
		t.Fatalf("expected idle after stop, got %s", c.State())
	}
}

func TestShutdownWaitsForInFlightPassThenReleasesSource(t *testing.T) {
	runner := newFakeRunner(true)
	source := newFakeSource()
	c := coordinator.New(runner, source, 0, logging.NewNop())
	cancel, done := startCoordinator(t, c)

	waitStarted(t, runner)
	c.Trigger(report.TriggerManual)
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before in-flight pass finished")
	case <-time.After(50 * time.Millisecond):
	}
	if source.isClosed() {
		t.Fatal("source released before in-flight pass finished")
	}

	runner.release <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !source.isClosed() {
		t.Fatal("expected source closed")
	}
	if triggers, _ := runner.snapshot(); len(triggers) != 1 {
		t.Fatalf("queued pass must not start after cancellation: %v", triggers)
	}
}

func TestPassErrorsDoNotStopCoordinator(t *testing.T) {
	runner := newFakeRunner(false)
	runner.err = errors.New("list failed")
	source := newFakeSource()
	c := coordinator.New(runner, source, 0, logging.NewNop())
	cancel, done := startCoordinator(t, c)
	defer cancel()

	waitStarted(t, runner)
	source.errs <- errors.New("overflow")
	source.events <- watch.Event{Kind: watch.KindModified, Path: "/w/a.jpg"}
	waitStarted(t, runner)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if c.Passes() != 2 {
		t.Fatalf("expected 2 passes, got %d", c.Passes())
	}
}

func TestClosedSubscriptionEndsRun(t *testing.T) {
	runner := newFakeRunner(false)
	source := newFakeSource()
	c := coordinator.New(runner, source, 0, logging.NewNop())
	cancel, done := startCoordinator(t, c)
	defer cancel()

	waitStarted(t, runner)
	close(source.events)
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error when subscription closes")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSteadyEventsStillTriggerPassWithinMaxWait(t *testing.T) {
	runner := newFakeRunner(false)
	source := newFakeSource()
	const debounce = 50 * time.Millisecond
	c := coordinator.New(runner, source, debounce, logging.NewNop())
	cancel, done := startCoordinator(t, c)
	defer cancel()
	waitStarted(t, runner)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		ev := watch.Event{Kind: watch.KindCreated, Path: "/w/big.iso"}
		for {
			select {
			case <-stop:
				return
			case source.events <- ev:
			}
			ev.Kind = watch.KindModified
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	// Writes never pause for a full window; the burst must still fire.
	var trig string
	select {
	case trig = <-runner.started:
	case <-time.After(20 * debounce):
	}
	close(stop)
	<-writerDone
	cancel()
	<-done

	if trig != report.TriggerEvent {
		t.Fatalf("expected an event pass while writes continued, got %q", trig)
	}
}
