package mover_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"shelver/internal/logging"
	"shelver/internal/mover"
	"shelver/internal/services"
	"shelver/internal/testsupport"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestMoveRelocatesIntoFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "a.jpg")
	testsupport.WriteFile(t, src, 10)

	exec := mover.New(cfg, logging.NewNop())
	out := exec.Move(context.Background(), src, "Images", "a.jpg")
	if out.Status != mover.StatusMoved {
		t.Fatalf("expected moved, got %+v", out)
	}
	want := filepath.Join(cfg.WatchRoot, "Images", "a.jpg")
	if out.Destination != want || out.Attempts != 1 || out.Bytes != 10 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
}

func TestMoveNeverOverwritesExistingDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	existing := filepath.Join(cfg.WatchRoot, "Documents", "report.pdf")
	testsupport.WriteFile(t, existing, 3)
	src := filepath.Join(cfg.WatchRoot, "report.pdf")
	testsupport.WriteFile(t, src, 7)

	out := mover.New(cfg, logging.NewNop()).Move(context.Background(), src, "Documents", "report.pdf")
	if out.Status != mover.StatusMoved {
		t.Fatalf("expected moved, got %+v", out)
	}
	if filepath.Base(out.Destination) != "report_1.pdf" {
		t.Fatalf("expected disambiguated name, got %q", out.Destination)
	}
	info, err := os.Stat(existing)
	if err != nil || info.Size() != 3 {
		t.Fatalf("existing destination changed: %v size=%d", err, info.Size())
	}
}

func TestMoveSkipsMissingSourceWithoutTouchingTree(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "gone.jpg")

	out := mover.New(cfg, logging.NewNop()).Move(context.Background(), src, "Images", "gone.jpg")
	if out.Status != mover.StatusSkipped || out.Reason != mover.ReasonNotAccessible {
		t.Fatalf("expected skipped not accessible, got %+v", out)
	}
	if !errors.Is(out.Err, services.ErrNotAccessible) {
		t.Fatalf("expected ErrNotAccessible, got %v", out.Err)
	}
	if _, err := os.Stat(filepath.Join(cfg.WatchRoot, "Images")); !os.IsNotExist(err) {
		t.Fatal("destination folder must not be created for skipped files")
	}
}

func TestMoveSkipsDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := filepath.Join(cfg.WatchRoot, "album.jpg")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	out := mover.New(cfg, logging.NewNop()).Move(context.Background(), dir, "Images", "album.jpg")
	if out.Status != mover.StatusSkipped {
		t.Fatalf("expected skipped, got %+v", out)
	}
}

func TestMoveSkipsLockedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "busy.jpg")
	testsupport.WriteFile(t, src, 4)

	holder := flock.New(src, flock.SetFlag(os.O_RDWR))
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("hold lock: locked=%v err=%v", locked, err)
	}
	defer holder.Unlock()

	out := mover.New(cfg, logging.NewNop()).Move(context.Background(), src, "Images", "busy.jpg")
	if out.Status != mover.StatusSkipped || out.Reason != mover.ReasonNotAccessible {
		t.Fatalf("expected skipped, got %+v", out)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("locked source must stay in place")
	}
}

func TestMoveFailsAfterTransientBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "a.jpg")
	testsupport.WriteFile(t, src, 1)

	calls := 0
	sleeps := 0
	exec := mover.New(cfg, logging.NewNop(),
		mover.WithSleeper(func(context.Context, time.Duration) error { sleeps++; return nil }),
		mover.WithMoveFunc(func(string, string) error {
			calls++
			return &os.LinkError{Op: "rename", Err: syscall.EBUSY}
		}),
	)
	out := exec.Move(context.Background(), src, "Images", "a.jpg")
	if out.Status != mover.StatusFailed || out.Attempts != 3 {
		t.Fatalf("expected failed after 3 attempts, got %+v", out)
	}
	if calls != 3 || sleeps != 2 {
		t.Fatalf("calls=%d sleeps=%d", calls, sleeps)
	}
	if !errors.Is(out.Err, syscall.EBUSY) || !errors.Is(out.Err, services.ErrTransient) {
		t.Fatalf("expected transient EBUSY, got %v", out.Err)
	}
}

func TestMoveFailsImmediatelyOnPermanentError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "a.jpg")
	testsupport.WriteFile(t, src, 1)

	calls := 0
	exec := mover.New(cfg, logging.NewNop(),
		mover.WithSleeper(noSleep),
		mover.WithMoveFunc(func(string, string) error {
			calls++
			return &os.LinkError{Op: "rename", Err: syscall.EACCES}
		}),
	)
	out := exec.Move(context.Background(), src, "Images", "a.jpg")
	if out.Status != mover.StatusFailed || out.Attempts != 1 || calls != 1 {
		t.Fatalf("expected single failed attempt, got %+v calls=%d", out, calls)
	}
	if !errors.Is(out.Err, services.ErrPermanent) {
		t.Fatalf("expected permanent marker, got %v", out.Err)
	}
}

func TestMoveRetriesLostCollisionRaceWithFreshName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "a.jpg")
	testsupport.WriteFile(t, src, 1)

	var targets []string
	exec := mover.New(cfg, logging.NewNop(),
		mover.WithSleeper(noSleep),
		mover.WithMoveFunc(func(from, to string) error {
			targets = append(targets, to)
			if len(targets) == 1 {
				// Another writer claims the name between the check and the rename.
				testsupport.WriteFile(t, to, 1)
				return &os.LinkError{Op: "rename", Old: from, New: to, Err: syscall.EEXIST}
			}
			return os.Rename(from, to)
		}),
	)
	out := exec.Move(context.Background(), src, "Images", "a.jpg")
	if out.Status != mover.StatusMoved || out.Attempts != 2 {
		t.Fatalf("expected moved on second attempt, got %+v", out)
	}
	want := []string{
		filepath.Join(cfg.WatchRoot, "Images", "a.jpg"),
		filepath.Join(cfg.WatchRoot, "Images", "a_1.jpg"),
	}
	if !slices.Equal(targets, want) {
		t.Fatalf("targets = %v, want %v", targets, want)
	}
}

type exhaustedNamer struct{}

func (exhaustedNamer) MakeUnique(string) (string, error) {
	return "", services.Wrap(services.ErrNameSpaceExhausted, "naming", "make unique", "full", nil)
}

func TestMoveReportsNameSpaceExhaustedWithoutAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "a.jpg")
	testsupport.WriteFile(t, src, 1)

	exec := mover.New(cfg, logging.NewNop(), mover.WithNamer(exhaustedNamer{}), mover.WithSleeper(noSleep))
	out := exec.Move(context.Background(), src, "Images", "a.jpg")
	if out.Status != mover.StatusFailed || out.Attempts != 0 {
		t.Fatalf("expected failed with zero attempts, got %+v", out)
	}
	if !errors.Is(out.Err, services.ErrNameSpaceExhausted) {
		t.Fatalf("expected ErrNameSpaceExhausted, got %v", out.Err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatal("source must stay in place")
	}
}

func TestMoveFailsWhenDestinationTreeCannotBeCreated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(cfg.WatchRoot, "a.jpg")
	testsupport.WriteFile(t, src, 1)

	exec := mover.New(cfg, logging.NewNop(),
		mover.WithSleeper(noSleep),
		mover.WithMkdirAll(func(string, os.FileMode) error {
			return &os.PathError{Op: "mkdir", Path: "Images", Err: syscall.ENAMETOOLONG}
		}),
	)
	out := exec.Move(context.Background(), src, "Images", "a.jpg")
	if out.Status != mover.StatusFailed || out.Attempts != 1 {
		t.Fatalf("expected permanent failure, got %+v", out)
	}
}
