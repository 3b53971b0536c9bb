// Package watch adapts filesystem notifications for the watch root into the
// two change kinds the coordinator understands.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"shelver/internal/logging"
)

// Kind classifies a change notification.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
)

// Event reports a change to an entry directly inside the watch root.
type Event struct {
	Kind Kind
	Path string
}

// Source delivers change notifications until closed.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// Watcher is a non-recursive fsnotify subscription on a single directory.
type Watcher struct {
	fs     *fsnotify.Watcher
	root   string
	events chan Event
	errs   chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger
}

// New subscribes to changes in root.
func New(root string, logger *slog.Logger) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(absRoot); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", absRoot, err)
	}

	w := &Watcher{
		fs:     fsw,
		root:   absRoot,
		events: make(chan Event, 64),
		errs:   make(chan error, 8),
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(logger, "watch"),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events returns the translated change stream. It is closed after Close.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns watcher errors. It is closed after Close.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close releases the subscription and waits for the forwarding loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
		close(w.events)
		close(w.errs)
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			translated, keep := translate(ev)
			if !keep {
				continue
			}
			w.logger.Debug("change notification",
				logging.String(logging.FieldEventType, string(translated.Kind)),
				logging.String("path", translated.Path),
			)
			select {
			case w.events <- translated:
			case <-w.done:
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			case <-w.done:
				return
			default:
				w.logger.Warn("dropping watcher error; error channel full", logging.Error(err))
			}
		}
	}
}

// translate maps fsnotify operations onto Created/Modified. Renames into the
// root arrive as Create; removals, renames away and chmods are dropped.
func translate(ev fsnotify.Event) (Event, bool) {
	switch {
	case ev.Has(fsnotify.Create):
		return Event{Kind: KindCreated, Path: ev.Name}, true
	case ev.Has(fsnotify.Write):
		return Event{Kind: KindModified, Path: ev.Name}, true
	default:
		return Event{}, false
	}
}
