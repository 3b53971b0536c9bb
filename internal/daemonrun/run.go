// Package daemonrun hosts the foreground process runtime: signal handling,
// per-run log files, log retention and the pid file.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shelver/internal/config"
	"shelver/internal/daemon"
	"shelver/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the shelver daemon runtime loop. SIGINT and SIGTERM stop it
// gracefully; SIGHUP requests an immediate pass.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("shelver-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shelver.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "shelver-*.log", Exclude: []string{logPath}},
	)

	d, err := daemon.New(cfg, logger, daemon.WithPIDFile(cfg.PIDPath()))
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	stopHangup := forwardHangup(d, logger)
	defer stopHangup()

	err = d.Run(signalCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shelver daemon shutting down")
	return nil
}

// forwardHangup turns SIGHUP into manual pass requests until the returned
// stop func is called.
func forwardHangup(d *daemon.Daemon, logger *slog.Logger) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case <-hup:
				if d.Trigger() {
					logger.Info("manual pass requested", logging.String(logging.FieldEventType, "manual_pass_requested"))
				} else {
					logger.Debug("manual pass request dropped; daemon is not watching yet",
						logging.String(logging.FieldEventType, "manual_pass_dropped"))
				}
			}
		}
	}()
	return func() {
		signal.Stop(hup)
		close(quit)
		<-done
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "shelver.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// ReadPID returns the pid recorded by a running daemon, if any.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}
