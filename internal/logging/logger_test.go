package logging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelver/internal/logging"
	"shelver/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:           format,
		Level:            level,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "dispatcher")
	ctx := services.WithFile(services.WithPassID(context.Background(), "pass-42"), "a.jpg")
	logging.WithContext(ctx, logger).Info("file moved", logging.String("to", "Images/a.jpg"))
	logging.WithContext(ctx, logger).Debug("hidden at info")
	return logPath, func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
}

func TestConsoleLoggerPromotesComponentAndFile(t *testing.T) {
	_, read := newFileLogger(t, "console", "info")
	out := read()
	if !strings.Contains(out, "INFO dispatcher: [a.jpg] file moved") {
		t.Fatalf("unexpected console line: %q", out)
	}
	if !strings.Contains(out, "pass_id=pass-42") || !strings.Contains(out, "to=Images/a.jpg") {
		t.Fatalf("expected structured attrs in %q", out)
	}
	if strings.Contains(out, "hidden at info") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	out := read()
	for _, fragment := range []string{`"msg":"file moved"`, `"level":"info"`, `"pass_id":"pass-42"`, `"file":"a.jpg"`, `"component":"dispatcher"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %q", fragment, out)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "move retry", "move_retry", logging.Error(errors.New("busy")))
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, fragment := range []string{"event_type=move_retry", "error_hint=", "impact=", "error=busy"} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should not be enabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}
