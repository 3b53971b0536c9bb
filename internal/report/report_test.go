package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"shelver/internal/mover"
	"shelver/internal/report"
	"shelver/internal/services"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestCounts(t *testing.T) {
	moved := mover.Moved("a", "b", 1)
	moved.Bytes = 100
	pass := &report.Pass{Outcomes: []mover.Outcome{
		moved,
		mover.Skipped(mover.ReasonNoRuleMatch, nil),
		mover.Skipped(mover.ReasonIgnored, nil),
		mover.Failed(errors.New("x"), 3),
	}}
	c := pass.Counts()
	if c.Moved != 1 || c.Skipped != 2 || c.Failed != 1 || c.MovedBytes != 100 {
		t.Fatalf("unexpected counts %+v", c)
	}
	var empty *report.Pass
	if empty.Counts() != (report.Counts{}) || empty.Duration() != 0 {
		t.Fatal("nil pass should report zero values")
	}
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := report.NewLogSink(captureLogger(&buf))
	ctx := services.WithFile(services.WithPassID(context.Background(), "pass-1"), "a.jpg")

	sink.RecordOutcome(ctx, "pass-1", mover.Moved("/w/a.jpg", "/w/Images/a.jpg", 1))
	sink.RecordOutcome(ctx, "pass-1", mover.Skipped(mover.ReasonNoRuleMatch, nil))
	sink.RecordOutcome(ctx, "pass-1", mover.Failed(errors.New("denied"), 1))

	entries := decodeLines(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantLevels := []string{"INFO", "DEBUG", "ERROR"}
	for i, want := range wantLevels {
		if entries[i]["level"] != want {
			t.Fatalf("entry %d level = %v, want %s", i, entries[i]["level"], want)
		}
		if entries[i]["pass_id"] != "pass-1" || entries[i]["file"] != "a.jpg" {
			t.Fatalf("entry %d missing context fields: %v", i, entries[i])
		}
	}
	if entries[1]["decision_reason"] != "no_rule_match" {
		t.Fatalf("expected skip reason, got %v", entries[1])
	}
	if entries[2]["event_type"] != "move_failed" {
		t.Fatalf("expected event_type on failure, got %v", entries[2])
	}
}

func TestLogSinkPassSummary(t *testing.T) {
	var buf bytes.Buffer
	sink := report.NewLogSink(captureLogger(&buf))
	start := time.Now()
	pass := &report.Pass{
		ID:         "p",
		Trigger:    report.TriggerStartup,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Outcomes:   []mover.Outcome{mover.Moved("a", "b", 1)},
	}
	sink.RecordPass(context.Background(), pass)
	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected one summary line, got %d", len(entries))
	}
	e := entries[0]
	if e["level"] != "INFO" || e["moved"] != float64(1) || e["trigger"] != "startup" {
		t.Fatalf("unexpected summary %v", e)
	}
}

type countingSink struct {
	outcomes, passes int
}

func (c *countingSink) RecordOutcome(context.Context, string, mover.Outcome) { c.outcomes++ }
func (c *countingSink) RecordPass(context.Context, *report.Pass)            { c.passes++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := report.Multi{a, nil, b}
	m.RecordOutcome(context.Background(), "p", mover.Outcome{})
	m.RecordPass(context.Background(), &report.Pass{})
	if a.outcomes != 1 || b.outcomes != 1 || a.passes != 1 || b.passes != 1 {
		t.Fatalf("unexpected fan out a=%+v b=%+v", a, b)
	}
}
