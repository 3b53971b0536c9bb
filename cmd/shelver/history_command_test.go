package main

import (
	"strings"
	"testing"

	"shelver/internal/testsupport"
)

func TestHistoryShowsOrganizedFiles(t *testing.T) {
	env := setupCLITestEnv(t, "")
	testsupport.Touch(t, env.cfg.WatchRoot, "holiday.png", "unknown.zzz")

	if _, _, err := runCLI(t, []string{"organize"}, env.configPath); err != nil {
		t.Fatalf("organize: %v", err)
	}

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "holiday.png")
	if strings.Contains(out, "unknown.zzz") {
		t.Fatalf("skipped file listed without --all:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"history", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("history --all: %v", err)
	}
	requireContains(t, out, "unknown.zzz")
	requireContains(t, out, "no_rule_match")

	out, _, err = runCLI(t, []string{"history", "--passes"}, env.configPath)
	if err != nil {
		t.Fatalf("history --passes: %v", err)
	}
	requireContains(t, out, "manual")
}

func TestHistoryEmptyAndDisabled(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No outcomes recorded yet")

	disabled := setupCLITestEnv(t, "\n[history]\nenabled = false\n")
	out, _, err = runCLI(t, []string{"history"}, disabled.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "History is disabled")
}

func TestHistoryRejectsNonPositiveLimit(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if _, _, err := runCLI(t, []string{"history", "--limit", "0"}, env.configPath); err == nil {
		t.Fatal("expected error for --limit 0")
	}
}
