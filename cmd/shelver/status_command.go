package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"shelver/internal/config"
	"shelver/internal/daemonrun"
	"shelver/internal/history"
	"shelver/internal/logging"
	"shelver/internal/rules"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report configuration, rule table and daemon state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := []string{renderSectionHeader("shelver", colorize)}
			lines = append(lines, statusLines(cmd, cfg, ctx.configPath, colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func statusLines(cmd *cobra.Command, cfg *config.Config, configPath string, colorize bool) []string {
	var lines []string
	add := func(label string, kind statusKind, message string) {
		lines = append(lines, renderStatusLine(label, kind, message, colorize))
	}

	if _, err := os.Stat(configPath); err == nil {
		add("Config", statusOK, configPath)
	} else {
		add("Config", statusInfo, "defaults (no config file)")
	}
	add("Watch root", statusOK, cfg.WatchRoot)

	if pid, running := daemonPID(cfg); running {
		add("Daemon", statusOK, fmt.Sprintf("running (pid %d)", pid))
	} else {
		add("Daemon", statusWarn, "not running")
	}

	table, err := rules.New(cfg.Categories)
	if err != nil {
		add("Rules", statusError, err.Error())
	} else {
		extensions := 0
		for _, rule := range table.Rules() {
			extensions += len(rule.Extensions)
		}
		msg := fmt.Sprintf("%d folders, %d extensions", table.Len(), extensions)
		if n := len(table.Shadowed()); n > 0 {
			add("Rules", statusWarn, fmt.Sprintf("%s, %d shadowed", msg, n))
		} else {
			add("Rules", statusOK, msg)
		}
	}

	if !cfg.History.Enabled {
		add("History", statusInfo, "disabled")
		return lines
	}
	store, err := history.Open(cfg, logging.NewNop())
	if err != nil {
		add("History", statusError, err.Error())
		return lines
	}
	defer store.Close()
	passes, err := store.Passes(cmd.Context(), 1)
	switch {
	case err != nil:
		add("History", statusError, err.Error())
	case len(passes) == 0:
		add("History", statusInfo, "no passes recorded")
	default:
		last := passes[0]
		add("Last pass", statusInfo, fmt.Sprintf("%s via %s: %d moved, %d skipped, %d failed",
			last.StartedAt.Local().Format("2006-01-02 15:04:05"), last.Trigger,
			last.Counts.Moved, last.Counts.Skipped, last.Counts.Failed))
	}
	return lines
}

// daemonPID reports the pid from the pid file and whether that process is alive.
func daemonPID(cfg *config.Config) (int, bool) {
	pid, err := daemonrun.ReadPID(cfg)
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return pid, false
	}
	return pid, true
}
