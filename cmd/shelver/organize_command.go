package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/daemon"
	"shelver/internal/logging"
	"shelver/internal/mover"
	"shelver/internal/report"
)

type passJSON struct {
	ID         string        `json:"id"`
	Trigger    string        `json:"trigger"`
	StartedAt  string        `json:"started_at"`
	DurationMS int64         `json:"duration_ms"`
	Moved      int           `json:"moved"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	MovedBytes int64         `json:"moved_bytes"`
	Outcomes   []outcomeJSON `json:"outcomes"`
}

type outcomeJSON struct {
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	Destination string `json:"destination,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	Bytes       int64  `json:"bytes,omitempty"`
}

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var showSkipped bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Run a single organizing pass over the watch root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pass, err := d.RunOnce(runCtx)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := writeJSON(cmd, toPassJSON(pass)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderPassSummary(cfg, pass, showSkipped))
			}

			if failed := pass.Counts().Failed; failed > 0 {
				return fmt.Errorf("%d file(s) could not be moved", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSkipped, "all", false, "Include skipped files in the summary")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the pass as JSON")
	return cmd
}

func renderPassSummary(cfg *config.Config, pass *report.Pass, showSkipped bool) string {
	counts := pass.Counts()
	rows := make([][]string, 0, len(pass.Outcomes))
	for _, o := range pass.Outcomes {
		if o.Status == mover.StatusSkipped && !showSkipped {
			continue
		}
		detail := o.Detail()
		if o.Status == mover.StatusMoved {
			detail = relativeTo(cfg.WatchRoot, o.Destination)
		}
		size := ""
		if o.Bytes > 0 {
			size = humanize.IBytes(uint64(o.Bytes))
		}
		rows = append(rows, []string{string(o.Status), o.Filename, detail, size})
	}

	header := fmt.Sprintf("Pass %s (%s) finished in %s: %d moved, %d skipped, %d failed",
		shortID(pass.ID), pass.Trigger, pass.Duration().Round(time.Millisecond), counts.Moved, counts.Skipped, counts.Failed)
	if len(rows) == 0 {
		return header
	}
	tbl := tableSpec{
		headers: []string{"Status", "File", "Detail", "Size"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		rows:    rows,
	}
	if counts.MovedBytes > 0 {
		tbl.footer = []string{"", strconv.Itoa(counts.Moved) + " moved", "", humanize.IBytes(uint64(counts.MovedBytes))}
	}
	return header + "\n" + tbl.render()
}

func toPassJSON(pass *report.Pass) passJSON {
	counts := pass.Counts()
	out := passJSON{
		ID:         pass.ID,
		Trigger:    pass.Trigger,
		StartedAt:  pass.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: pass.Duration().Milliseconds(),
		Moved:      counts.Moved,
		Skipped:    counts.Skipped,
		Failed:     counts.Failed,
		MovedBytes: counts.MovedBytes,
		Outcomes:   make([]outcomeJSON, 0, len(pass.Outcomes)),
	}
	for _, o := range pass.Outcomes {
		entry := outcomeJSON{
			Filename:    o.Filename,
			Status:      string(o.Status),
			Destination: o.Destination,
			Reason:      string(o.Reason),
			Attempts:    o.Attempts,
			Bytes:       o.Bytes,
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, entry)
	}
	return out
}

func relativeTo(root, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
