package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/history"
	"shelver/internal/logging"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var includeSkipped bool
	var showPasses bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently organized files from the outcome journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "History is disabled (history.enabled = false)")
				return nil
			}
			store, err := history.Open(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if showPasses {
				passes, err := store.Passes(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(passes) == 0 {
					fmt.Fprintln(out, "No passes recorded yet")
					return nil
				}
				fmt.Fprintln(out, renderPassHistory(passes))
				return nil
			}

			entries, err := store.Recent(cmd.Context(), limit, includeSkipped)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No outcomes recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderHistory(cfg, entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows to show")
	cmd.Flags().BoolVar(&includeSkipped, "all", false, "Include skipped files")
	cmd.Flags().BoolVar(&showPasses, "passes", false, "Show pass summaries instead of files")
	return cmd
}

func renderHistory(cfg *config.Config, entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := relativeTo(cfg.WatchRoot, e.Destination)
		switch {
		case e.Error != "":
			detail = e.Error
		case e.Reason != "":
			detail = e.Reason
		}
		size := ""
		if e.Bytes > 0 {
			size = humanize.IBytes(uint64(e.Bytes))
		}
		rows = append(rows, []string{
			humanize.Time(e.StartedAt),
			string(e.Status),
			e.Filename,
			detail,
			size,
		})
	}
	return renderTable(
		[]string{"When", "Status", "File", "Detail", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func renderPassHistory(passes []history.PassSummary) string {
	rows := make([][]string, 0, len(passes))
	for _, p := range passes {
		rows = append(rows, []string{
			shortID(p.ID),
			p.Trigger,
			humanize.Time(p.StartedAt),
			strconv.Itoa(p.Counts.Moved),
			strconv.Itoa(p.Counts.Skipped),
			strconv.Itoa(p.Counts.Failed),
			humanize.IBytes(uint64(p.Counts.MovedBytes)),
		})
	}
	return renderTable(
		[]string{"Pass", "Trigger", "Started", "Moved", "Skipped", "Failed", "Bytes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}
