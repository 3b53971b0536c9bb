package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shelver/internal/rules"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Show the extension to folder rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			table, err := rules.New(cfg.Categories)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRules(table))
			return nil
		},
	}
}

func renderRules(table *rules.Table) string {
	var b strings.Builder
	rows := make([][]string, 0, table.Len())
	for i, rule := range table.Rules() {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			rule.Folder(),
			strings.Join(rule.Extensions, ", "),
		})
	}
	b.WriteString(renderTable(
		[]string{"#", "Folder", "Extensions"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	))
	b.WriteString("\n")

	shadowed := table.Shadowed()
	if len(shadowed) == 0 {
		return b.String()
	}
	b.WriteString("\nShadowed extensions (the first declaration wins):\n")
	shadowRows := make([][]string, 0, len(shadowed))
	for _, s := range shadowed {
		shadowRows = append(shadowRows, []string{s.Extension, s.Winner, s.Ignored})
	}
	b.WriteString(renderTable(
		[]string{"Extension", "Sorted Into", "Ignored For"},
		shadowRows,
		nil,
	))
	b.WriteString("\n")
	return b.String()
}
