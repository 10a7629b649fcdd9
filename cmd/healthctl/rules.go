package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthpro/rules"
)

func newRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rule tables",
	}

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "validate [rules.yaml]",
		Short: "Parse a rule table and compile every expression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			table, err := loadTable(path)
			if err != nil {
				return err
			}
			if err := table.Check(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range table.Profiles {
				fmt.Fprintf(out, "%s: %d rules, moderate >= %d, high >= %d\n",
					p.ID, len(p.Rules), p.Thresholds.Moderate, p.Thresholds.High)
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	})

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "list [rules.yaml]",
		Short: "Print the rules of every profile in evaluation order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			table, err := loadTable(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range table.Profiles {
				fmt.Fprintf(out, "[%s]\n", p.ID)
				for _, r := range p.Rules {
					fmt.Fprintf(out, "  %-20s +%d  %s\n", r.ID, r.Score, describe(r))
				}
			}
			return nil
		},
	})

	return rulesCmd
}

func describe(r *rules.Rule) string {
	if r.Active {
		return r.Expression
	}
	return r.Expression + " (inactive)"
}
