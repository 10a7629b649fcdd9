package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/config"
	"github.com/liamcoop/healthpro/norms"
)

func newNormsCmd(cfg config.Config) *cobra.Command {
	var (
		normsFile string
		sexFlag   string
		age       int
	)

	cmd := &cobra.Command{
		Use:   "norms [entries.json]",
		Short: "Show the reference norms for a sex and age, or compare the latest entry with them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadNorms(normsFile)
			if err != nil {
				return err
			}

			var metrics health.AggregatedMetrics
			if len(args) == 1 {
				entries, err := readEntries(args[0])
				if err != nil {
					return err
				}
				if metrics, err = health.Snapshot(entries); err != nil {
					return err
				}
				for i := len(entries) - 1; sexFlag == "" && i >= 0; i-- {
					sexFlag = entries[i].Sex
				}
				if age == 0 {
					age = int(metrics[health.MetricAge])
				}
			}
			if sexFlag == "" || age <= 0 {
				return errors.New("--sex and --age are required when the entries do not record them")
			}

			sex, err := norms.ParseSex(sexFlag)
			if err != nil {
				return err
			}
			if metrics == nil {
				band, err := table.Lookup(sex, age)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), band)
			}

			report, err := table.Compare(sex, age, metrics)
			if err != nil {
				return fmt.Errorf("failed to compare: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&normsFile, "norms", cfg.NormsFile, "YAML reference table; empty uses the built-in table")
	cmd.Flags().StringVar(&sexFlag, "sex", "", "female or male")
	cmd.Flags().IntVar(&age, "age", 0, "Age in years")
	return cmd
}

func loadNorms(path string) (*norms.Table, error) {
	if path == "" {
		return norms.DefaultTable()
	}
	return norms.LoadTableFile(path)
}
