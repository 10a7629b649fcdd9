package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/config"
	"github.com/liamcoop/healthpro/rules"
)

// fileEntry lets entry files use bare dates.
type fileEntry struct {
	health.DailyEntry
	Date string `json:"date"`
}

func newAssessCmd(cfg config.Config) *cobra.Command {
	var (
		profileID string
		rulesFile string
		from, to  string
	)

	cmd := &cobra.Command{
		Use:   "assess [entries.json]",
		Short: "Aggregate one user's entries from a JSON file and classify them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readEntries(args[0])
			if err != nil {
				return err
			}

			fromT, err := parseDay(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			toT, err := parseDay(to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			entries = health.Window(entries, fromT, toT)
			if len(entries) == 0 {
				return fmt.Errorf("no data available: %w", health.ErrEmptyHistory)
			}

			metrics, err := health.Aggregate(entries)
			if err != nil {
				return err
			}

			engine, err := profileEngine(rulesFile, profileID)
			if err != nil {
				return err
			}
			result, err := engine.Classify(metrics)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"profile":    profileID,
				"entries":    len(entries),
				"metrics":    metrics,
				"assessment": result,
			})
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "p", cfg.DefaultProfile, "Rule table profile")
	cmd.Flags().StringVar(&rulesFile, "rules", cfg.RulesFile, "YAML rule table; empty uses the built-in table")
	cmd.Flags().StringVar(&from, "from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day to include (YYYY-MM-DD)")
	return cmd
}

func readEntries(path string) ([]health.DailyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	var raw []fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse entries: %w", err)
	}

	entries := make([]health.DailyEntry, 0, len(raw))
	for i, fe := range raw {
		e := fe.DailyEntry
		e.Date, err = parseDay(fe.Date)
		if err != nil {
			return nil, fmt.Errorf("entry %d: invalid date: %w", i, err)
		}
		if e.UserID == "" {
			e.UserID = "local"
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		e.NormalizeBMI()
		entries = append(entries, e)
	}
	return entries, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func loadTable(path string) (*rules.RuleTable, error) {
	if path == "" {
		return rules.DefaultRuleTable()
	}
	return rules.LoadRuleTableFile(path)
}

func profileEngine(rulesFile, profileID string) (*rules.Engine, error) {
	table, err := loadTable(rulesFile)
	if err != nil {
		return nil, err
	}
	def, ok := table.Profile(profileID)
	if !ok {
		return nil, fmt.Errorf("profile %q is not in the rule table", profileID)
	}
	return def.NewEngine()
}
