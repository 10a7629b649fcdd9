package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthpro/internal/config"
	"github.com/liamcoop/healthpro/internal/logger"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:          "healthctl",
		Short:        "Score health histories against risk rule tables",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				return nil
			}
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newAssessCmd(cfg))
	rootCmd.AddCommand(newRulesCmd())
	rootCmd.AddCommand(newBatchCmd(cfg))
	rootCmd.AddCommand(newNormsCmd(cfg))
	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
