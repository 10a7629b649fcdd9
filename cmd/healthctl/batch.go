package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthpro/assessment"
	"github.com/liamcoop/healthpro/internal/config"
	"github.com/liamcoop/healthpro/internal/database"
	"github.com/liamcoop/healthpro/profiles"
	"github.com/liamcoop/healthpro/storage"
)

func newBatchCmd(cfg config.Config) *cobra.Command {
	var (
		profileID string
		workers   int
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Score every user in the database against one profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for batch scoring")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := database.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			manager := profiles.NewManager(profiles.NewPostgresBackend(db))
			if err := manager.LoadAll(ctx); err != nil {
				return err
			}

			svc := assessment.NewService(storage.NewPostgresEntryStore(db), manager,
				assessment.WithDefaultProfile(cfg.DefaultProfile),
				assessment.WithWorkers(workers))

			report, err := svc.AssessAll(ctx, profileID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "p", cfg.DefaultProfile, "Profile to score against")
	cmd.Flags().IntVarP(&workers, "workers", "w", cfg.BatchWorkers, "Users scored concurrently")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")
	return cmd
}
