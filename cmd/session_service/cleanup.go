package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/cvperfect-sessions/internal/cleanup"
	"github.com/jonathan/cvperfect-sessions/internal/store"
)

var (
	cleanupDryRun      bool
	cleanupMaxAgeHours int
	cleanupSessionDir  string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired session records",
	Long:  `Run a one-shot retention sweep that deletes session records older than the cutoff, directly against the configured store.`,
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Report what would be deleted without deleting")
	cleanupCmd.Flags().IntVar(&cleanupMaxAgeHours, "max-age-hours", 48, "Delete records older than this many hours")
	cleanupCmd.Flags().StringVar(&cleanupSessionDir, "session-dir", "", "Directory for the file store (used when no database is configured)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if cleanupMaxAgeHours < 1 {
		return fmt.Errorf("--max-age-hours must be at least 1")
	}

	st, err := openCleanupStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	runner := cleanup.NewRunner(st,
		cleanup.WithMaxAge(time.Duration(cleanupMaxAgeHours)*time.Hour),
	)
	report, err := runner.Run(cmd.Context(), cleanupDryRun)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	verb := "deleted"
	if report.DryRun {
		verb = "would delete"
	}
	fmt.Printf("%s %d of %d expired sessions (indexes pruned: %d, errors: %d)\n",
		verb, report.Deleted, report.Found, report.IndexesPruned, len(report.Errors))
	return nil
}

func openCleanupStore(ctx context.Context) (store.Store, error) {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		st, err := store.ConnectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return st, nil
	}

	if cleanupSessionDir == "" {
		return nil, fmt.Errorf("either DATABASE_URL or --session-dir is required")
	}
	st, err := store.NewFile(cleanupSessionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session directory: %w", err)
	}
	return st, nil
}
