package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavlealeksic/mailstore/internal/scheduler"
)

var maintainWatch bool

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run database maintenance",
	Long: `Run database maintenance: integrity checks, ANALYZE, full-text
index optimization, and VACUUM.

With --watch the command keeps running and executes maintenance on the
cron schedule from the config file instead of once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		runOnce := func(ctx context.Context) error {
			if err := s.CheckHealth(ctx); err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			if err := s.Optimize(ctx); err != nil {
				return fmt.Errorf("optimize: %w", err)
			}
			if err := s.Vacuum(ctx); err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}
			return nil
		}

		if !maintainWatch {
			if err := runOnce(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Maintenance complete")
			return nil
		}

		if !cfg.Maintenance.Enabled {
			return fmt.Errorf("maintenance is disabled in config")
		}
		sched := scheduler.New().WithLogger(logger)
		if err := sched.AddJob("maintenance", cfg.Maintenance.Schedule, runOnce); err != nil {
			return err
		}
		sched.Start()
		<-cmd.Context().Done()
		<-sched.Stop().Done()
		return cmd.Context().Err()
	},
}

func init() {
	maintainCmd.Flags().BoolVar(&maintainWatch, "watch", false, "run on the configured schedule until interrupted")
	rootCmd.AddCommand(maintainCmd)
}
