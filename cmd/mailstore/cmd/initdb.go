package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long: `Initialize the mailstore database with the required schema.

Safe to run multiple times: tables are only created if they don't already
exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := cfg.DatabasePath()
		logger.Info("initializing database", "path", dbPath)

		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		if err := s.InitSchema(); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		logger.Info("database initialized", "fts", s.FTSAvailable())

		fmt.Printf("Database: %s\n", dbPath)
		if !s.FTSAvailable() {
			fmt.Println("Note: SQLite build lacks FTS5; search uses LIKE fallback")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
