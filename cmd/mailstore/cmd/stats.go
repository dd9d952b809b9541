package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		stats, err := s.Statistics()
		if err != nil {
			return fmt.Errorf("gather statistics: %w", err)
		}

		fmt.Printf("Database: %s\n", s.Path())
		fmt.Printf("  Accounts:    %d\n", stats.Accounts)
		fmt.Printf("  Messages:    %d (%d unread)\n", stats.Messages, stats.UnreadMessages)
		fmt.Printf("  Threads:     %d\n", stats.Threads)
		fmt.Printf("  Folders:     %d\n", stats.Folders)
		fmt.Printf("  Attachments: %d\n", stats.Attachments)
		fmt.Printf("  Size:        %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))

		if len(stats.MessagesByAccount) > 0 {
			fmt.Println("\nMessages by account:")
			emails := make([]string, 0, len(stats.MessagesByAccount))
			for email := range stats.MessagesByAccount {
				emails = append(emails, email)
			}
			sort.Strings(emails)
			for _, email := range emails {
				fmt.Printf("  %-40s %d\n", email, stats.MessagesByAccount[email])
			}
		}

		if len(stats.MessagesByFolder) > 0 {
			fmt.Println("\nMessages by folder:")
			folders := make([]string, 0, len(stats.MessagesByFolder))
			for folder := range stats.MessagesByFolder {
				folders = append(folders, folder)
			}
			sort.Strings(folders)
			for _, folder := range folders {
				fmt.Printf("  %-40s %d\n", folder, stats.MessagesByFolder[folder])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
