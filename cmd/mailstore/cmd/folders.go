package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavlealeksic/mailstore/internal/query"
)

var foldersCmd = &cobra.Command{
	Use:   "folders <account-id>",
	Short: "List an account's folders with counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		folders, err := query.NewEngine(s.DB()).ListFolders(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(folders) == 0 {
			fmt.Println("No folders")
			return nil
		}
		fmt.Printf("%-40s %10s %10s\n", "FOLDER", "MESSAGES", "UNREAD")
		for _, f := range folders {
			fmt.Printf("%-40s %10d %10d\n", f.Path, f.MessageCount, f.UnreadCount)
		}
		return nil
	},
}

var threadsCmd = &cobra.Command{
	Use:   "threads <account-id>",
	Short: "List an account's threads, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		threads, err := query.NewEngine(s.DB()).ListThreads(cmd.Context(), args[0], threadsLimit, 0)
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			fmt.Println("No threads")
			return nil
		}
		for _, t := range threads {
			marker := " "
			if t.HasUnread {
				marker = "U"
			}
			fmt.Printf("%s %-20s %3d  %-50s %s\n",
				marker, t.ID, t.MessageCount, truncate(t.Subject, 50),
				t.LastMessageAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var threadsLimit int

func init() {
	threadsCmd.Flags().IntVar(&threadsLimit, "limit", 50, "max threads to list")
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(threadsCmd)
}
