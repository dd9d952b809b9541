package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavlealeksic/mailstore/internal/query"
)

var (
	searchAccount     string
	searchFolder      string
	searchLimit       int
	searchOffset      int
	searchSort        string
	searchAsc         bool
	searchUnread      bool
	searchStarred     bool
	searchAttachments bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search cached messages",
	Long: `Search cached messages with a Gmail-style query.

Examples:
  mailstore search "project update"
  mailstore search from:alice@example.com is:unread
  mailstore search subject:"quarterly report" after:2024-01-01
  mailstore search has:attachment larger:5M --folder INBOX`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		sortBy, err := sortFieldFromString(searchSort)
		if err != nil {
			return err
		}

		limit := searchLimit
		if limit <= 0 {
			limit = cfg.Search.DefaultLimit
		}

		engine := query.NewEngine(s.DB())
		results, err := engine.SearchMessages(cmd.Context(), query.SearchOptions{
			Query:          strings.Join(args, " "),
			AccountID:      searchAccount,
			Folder:         searchFolder,
			IsUnread:       searchUnread,
			IsStarred:      searchStarred,
			HasAttachments: searchAttachments,
			SortBy:         sortBy,
			SortAsc:        searchAsc,
			Limit:          limit,
			Offset:         searchOffset,
		})
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No messages found")
			return nil
		}

		for _, m := range results {
			flags := ""
			if !m.Flags.IsRead {
				flags += "U"
			}
			if m.Flags.IsStarred {
				flags += "*"
			}
			if m.Flags.HasAttachments {
				flags += "A"
			}
			fmt.Printf("%-20s %-3s %-30s %-40s %s\n",
				m.Date.Format("2006-01-02 15:04"),
				flags,
				truncate(m.From.Email, 30),
				truncate(m.Subject, 40),
				m.Folder)
		}
		fmt.Printf("\n%d message(s)\n", len(results))
		return nil
	},
}

func sortFieldFromString(s string) (query.SortField, error) {
	switch strings.ToLower(s) {
	case "":
		return query.SortDefault, nil
	case "date":
		return query.SortDate, nil
	case "from":
		return query.SortFrom, nil
	case "subject":
		return query.SortSubject, nil
	case "size":
		return query.SortSize, nil
	default:
		return 0, fmt.Errorf("unknown sort field %q (date, from, subject, size)", s)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	searchCmd.Flags().StringVar(&searchAccount, "account", "", "restrict to one account id")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "restrict to one folder")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "sort field: date, from, subject, size")
	searchCmd.Flags().BoolVar(&searchAsc, "asc", false, "sort ascending")
	searchCmd.Flags().BoolVar(&searchUnread, "unread", false, "unread messages only")
	searchCmd.Flags().BoolVar(&searchStarred, "starred", false, "starred messages only")
	searchCmd.Flags().BoolVar(&searchAttachments, "attachments", false, "messages with attachments only")
	rootCmd.AddCommand(searchCmd)
}
