package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavlealeksic/mailstore/internal/query"
	"github.com/pavlealeksic/mailstore/internal/store"
)

var showThread bool

var showCmd = &cobra.Command{
	Use:   "show <message-id>",
	Short: "Show a cached message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		engine := query.NewEngine(s.DB())
		msg, err := engine.GetMessage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if msg == nil {
			return fmt.Errorf("message not found: %s", args[0])
		}

		if showThread {
			thread, err := engine.GetMessagesByThread(cmd.Context(), msg.ThreadID)
			if err != nil {
				return err
			}
			for i, m := range thread {
				if i > 0 {
					fmt.Println(strings.Repeat("-", 72))
				}
				printMessage(m)
			}
			return nil
		}

		printMessage(msg)
		return nil
	},
}

func printMessage(m *store.Message) {
	fmt.Printf("From:    %s <%s>\n", m.From.Name, m.From.Email)
	if len(m.To) > 0 {
		fmt.Printf("To:      %s\n", formatAddresses(m.To))
	}
	if len(m.Cc) > 0 {
		fmt.Printf("Cc:      %s\n", formatAddresses(m.Cc))
	}
	fmt.Printf("Date:    %s\n", m.Date.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Subject: %s\n", m.Subject)
	fmt.Printf("Folder:  %s\n", m.Folder)
	if len(m.Labels) > 0 {
		fmt.Printf("Labels:  %s\n", strings.Join(m.Labels, ", "))
	}
	if len(m.Attachments) > 0 {
		fmt.Println("Attachments:")
		for _, a := range m.Attachments {
			fmt.Printf("  %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.Size)
		}
	}
	fmt.Println()
	if m.BodyText != "" {
		fmt.Println(m.BodyText)
	} else {
		fmt.Println(m.Snippet)
	}
}

func formatAddresses(addrs []store.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		if a.Name != "" {
			parts[i] = fmt.Sprintf("%s <%s>", a.Name, a.Email)
		} else {
			parts[i] = a.Email
		}
	}
	return strings.Join(parts, ", ")
}

func init() {
	showCmd.Flags().BoolVar(&showThread, "thread", false, "show the whole thread")
	rootCmd.AddCommand(showCmd)
}
