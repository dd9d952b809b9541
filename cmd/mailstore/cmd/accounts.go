package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List cached accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		accounts, err := s.ListAccounts()
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts")
			return nil
		}
		for _, a := range accounts {
			fmt.Printf("%-20s %-30s %-10s %s\n", a.ID, a.Email, a.Provider, a.Name)
		}
		return nil
	},
}

var removeAccountCmd = &cobra.Command{
	Use:   "remove-account <account-id>",
	Short: "Remove an account and all its cached data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		if err := s.DeleteAccount(args[0]); err != nil {
			return err
		}
		logger.Info("account removed", "account", args[0])
		fmt.Printf("Removed account %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(removeAccountCmd)
}
