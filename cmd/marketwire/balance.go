package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// BalanceCmd creates the balance command
func BalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			bal, err := client.GetBalance(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s available: %.2f (hold: %.2f)\n", bal.Currency, bal.Available, bal.Hold)
			return nil
		},
	}
}
