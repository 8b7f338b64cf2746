package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marketwire/marketwire/internal/keyring"
)

// TokenCmd creates the token command and its subcommands
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored gateway token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [TOKEN]",
		Short: "Store a gateway token in the OS keychain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				fmt.Print("Token: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return fmt.Errorf("empty token")
			}
			if err := keyring.SetToken(token); err != nil {
				return err
			}
			fmt.Println("token stored")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the gateway token from the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keyring.DeleteToken(); err != nil {
				return err
			}
			fmt.Println("token removed")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show where the token would come from",
		Run: func(cmd *cobra.Command, args []string) {
			if os.Getenv(keyring.EnvToken) != "" {
				fmt.Printf("token set via %s\n", keyring.EnvToken)
				return
			}
			if !keyring.Available() {
				fmt.Println("OS keychain unavailable; set " + keyring.EnvToken)
				return
			}
			if _, err := keyring.GetToken(); err != nil {
				fmt.Println("no token stored")
				return
			}
			fmt.Println("token stored in OS keychain")
		},
	})

	return cmd
}
