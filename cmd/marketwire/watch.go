package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marketwire/marketwire/internal/gateway"
)

// WatchCmd creates the watch command
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [EVENT...]",
		Short: "Stream server push events",
		Long: `Subscribe to named push events and print them until interrupted.

With no arguments, watches price_tick and balance_changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := args
			if len(events) == 0 {
				events = []string{gateway.EventPriceTick, gateway.EventBalanceChanged}
			}

			client, err := dialClient()
			if err != nil {
				return err
			}
			defer client.Close()

			for _, name := range events {
				name := name
				client.Subscribe(name, func(data json.RawMessage) {
					fmt.Printf("%s %s\n", name, string(data))
				})
			}
			client.Subscribe(gateway.EventConnectionLost, func(data json.RawMessage) {
				fmt.Fprintf(os.Stderr, "connection lost: %s\n", string(data))
			})
			client.Subscribe(gateway.EventAuthError, func(data json.RawMessage) {
				fmt.Fprintf(os.Stderr, "authentication error: %s\n", string(data))
			})

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}
}
