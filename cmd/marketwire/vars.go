package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketwire/marketwire/internal/config"
	"github.com/marketwire/marketwire/internal/gateway"
	"github.com/marketwire/marketwire/internal/keyring"
	"github.com/marketwire/marketwire/internal/logging"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile string
	verbose bool
)

// CLIConfig holds the loaded configuration (set by main)
var CLIConfig *config.Config

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	CLIConfig = c

	rootCmd := &cobra.Command{
		Use:   "marketwire",
		Short: "MarketWire - trading gateway client",
		Long: `MarketWire is a command-line client for the MarketWire trading gateway.

It keeps a single resilient WebSocket connection to the gateway, queues
requests across disconnects, and streams server push events.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				loaded, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				CLIConfig = &loaded
			}
			level := CLIConfig.Log.Level
			if verbose {
				level = "debug"
			}
			logging.Setup(level, CLIConfig.Log.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: embedded)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(BalanceCmd())
	rootCmd.AddCommand(OrderCmd())
	rootCmd.AddCommand(WatchCmd())
	rootCmd.AddCommand(TokenCmd())

	return rootCmd
}

// dialClient builds a gateway client from the loaded config and the stored
// token, and starts a connection attempt. The caller owns Close.
func dialClient() (*gateway.Client, error) {
	token, err := keyring.GetToken()
	if err != nil {
		return nil, fmt.Errorf("no gateway token: %w (set %s or run 'marketwire token set')", err, keyring.EnvToken)
	}

	gc := CLIConfig.Gateway
	client := gateway.New(gateway.Config{
		URL:            gc.URL,
		Token:          token,
		RequestTimeout: gc.RequestTimeout.Std(),
		DialTimeout:    gc.DialTimeout.Std(),
		BackoffFloor:   gc.BackoffFloor.Std(),
		BackoffCap:     gc.BackoffCap.Std(),
		MaxAttempts:    gc.MaxAttempts,
		PingInterval:   gc.PingInterval.Std(),
		Jitter:         gc.JitterEnabled(),
	})
	client.Connect()
	return client, nil
}
