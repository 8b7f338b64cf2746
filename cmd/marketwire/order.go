package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketwire/marketwire/internal/gateway"
)

// OrderCmd creates the order command and its subcommands
func OrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place and cancel orders",
	}
	cmd.AddCommand(orderSideCmd(gateway.SideBuy))
	cmd.AddCommand(orderSideCmd(gateway.SideSell))
	cmd.AddCommand(orderCancelCmd())
	return cmd
}

func orderSideCmd(side gateway.Side) *cobra.Command {
	var price float64

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s SYMBOL QUANTITY", side),
		Short: fmt.Sprintf("Place a %s order", side),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}

			client, err := dialClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			order, err := client.PlaceOrder(ctx, gateway.OrderParams{
				Symbol:   args[0],
				Side:     side,
				Quantity: qty,
				Price:    price,
			})
			if err != nil {
				return err
			}
			fmt.Printf("order %s: %s %s %.4f @ %.2f (%s)\n",
				order.ID, order.Side, order.Symbol, order.Quantity, order.Price, order.Status)
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "limit price (omit for market order)")
	return cmd
}

func orderCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ORDER_ID",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := client.CancelOrder(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("order %s cancelled\n", args[0])
			return nil
		},
	}
}
