package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and settle orders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "fulfill <trade_no>",
		Short: "Mark an order paid and grant its credits without asking the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeDB, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := a.Admin.Fulfill(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d credits)\n", args[0], res.Status, res.Credits)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check <trade_no>",
		Short: "Query the gateway and fulfill the order if it was paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeDB, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := a.Orders.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s", args[0], res.Status)
			if res.Credits > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d credits)", res.Credits)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	})
	return cmd
}
