package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meililab/backend/internal/execution"
)

func commissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commissions",
		Short: "Commission ledger tooling",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "audit",
		Short: "List paid referred orders that have no commission record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeDB, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			missing, err := execution.RunCommissionAudit(cmd.Context(), a.OrderRepo, a.Settings, slog.Default())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(missing) == 0 {
				fmt.Fprintln(out, "no missing commissions")
				return nil
			}
			for _, o := range missing {
				fmt.Fprintf(out, "%s\tuser=%s\tamount=%s\tpaid_at=%v\n", o.TradeNo, o.UserID, o.Amount.StringFixed(2), o.PaidAt)
			}
			return nil
		},
	})
	return cmd
}
