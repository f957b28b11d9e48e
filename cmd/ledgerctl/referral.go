package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meililab/backend/internal/referral"
)

func referralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Compute and resolve short referral codes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "code <fingerprint>",
		Short: "Print the short code for a device fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := referral.Code(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <code>",
		Short: "Print the user a short code resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeDB, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			id, ok, err := a.Resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no user matches %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})
	return cmd
}
