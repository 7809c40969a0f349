package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconcile pass over the asset ledger and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if grace > 0 {
				rt.cfg.ReconcileGrace = grace
			}
			deleted, err := rt.sweeper().Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d objects\n", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "override RECONCILE_GRACE for this run")
	return cmd
}
