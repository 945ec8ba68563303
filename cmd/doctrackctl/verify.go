package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"doctrack/internal/routing/projection"
)

func newVerifyCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay every document's audit log and report projection drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.stores.Close()

			drifts, err := projection.Verify(cmd.Context(), s.stores.Documents, s.stores.Events)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(drifts) == 0 {
				fmt.Fprintln(out, "projection matches the audit log")
				return nil
			}
			for _, d := range drifts {
				fmt.Fprintf(out, "%s (record %d): stored %s/%q, replayed %s/%q\n",
					d.DocumentID, d.RecordID,
					d.Stored.Department, d.Stored.Status,
					d.Replayed.Department, d.Replayed.Status)
			}
			return fmt.Errorf("%d documents: %w", len(drifts), errDrift)
		},
	}
}
