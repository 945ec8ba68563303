package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"doctrack/internal/analytics"
)

func newAnalyticsCmd(e env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the per-department dwell time and bottleneck report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer s.stores.Close()

			report, err := analytics.NewService(s.stores.Events, analytics.WithLogger(s.log)).Compute(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, r *analytics.Report) error {
	if len(r.Departments) == 0 {
		_, err := fmt.Fprintln(w, "no completed dwell intervals yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPARTMENT\tAVG HOURS\tSAMPLES\tBOTTLENECK")
	for _, d := range r.Departments {
		flag := ""
		if d.Bottleneck {
			flag = "yes"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%s\n", d.Department, d.AvgHours, d.Count, flag)
	}
	fmt.Fprintf(tw, "\nmean %.2f h, stdev %.2f h\n", r.OverallMean, r.OverallStdev)
	return tw.Flush()
}
