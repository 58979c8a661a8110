package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"utility-tracker/internal/billing"
)

type summaryReport struct {
	Summary   billing.Summary   `json:"summary"`
	Analytics billing.Analytics `json:"analytics"`
}

func newSummaryCommand(opts *globalOptions) *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print dashboard figures and spending analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if months < 1 {
				return fmt.Errorf("--months must be at least 1")
			}
			view, err := opts.loadView(cmd.Context())
			if err != nil {
				return err
			}
			report := summaryReport{Summary: view.Summary, Analytics: view.AnalyticsFor(months)}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}

			s, a := report.Summary, report.Analytics
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Overdue bills\t%d\n", s.OverdueCount)
			fmt.Fprintf(tw, "Due this week\t%d\n", s.UpcomingCount)
			fmt.Fprintf(tw, "Pending\t%s (%d bills)\n", s.TotalPending.StringFixed(2), s.PendingCount)
			fmt.Fprintf(tw, "Paid this month\t%s\n", s.PaidThisMonth.StringFixed(2))
			fmt.Fprintf(tw, "Change vs last month\t%.1f%%\n", a.MonthlyChange)
			fmt.Fprintf(tw, "Average monthly (%d months)\t%s\n", months, a.AverageMonthly.StringFixed(2))
			fmt.Fprintf(tw, "Total paid\t%s (%d payments)\n", a.TotalPaid.StringFixed(2), a.PaymentCount)
			if a.HighestMonth != nil {
				fmt.Fprintf(tw, "Highest month\t%s (%s)\n", a.HighestMonth.Label, a.HighestMonth.Amount.StringFixed(2))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&months, "months", billing.AnalyticsMonths, "analytics window in months")

	return cmd
}
