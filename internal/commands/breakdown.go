package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"utility-tracker/internal/billing"
)

func newBreakdownCommand(opts *globalOptions) *cobra.Command {
	var by string
	var months int

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Break spending down by utility type, payment method or month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if months < 1 {
				return fmt.Errorf("--months must be at least 1")
			}
			view, err := opts.loadView(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)

			switch by {
			case "type":
				if opts.asJSON {
					return writeJSON(out, view.ByType)
				}
				total := billing.TotalBilled(view.ByType)
				fmt.Fprintln(tw, "TYPE\tBILLS\tTOTAL\tAVERAGE\tSHARE\t")
				for _, b := range view.ByType {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.1f%%\t\n", b.Type, b.Count,
						b.TotalAmount.StringFixed(2), b.Average().StringFixed(2), billing.Share(b.TotalAmount, total))
				}
			case "method":
				byMethod := billing.BreakdownByMethod(view.Payments)
				if opts.asJSON {
					return writeJSON(out, byMethod)
				}
				total := billing.TotalPaid(view.Payments)
				fmt.Fprintln(tw, "METHOD\tTOTAL\tSHARE\t")
				for _, b := range byMethod {
					fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t\n", b.Method, b.TotalAmount.StringFixed(2), billing.Share(b.TotalAmount, total))
				}
			case "month":
				series := billing.MonthlySeries(view.Payments, months, view.Now)
				if opts.asJSON {
					return writeJSON(out, series)
				}
				fmt.Fprintln(tw, "MONTH\tPAYMENTS\tTOTAL\t")
				for _, b := range series {
					fmt.Fprintf(tw, "%s\t%d\t%s\t\n", b.Label, b.Count, b.Amount.StringFixed(2))
				}
			default:
				return fmt.Errorf("unknown breakdown %q: want type, method or month", by)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&by, "by", "type", "group by type, method or month")
	cmd.Flags().IntVar(&months, "months", billing.DashboardMonths, "number of months for --by month")

	return cmd
}
