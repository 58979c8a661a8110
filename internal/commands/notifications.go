package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"utility-tracker/internal/models"
)

func newNotificationsCommand(opts *globalOptions) *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List overdue, due soon and upcoming bill notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := opts.loadView(cmd.Context())
			if err != nil {
				return err
			}

			list := view.Notifications
			if unreadOnly {
				list = make([]models.Notification, 0, len(list))
				for _, n := range view.Notifications {
					if !n.Read {
						list = append(list, n)
					}
				}
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifications")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRIORITY\tTYPE\tDUE\tAMOUNT\tREAD\tMESSAGE")
			for _, n := range list {
				read := ""
				if n.Read {
					read = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					n.Priority, n.Type, n.DueDate.Format(models.DateLayout),
					n.Amount.StringFixed(2), read, n.Message)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d notifications, %d unread\n", len(list), view.Unread)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only show unread notifications")

	return cmd
}
