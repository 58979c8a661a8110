package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"utility-tracker/internal/amqp"
	"utility-tracker/internal/reminder"
)

type amqpOptions struct {
	url      string
	exchange string
	queue    string
}

func (o *amqpOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.url, "amqp-url", os.Getenv("AMQP_URL"), "AMQP broker URL")
	cmd.Flags().StringVar(&o.exchange, "exchange", envOr("AMQP_EXCHANGE", "utility-tracker"), "AMQP exchange")
	cmd.Flags().StringVar(&o.queue, "queue", envOr("AMQP_QUEUE", "bill_reminders"), "AMQP queue")
}

func (o *amqpOptions) dial(ctx context.Context) (*amqp.Client, error) {
	d := &amqp.Dialer{URL: o.url, Exchange: o.exchange, Queue: o.queue, MaxAttempts: 3}
	return d.Dial(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRemindersCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Send or watch bill reminders",
	}
	cmd.AddCommand(newRemindersSendCommand(opts))
	cmd.AddCommand(newRemindersTailCommand())
	return cmd
}

func newRemindersSendCommand(opts *globalOptions) *cobra.Command {
	var mq amqpOptions

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Run one reminder sweep over every user",
		Long: "Publishes each high priority notification at most once per day. " +
			"Without --amqp-url reminders are written to the log.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			now, err := opts.now()
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var publisher reminder.Publisher = reminder.LogPublisher{}
			if mq.url != "" {
				client, err := mq.dial(ctx)
				if err != nil {
					return fmt.Errorf("connecting to broker: %w", err)
				}
				defer client.Close()
				publisher = client
			}

			res, err := reminder.NewDispatcher(db, publisher, nil).RunOnce(ctx, now)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users=%d sent=%d skipped=%d failed=%d\n",
				res.Users, res.Sent, res.Skipped, res.Failed)
			return nil
		},
	}

	mq.register(cmd)

	return cmd
}

func newRemindersTailCommand() *cobra.Command {
	var mq amqpOptions

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print reminders from the broker queue as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mq.url == "" {
				return fmt.Errorf("--amqp-url or AMQP_URL is required")
			}
			ctx := cmd.Context()
			client, err := mq.dial(ctx)
			if err != nil {
				return fmt.Errorf("connecting to broker: %w", err)
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			err = client.ConsumeReminders(ctx, func(msg *amqp.ReminderMessage) error {
				_, err := fmt.Fprintf(out, "%s  %-6s %-8s %s  %s\n",
					msg.SentOn, msg.Priority, msg.Username, msg.Amount, msg.Message)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	mq.register(cmd)

	return cmd
}
