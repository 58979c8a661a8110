// Package reminder sweeps every user's bills on an interval and publishes
// urgent notifications, at most once per notification per day.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"utility-tracker/internal/amqp"
	"utility-tracker/internal/billing"
	"utility-tracker/internal/metrics"
	"utility-tracker/internal/models"
)

// Store is the slice of storage the dispatcher reads and writes.
type Store interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListBills(ctx context.Context, userID int64) ([]models.Bill, error)
	RecordReminder(ctx context.Context, userID int64, notificationID string, day time.Time) (bool, error)
	ForgetReminder(ctx context.Context, userID int64, notificationID string, day time.Time) error
}

// Publisher delivers one reminder.
type Publisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// LogPublisher writes reminders to the structured log. It is used when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error {
	slog.InfoContext(ctx, "Bill reminder",
		"user", msg.Username,
		"notification_id", msg.NotificationID,
		"title", msg.Title,
		"message", msg.Message,
		"amount", msg.Amount)
	return nil
}

// Result summarises one sweep.
type Result struct {
	Users   int            `json:"users"`
	Counts  map[string]int `json:"counts"`
	Sent    int            `json:"sent"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
}

type Dispatcher struct {
	store     Store
	publisher Publisher
	metrics   *metrics.Metrics
	minRank   int
}

// NewDispatcher returns a dispatcher publishing high priority notifications.
// m may be nil.
func NewDispatcher(store Store, publisher Publisher, m *metrics.Metrics) *Dispatcher {
	if publisher == nil {
		publisher = LogPublisher{}
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		metrics:   m,
		minRank:   models.PriorityHigh.Rank(),
	}
}

// RunOnce performs a single sweep at now. Per-user failures are logged and
// counted; only failing to list users aborts the sweep.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	res := Result{Counts: map[string]int{}}

	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list users: %w", err)
	}
	res.Users = len(users)
	day := billing.Day(now)

	for _, u := range users {
		bills, err := d.store.ListBills(ctx, u.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load bills for reminders", "user_id", u.ID, "error", err)
			continue
		}

		for _, n := range billing.GenerateNotifications(bills, now) {
			res.Counts[string(n.Type)]++
			if n.Priority.Rank() < d.minRank {
				continue
			}
			d.dispatch(ctx, u, n, day, &res)
		}
	}

	if d.metrics != nil {
		d.metrics.SetNotificationCounts(res.Counts)
	}

	slog.InfoContext(ctx, "Reminder sweep complete",
		"users", res.Users,
		"sent", res.Sent,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, u models.User, n models.Notification, day time.Time, res *Result) {
	fresh, err := d.store.RecordReminder(ctx, u.ID, n.ID, day)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record reminder", "user_id", u.ID, "notification_id", n.ID, "error", err)
		d.count(res, "failed")
		return
	}
	if !fresh {
		d.count(res, "skipped")
		return
	}

	if err := d.publisher.PublishReminder(ctx, amqp.NewReminderMessage(u, n, day)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish reminder", "user_id", u.ID, "notification_id", n.ID, "error", err)
		if err := d.store.ForgetReminder(ctx, u.ID, n.ID, day); err != nil {
			slog.ErrorContext(ctx, "Failed to forget reminder", "user_id", u.ID, "notification_id", n.ID, "error", err)
		}
		d.count(res, "failed")
		return
	}
	d.count(res, "sent")
}

func (d *Dispatcher) count(res *Result, outcome string) {
	switch outcome {
	case "sent":
		res.Sent++
	case "skipped":
		res.Skipped++
	case "failed":
		res.Failed++
	}
	if d.metrics != nil {
		d.metrics.Reminder(outcome)
	}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	d.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reminder dispatcher stopped")
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	if _, err := d.RunOnce(ctx, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Reminder sweep failed", "error", err)
	}
}
