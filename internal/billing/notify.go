package billing

import (
	"fmt"
	"sort"
	"time"

	"utility-tracker/internal/models"
)

const (
	dueSoonDays  = 3
	reminderDays = 7
)

// NotificationID is the deterministic id of the notification of type t for a bill.
func NotificationID(t models.NotificationType, billID string) string {
	return string(t) + "-" + billID
}

// GenerateNotifications derives notifications for the pending bills in the
// snapshot. At most one notification is produced per bill. The result is
// sorted by priority descending, then due date ascending, and otherwise keeps
// input order.
func GenerateNotifications(bills []models.Bill, now time.Time) []models.Notification {
	notifications := make([]models.Notification, 0)
	for _, b := range bills {
		if b.Status != models.StatusPending {
			continue
		}
		if n, ok := notificationFor(b, now); ok {
			notifications = append(notifications, n)
		}
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		pi, pj := notifications[i].Priority.Rank(), notifications[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return Day(notifications[i].DueDate).Before(Day(notifications[j].DueDate))
	})
	return notifications
}

func notificationFor(b models.Bill, now time.Time) (models.Notification, bool) {
	days := DaysUntilDue(b.DueDate, now)

	n := models.Notification{
		BillID:    b.ID,
		BillTitle: b.Title,
		Amount:    b.Amount,
		DueDate:   b.DueDate,
		CreatedAt: now,
	}

	switch {
	case days < 0:
		n.Type = models.NotificationOverdue
		n.Priority = models.PriorityHigh
		n.Title = "Bill Overdue"
		n.Message = fmt.Sprintf("%s was due %s ago", b.Title, pluralDays(-days))
	case days <= dueSoonDays:
		n.Type = models.NotificationDueSoon
		n.Title = "Bill Due Soon"
		if days == 0 {
			n.Priority = models.PriorityHigh
			n.Message = fmt.Sprintf("%s is due today", b.Title)
		} else {
			n.Priority = models.PriorityMedium
			n.Message = fmt.Sprintf("%s is due in %s", b.Title, pluralDays(days))
		}
	case days <= reminderDays:
		n.Type = models.NotificationReminder
		n.Priority = models.PriorityLow
		n.Title = "Upcoming Bill"
		n.Message = fmt.Sprintf("%s is due in %d days", b.Title, days)
	default:
		return models.Notification{}, false
	}

	n.ID = NotificationID(n.Type, b.ID)
	return n, true
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// ApplyReadState overlays persisted read and dismissed flags onto freshly
// generated notifications. Dismissed notifications are dropped. States for ids
// that were not generated are ignored, so a bill that moves to a new bucket
// shows up unread again.
func ApplyReadState(notifications []models.Notification, states map[string]models.NotificationState) []models.Notification {
	out := make([]models.Notification, 0, len(notifications))
	for _, n := range notifications {
		if st, ok := states[n.ID]; ok {
			if st.Dismissed {
				continue
			}
			n.Read = st.Read
		}
		out = append(out, n)
	}
	return out
}

// UnreadCount counts notifications not yet marked read.
func UnreadCount(notifications []models.Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count
}
