package amqp

import (
	"encoding/json"
	"time"

	"utility-tracker/internal/models"
)

// ReminderMessage announces a bill notification to downstream consumers
// (mailers, chat bots). NotificationID plus SentOn is unique per dispatch.
type ReminderMessage struct {
	NotificationID string    `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	BillID         string    `json:"bill_id"`
	BillTitle      string    `json:"bill_title"`
	Type           string    `json:"type"`
	Priority       string    `json:"priority"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Amount         string    `json:"amount"`
	DueDate        string    `json:"due_date"`
	SentOn         string    `json:"sent_on"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewReminderMessage builds the message for notification n sent to user on day.
func NewReminderMessage(user models.User, n models.Notification, day time.Time) *ReminderMessage {
	return &ReminderMessage{
		NotificationID: n.ID,
		UserID:         user.ID,
		Username:       user.Username,
		BillID:         n.BillID,
		BillTitle:      n.BillTitle,
		Type:           string(n.Type),
		Priority:       string(n.Priority),
		Title:          n.Title,
		Message:        n.Message,
		Amount:         n.Amount.StringFixed(2),
		DueDate:        n.DueDate.Format(models.DateLayout),
		SentOn:         day.Format(models.DateLayout),
		Timestamp:      time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderMessageFromJSON decodes a message body.
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
