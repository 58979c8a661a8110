package storage

import (
	"context"
	"fmt"
	"time"

	"utility-tracker/internal/models"
)

// NotificationStates returns userID's persisted read and dismissed flags keyed by notification id.
func (db *DB) NotificationStates(ctx context.Context, userID int64) (map[string]models.NotificationState, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT notification_id, bill_id, is_read, is_dismissed, updated_at
		FROM notification_states WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]models.NotificationState)
	for rows.Next() {
		var st models.NotificationState
		if err := rows.Scan(&st.NotificationID, &st.BillID, &st.Read, &st.Dismissed, &st.UpdatedAt); err != nil {
			return nil, err
		}
		states[st.NotificationID] = st
	}
	return states, rows.Err()
}

// MarkNotificationRead records that userID has read a notification about billID.
func (db *DB) MarkNotificationRead(ctx context.Context, userID int64, notificationID, billID string) error {
	return db.upsertNotificationState(ctx, userID, []notificationKey{{notificationID, billID}}, true, false)
}

// DismissNotification hides a notification from userID. Dismissed also implies read.
func (db *DB) DismissNotification(ctx context.Context, userID int64, notificationID, billID string) error {
	return db.upsertNotificationState(ctx, userID, []notificationKey{{notificationID, billID}}, true, true)
}

// MarkNotificationsRead marks every given notification as read in one transaction.
func (db *DB) MarkNotificationsRead(ctx context.Context, userID int64, notifications []models.Notification) error {
	keys := make([]notificationKey, 0, len(notifications))
	for _, n := range notifications {
		keys = append(keys, notificationKey{n.ID, n.BillID})
	}
	return db.upsertNotificationState(ctx, userID, keys, true, false)
}

type notificationKey struct {
	id     string
	billID string
}

func (db *DB) upsertNotificationState(ctx context.Context, userID int64, keys []notificationKey, read, dismissed bool) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, k := range keys {
		if err := checkBillOwner(ctx, tx, userID, k.billID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notification_states (user_id, notification_id, bill_id, is_read, is_dismissed, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, notification_id) DO UPDATE SET
				is_read = MAX(is_read, excluded.is_read),
				is_dismissed = MAX(is_dismissed, excluded.is_dismissed),
				updated_at = excluded.updated_at`,
			userID, k.id, k.billID, read, dismissed, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save notification state: %w", err)
		}
	}
	if err := bumpRevision(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}
