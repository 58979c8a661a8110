package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// bumpRevision advances userID's data revision. Every write that changes what
// a user sees calls it inside the same transaction, so derived views keyed by
// revision are recomputed exactly when the snapshot changes.
func bumpRevision(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_revisions (user_id, revision) VALUES (?, 1)
		ON CONFLICT (user_id) DO UPDATE SET revision = revision + 1`, userID)
	if err != nil {
		return fmt.Errorf("failed to bump revision: %w", err)
	}
	return nil
}

// Revision returns userID's current data revision, zero before the first write.
func (db *DB) Revision(ctx context.Context, userID int64) (int64, error) {
	var rev int64
	err := db.conn.QueryRowContext(ctx, "SELECT revision FROM user_revisions WHERE user_id = ?", userID).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

// RecordReminder notes that a reminder for notificationID was sent to userID
// on day. It returns false if one was already recorded for that day.
func (db *DB) RecordReminder(ctx context.Context, userID int64, notificationID string, day time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminder_dispatches (user_id, notification_id, sent_on, sent_at)
		VALUES (?, ?, ?, ?)`,
		userID, notificationID, day.Format("2006-01-02"), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ForgetReminder removes a dispatch record so a failed publish is retried.
func (db *DB) ForgetReminder(ctx context.Context, userID int64, notificationID string, day time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM reminder_dispatches WHERE user_id = ? AND notification_id = ? AND sent_on = ?",
		userID, notificationID, day.Format("2006-01-02"))
	return err
}
