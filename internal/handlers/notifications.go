package handlers

import (
	"net/http"

	"utility-tracker/internal/insights"
	"utility-tracker/internal/models"
	"utility-tracker/internal/storage"
)

// NotificationsViewModel is the data passed to the notifications template.
type NotificationsViewModel struct {
	Notifications []models.Notification
	Unread        int
	UnreadOnly    bool
}

// ListNotifications renders the current notifications, optionally unread only.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "ListNotifications", err)
		return
	}

	unreadOnly := r.URL.Query().Get("show") == "unread"
	list := v.Notifications
	if unreadOnly {
		list = make([]models.Notification, 0, v.Unread)
		for _, n := range v.Notifications {
			if !n.Read {
				list = append(list, n)
			}
		}
	}

	h.render(w, r, "notifications.html", NotificationsViewModel{
		Notifications: list,
		Unread:        v.Unread,
		UnreadOnly:    unreadOnly,
	})
}

// findNotification looks id up among the notifications generated right now.
// Ids for buckets a bill has left are not actionable.
func findNotification(v *insights.View, id string) (models.Notification, bool) {
	for _, n := range v.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return models.Notification{}, false
}

func (h *Handlers) updateNotification(w http.ResponseWriter, r *http.Request, op string,
	apply func(userID int64, n models.Notification) error) bool {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, op, err)
		return false
	}
	n, ok := findNotification(v, r.PathValue("id"))
	if !ok {
		writeError(w, r, op, storage.ErrNotFound)
		return false
	}
	if err := apply(GetUserFromContext(r).ID, n); err != nil {
		writeError(w, r, op, err)
		return false
	}
	return true
}

// MarkNotificationRead marks one notification read.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ok := h.updateNotification(w, r, "MarkNotificationRead", func(userID int64, n models.Notification) error {
		return h.db.MarkNotificationRead(r.Context(), userID, n.ID, n.BillID)
	})
	if ok {
		hxLocation(w, "/notifications")
	}
}

// DismissNotification hides one notification until its bill changes bucket.
func (h *Handlers) DismissNotification(w http.ResponseWriter, r *http.Request) {
	ok := h.updateNotification(w, r, "DismissNotification", func(userID int64, n models.Notification) error {
		return h.db.DismissNotification(r.Context(), userID, n.ID, n.BillID)
	})
	if ok {
		hxLocation(w, "/notifications")
	}
}

// MarkAllNotificationsRead marks every current notification read.
func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "MarkAllNotificationsRead", err)
		return
	}
	if err := h.db.MarkNotificationsRead(r.Context(), GetUserFromContext(r).ID, v.Notifications); err != nil {
		writeError(w, r, "MarkAllNotificationsRead", err)
		return
	}
	hxLocation(w, "/notifications")
}
