package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET /bills", "GET", 200, 15*time.Millisecond)
	m.ObserveRequest("GET /bills", "GET", 200, 5*time.Millisecond)
	m.ObserveRequest("GET /bills", "GET", 500, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET /bills", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET /bills", "GET", "500")))
}

func TestViewAndReminderCounters(t *testing.T) {
	m := New()
	m.ViewHit()
	m.ViewRecomputed()
	m.ViewRecomputed()
	m.Reminder("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.viewRecompute.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.viewRecompute.WithLabelValues("recompute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("sent")))

	m.SetNotificationCounts(map[string]int{"overdue": 3, "reminder": 1})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.notifications.WithLabelValues("overdue")))
	m.SetNotificationCounts(map[string]int{"due_soon": 2})
	assert.Equal(t, 1, testutil.CollectAndCount(m.notifications), "reset drops stale types")
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Reminder("failed")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `utility_tracker_reminders_total{outcome="failed"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
