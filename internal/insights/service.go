// Package insights is the recompute pipeline between storage and the UI.
// A View is derived from one consistent snapshot of a user's bills, payments
// and notification overlay, and is cached until the user's data revision or
// the calendar date changes.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/cache"
	"utility-tracker/internal/metrics"
	"utility-tracker/internal/models"
)

// Store is the read side of storage the pipeline needs.
type Store interface {
	Revision(ctx context.Context, userID int64) (int64, error)
	ListBills(ctx context.Context, userID int64) ([]models.Bill, error)
	ListPayments(ctx context.Context, userID int64) ([]models.Payment, error)
	NotificationStates(ctx context.Context, userID int64) (map[string]models.NotificationState, error)
}

// View is everything the dashboard, bills, notifications and analytics
// pages show for one user on one day.
type View struct {
	Revision int64     `json:"revision"`
	Now      time.Time `json:"generated_at"`

	Bills         []billing.BillView       `json:"bills"`
	Payments      []models.Payment         `json:"payments"`
	Notifications []models.Notification    `json:"notifications"`
	Unread        int                      `json:"unread"`
	Summary       billing.Summary          `json:"summary"`
	Series        []billing.MonthBucket    `json:"series"`
	ByType        []billing.CategoryBucket `json:"by_type"`
	Analytics     billing.Analytics        `json:"analytics"`

	raw []models.Bill
}

// AnalyticsFor recomputes analytics over a different window length from the
// same snapshot. The default window is already in Analytics.
func (v *View) AnalyticsFor(months int) billing.Analytics {
	if months == billing.AnalyticsMonths {
		return v.Analytics
	}
	return billing.Analyze(v.raw, v.Payments, months, v.Now)
}

// Service builds and caches views.
type Service struct {
	store   Store
	cache   *cache.LRUCache[*View]
	metrics *metrics.Metrics
}

// NewService returns a pipeline over store. m may be nil.
func NewService(store Store, c *cache.LRUCache[*View], m *metrics.Metrics) *Service {
	return &Service{store: store, cache: c, metrics: m}
}

func viewKey(userID, revision int64, now time.Time) string {
	return fmt.Sprintf("%d:%d:%s:%s", userID, revision, now.Format(models.DateLayout), now.Location())
}

// Overview returns userID's view at now, recomputing it when the data
// revision or the date differs from the cached one.
func (s *Service) Overview(ctx context.Context, userID int64, now time.Time) (*View, error) {
	rev, err := s.store.Revision(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read revision: %w", err)
	}

	key := viewKey(userID, rev, now)
	if v, ok := s.cache.Get(key); ok {
		if s.metrics != nil {
			s.metrics.ViewHit()
		}
		return v, nil
	}

	v, err := s.recompute(ctx, userID, rev, now)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, v)
	if s.metrics != nil {
		s.metrics.ViewRecomputed()
	}
	slog.DebugContext(ctx, "Recomputed view", "user_id", userID, "revision", rev)
	return v, nil
}

func (s *Service) recompute(ctx context.Context, userID, rev int64, now time.Time) (*View, error) {
	var (
		bills    []models.Bill
		payments []models.Payment
		states   map[string]models.NotificationState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bills, err = s.store.ListBills(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.store.ListPayments(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		states, err = s.store.NotificationStates(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	notifications := billing.ApplyReadState(billing.GenerateNotifications(bills, now), states)
	return &View{
		Revision:      rev,
		Now:           now,
		Bills:         billing.Classify(bills, now),
		Payments:      payments,
		Notifications: notifications,
		Unread:        billing.UnreadCount(notifications),
		Summary:       billing.Summarize(bills, payments, now),
		Series:        billing.MonthlySeries(payments, billing.DashboardMonths, now),
		ByType:        billing.BreakdownByType(bills),
		Analytics:     billing.Analyze(bills, payments, billing.AnalyticsMonths, now),
		raw:           bills,
	}, nil
}

// Forget drops every cached view of userID. Stale revisions are never read
// again, so this only frees memory early.
func (s *Service) Forget(userID int64) int {
	prefix := strconv.FormatInt(userID, 10) + ":"
	return s.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}
