package insights

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/cache"
	"utility-tracker/internal/models"
	"utility-tracker/internal/storage"
)

// countingStore counts snapshot loads.
type countingStore struct {
	*storage.DB
	loads atomic.Int32
}

func (s *countingStore) ListBills(ctx context.Context, userID int64) ([]models.Bill, error) {
	s.loads.Add(1)
	return s.DB.ListBills(ctx, userID)
}

type ServiceTestSuite struct {
	suite.Suite
	db    *storage.DB
	store *countingStore
	svc   *Service
	ctx   context.Context
	user  *models.User
	now   time.Time
}

func (suite *ServiceTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.store = &countingStore{DB: db}
	suite.svc = NewService(suite.store, cache.NewLRUCache[*View](16, time.Hour), nil)
	suite.ctx = context.Background()
	suite.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	user, err := db.CreateUser(suite.ctx, "bob", "hash")
	require.NoError(suite.T(), err)
	suite.user = user
}

func (suite *ServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *ServiceTestSuite) addBill(title string, days int, amount string) *models.Bill {
	b := &models.Bill{
		Title:       title,
		UtilityType: models.UtilityGas,
		Amount:      decimal.RequireFromString(amount),
		DueDate:     suite.now.AddDate(0, 0, days),
	}
	require.NoError(suite.T(), suite.db.CreateBill(suite.ctx, suite.user.ID, b))
	return b
}

func (suite *ServiceTestSuite) TestOverviewDerivesEverything() {
	suite.addBill("Gas", -4, "30")
	suite.addBill("Heat", 1, "70")
	require.NoError(suite.T(), suite.db.CreatePayment(suite.ctx, suite.user.ID, &models.Payment{
		Amount:        decimal.RequireFromString("25"),
		PaymentDate:   suite.now.AddDate(0, 0, -2),
		PaymentMethod: models.MethodCash,
	}))

	v, err := suite.svc.Overview(suite.ctx, suite.user.ID, suite.now)
	require.NoError(suite.T(), err)

	require.Len(suite.T(), v.Bills, 2)
	assert.Equal(suite.T(), models.DisplayOverdue, v.Bills[0].DisplayStatus)
	require.Len(suite.T(), v.Notifications, 2)
	assert.Equal(suite.T(), models.NotificationOverdue, v.Notifications[0].Type)
	assert.Equal(suite.T(), 2, v.Unread)
	assert.Equal(suite.T(), 1, v.Summary.OverdueCount)
	assert.True(suite.T(), decimal.RequireFromString("100").Equal(v.Summary.TotalPending))
	assert.True(suite.T(), decimal.RequireFromString("25").Equal(v.Summary.PaidThisMonth))
	assert.Len(suite.T(), v.Series, billing.DashboardMonths)
	assert.Len(suite.T(), v.Analytics.Months, billing.AnalyticsMonths)
	assert.Len(suite.T(), v.AnalyticsFor(3).Months, 3)
}

func (suite *ServiceTestSuite) TestCachedUntilRevisionChanges() {
	b := suite.addBill("Gas", -1, "30")

	_, err := suite.svc.Overview(suite.ctx, suite.user.ID, suite.now)
	require.NoError(suite.T(), err)
	_, err = suite.svc.Overview(suite.ctx, suite.user.ID, suite.now.Add(time.Hour))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int32(1), suite.store.loads.Load(), "same revision and date hit the cache")

	require.NoError(suite.T(), suite.db.MarkNotificationRead(suite.ctx, suite.user.ID,
		billing.NotificationID(models.NotificationOverdue, b.ID), b.ID))
	v, err := suite.svc.Overview(suite.ctx, suite.user.ID, suite.now)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int32(2), suite.store.loads.Load())
	assert.Equal(suite.T(), 0, v.Unread)
}

func (suite *ServiceTestSuite) TestRecomputedOnNewDay() {
	suite.addBill("Gas", 1, "30")

	v, err := suite.svc.Overview(suite.ctx, suite.user.ID, suite.now)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.NotificationDueSoon, v.Notifications[0].Type)

	v, err = suite.svc.Overview(suite.ctx, suite.user.ID, suite.now.AddDate(0, 0, 2))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.NotificationOverdue, v.Notifications[0].Type)
	assert.Equal(suite.T(), int32(2), suite.store.loads.Load())
}

func (suite *ServiceTestSuite) TestDismissedNotificationsAreHidden() {
	b := suite.addBill("Gas", -1, "30")
	require.NoError(suite.T(), suite.db.DismissNotification(suite.ctx, suite.user.ID,
		billing.NotificationID(models.NotificationOverdue, b.ID), b.ID))

	v, err := suite.svc.Overview(suite.ctx, suite.user.ID, suite.now)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), v.Notifications)
	assert.Equal(suite.T(), 0, v.Unread)
	assert.Len(suite.T(), v.Bills, 1, "dismissing a notification keeps the bill")
}

func (suite *ServiceTestSuite) TestForget() {
	suite.addBill("Gas", 3, "30")
	_, err := suite.svc.Overview(suite.ctx, suite.user.ID, suite.now)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 1, suite.svc.Forget(suite.user.ID))
	assert.Equal(suite.T(), 0, suite.svc.Forget(suite.user.ID))
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

type failingStore struct{ countingStore }

func (*failingStore) ListPayments(context.Context, int64) ([]models.Payment, error) {
	return nil, errors.New("disk on fire")
}

func TestOverviewPropagatesLoadErrors(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(&failingStore{countingStore{DB: db}}, cache.NewLRUCache[*View](4, time.Minute), nil)
	_, err = svc.Overview(context.Background(), 1, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
