package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"utility-tracker/internal/auth"
	"utility-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// BillTestSuite provides a test suite for bill and payment operations
type BillTestSuite struct {
	suite.Suite
	db   *DB
	ctx  context.Context
	user *models.User
}

// SetupTest runs before each test
func (suite *BillTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()

	user, err := suite.db.CreateUser(suite.ctx, "billuser", "hash")
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *BillTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *BillTestSuite) newBill(title string, due time.Time) *models.Bill {
	b := &models.Bill{
		Title:       title,
		UtilityType: models.UtilityElectricity,
		Amount:      decimal.RequireFromString("80.25"),
		DueDate:     due,
	}
	require.NoError(suite.T(), suite.db.CreateBill(suite.ctx, suite.user.ID, b), "failed to create bill: %s", title)
	return b
}

func (suite *BillTestSuite) TestCreateAndGetBill() {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	b := suite.newBill("Power", due)

	assert.NotEmpty(suite.T(), b.ID)
	assert.Equal(suite.T(), models.StatusPending, b.Status, "status defaults to pending")

	got, err := suite.db.GetBill(suite.ctx, suite.user.ID, b.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Power", got.Title)
	assert.Equal(suite.T(), due, got.DueDate)
	assert.Equal(suite.T(), "80.25", got.Amount.StringFixed(2))
	assert.False(suite.T(), got.IsRecurring)
	assert.Empty(suite.T(), got.RecurringPeriod)
}

func (suite *BillTestSuite) TestCreateBillRejectsInvalid() {
	err := suite.db.CreateBill(suite.ctx, suite.user.ID, &models.Bill{
		Title:       "Free",
		UtilityType: models.UtilityWater,
		Amount:      decimal.Zero,
		DueDate:     time.Now(),
	})
	assert.ErrorIs(suite.T(), err, models.ErrInvalidAmount)
}

func (suite *BillTestSuite) TestListBillsOrderedByDueDate() {
	base := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	suite.newBill("Later", base.AddDate(0, 0, 5))
	suite.newBill("Soonest", base)
	suite.newBill("Middle", base.AddDate(0, 0, 2))

	bills, err := suite.db.ListBills(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), bills, 3)
	assert.Equal(suite.T(), "Soonest", bills[0].Title)
	assert.Equal(suite.T(), "Middle", bills[1].Title)
	assert.Equal(suite.T(), "Later", bills[2].Title)
}

func (suite *BillTestSuite) TestBillsAreScopedToUser() {
	b := suite.newBill("Mine", time.Now())

	other, err := suite.db.CreateUser(suite.ctx, "other", "hash")
	require.NoError(suite.T(), err)

	_, err = suite.db.GetBill(suite.ctx, other.ID, b.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	bills, err := suite.db.ListBills(suite.ctx, other.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), bills)

	assert.ErrorIs(suite.T(), suite.db.DeleteBill(suite.ctx, other.ID, b.ID), ErrNotFound)
}

func (suite *BillTestSuite) TestUpdateBill() {
	b := suite.newBill("Power", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	title := "Power Co"
	notes := "new tariff"
	updated, next, err := suite.db.UpdateBill(suite.ctx, suite.user.ID, b.ID, models.BillPatch{Title: &title, Notes: &notes})
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), next)
	assert.Equal(suite.T(), "Power Co", updated.Title)

	got, err := suite.db.GetBill(suite.ctx, suite.user.ID, b.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Power Co", got.Title)
	assert.Equal(suite.T(), "new tariff", got.Notes)

	_, _, err = suite.db.UpdateBill(suite.ctx, suite.user.ID, "missing", models.BillPatch{Title: &title})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *BillTestSuite) TestStoredStatusCannotBeOverdue() {
	b := suite.newBill("Power", time.Now())
	_, err := suite.db.conn.Exec("UPDATE bills SET status = 'overdue' WHERE id = ?", b.ID)
	assert.Error(suite.T(), err, "overdue is derived and must not be persisted")
}

func (suite *BillTestSuite) TestMarkRecurringBillPaidSchedulesNext() {
	b := &models.Bill{
		Title:           "Water",
		UtilityType:     models.UtilityWater,
		Amount:          decimal.NewFromInt(40),
		DueDate:         time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		IsRecurring:     true,
		RecurringPeriod: models.PeriodMonthly,
	}
	require.NoError(suite.T(), suite.db.CreateBill(suite.ctx, suite.user.ID, b))

	paid, next, err := suite.db.MarkBillPaid(suite.ctx, suite.user.ID, b.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.StatusPaid, paid.Status)
	require.NotNil(suite.T(), next)
	assert.Equal(suite.T(), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), next.DueDate)
	assert.Equal(suite.T(), models.StatusPending, next.Status)

	// Marking an already paid bill again does not roll forward twice.
	_, again, err := suite.db.MarkBillPaid(suite.ctx, suite.user.ID, b.ID)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), again)

	bills, err := suite.db.ListBills(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), bills, 2)
}

func (suite *BillTestSuite) TestRecurringBillRollsForwardOnce() {
	b := &models.Bill{
		Title:           "Power",
		UtilityType:     models.UtilityElectricity,
		Amount:          decimal.NewFromInt(80),
		DueDate:         time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		IsRecurring:     true,
		RecurringPeriod: models.PeriodMonthly,
	}
	require.NoError(suite.T(), suite.db.CreateBill(suite.ctx, suite.user.ID, b))

	pending := models.StatusPending
	for i := 0; i < 3; i++ {
		_, next, err := suite.db.MarkBillPaid(suite.ctx, suite.user.ID, b.ID)
		require.NoError(suite.T(), err)
		if i == 0 {
			assert.NotNil(suite.T(), next)
		} else {
			assert.Nil(suite.T(), next, "round %d created another occurrence", i)
		}
		_, _, err = suite.db.UpdateBill(suite.ctx, suite.user.ID, b.ID, models.BillPatch{Status: &pending})
		require.NoError(suite.T(), err)
	}

	bills, err := suite.db.ListBills(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), bills, 2)
	followUps := 0
	for _, bill := range bills {
		if bill.ID != b.ID {
			followUps++
			assert.Equal(suite.T(), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), bill.DueDate)
		}
	}
	assert.Equal(suite.T(), 1, followUps)
}

func (suite *BillTestSuite) TestPaymentsLifecycle() {
	b := suite.newBill("Gas", time.Now())

	p := &models.Payment{
		BillID:      b.ID,
		Amount:      decimal.RequireFromString("80.25"),
		PaymentDate: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Notes:       "paid online",
	}
	require.NoError(suite.T(), suite.db.CreatePayment(suite.ctx, suite.user.ID, p))
	assert.Equal(suite.T(), models.MethodCard, p.PaymentMethod, "method defaults to card")

	older := &models.Payment{
		Amount:        decimal.NewFromInt(5),
		PaymentDate:   time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		PaymentMethod: models.MethodCash,
	}
	require.NoError(suite.T(), suite.db.CreatePayment(suite.ctx, suite.user.ID, older))

	payments, err := suite.db.ListPayments(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 2)
	assert.Equal(suite.T(), p.ID, payments[0].ID, "most recent first")
	assert.Equal(suite.T(), "Gas", payments[0].BillTitle)
	assert.Empty(suite.T(), payments[1].BillID)

	p.Notes = "corrected"
	p.PaymentMethod = models.MethodOnline
	require.NoError(suite.T(), suite.db.UpdatePayment(suite.ctx, suite.user.ID, p.ID, p))
	got, err := suite.db.GetPayment(suite.ctx, suite.user.ID, p.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "corrected", got.Notes)
	assert.Equal(suite.T(), models.MethodOnline, got.PaymentMethod)

	require.NoError(suite.T(), suite.db.DeletePayment(suite.ctx, suite.user.ID, older.ID))
	assert.ErrorIs(suite.T(), suite.db.DeletePayment(suite.ctx, suite.user.ID, older.ID), ErrNotFound)
}

func (suite *BillTestSuite) TestPaymentRejectsForeignBill() {
	other, err := suite.db.CreateUser(suite.ctx, "other", "hash")
	require.NoError(suite.T(), err)
	b := suite.newBill("Mine", time.Now())

	err = suite.db.CreatePayment(suite.ctx, other.ID, &models.Payment{
		BillID:      b.ID,
		Amount:      decimal.NewFromInt(1),
		PaymentDate: time.Now(),
	})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *BillTestSuite) TestDeleteBillKeepsPayments() {
	b := suite.newBill("Internet", time.Now())
	p := &models.Payment{BillID: b.ID, Amount: decimal.NewFromInt(30), PaymentDate: time.Now()}
	require.NoError(suite.T(), suite.db.CreatePayment(suite.ctx, suite.user.ID, p))
	require.NoError(suite.T(), suite.db.MarkNotificationRead(suite.ctx, suite.user.ID, "due_soon-"+b.ID, b.ID))

	require.NoError(suite.T(), suite.db.DeleteBill(suite.ctx, suite.user.ID, b.ID))

	got, err := suite.db.GetPayment(suite.ctx, suite.user.ID, p.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), got.BillID, "payment survives with its bill reference cleared")

	states, err := suite.db.NotificationStates(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), states, "notification state goes with the bill")
}

func (suite *BillTestSuite) TestNotificationStates() {
	a := suite.newBill("A", time.Now())
	b := suite.newBill("B", time.Now())

	require.NoError(suite.T(), suite.db.MarkNotificationRead(suite.ctx, suite.user.ID, "due_soon-"+a.ID, a.ID))
	require.NoError(suite.T(), suite.db.DismissNotification(suite.ctx, suite.user.ID, "due_soon-"+b.ID, b.ID))
	// Reading a dismissed notification must not un-dismiss it.
	require.NoError(suite.T(), suite.db.MarkNotificationRead(suite.ctx, suite.user.ID, "due_soon-"+b.ID, b.ID))

	states, err := suite.db.NotificationStates(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), states, 2)
	assert.True(suite.T(), states["due_soon-"+a.ID].Read)
	assert.False(suite.T(), states["due_soon-"+a.ID].Dismissed)
	assert.True(suite.T(), states["due_soon-"+b.ID].Dismissed)
	assert.True(suite.T(), states["due_soon-"+b.ID].Read)
}

func (suite *BillTestSuite) TestMarkNotificationsRead() {
	a := suite.newBill("A", time.Now())
	b := suite.newBill("B", time.Now())
	err := suite.db.MarkNotificationsRead(suite.ctx, suite.user.ID, []models.Notification{
		{ID: "due_soon-" + a.ID, BillID: a.ID},
		{ID: "due_soon-" + b.ID, BillID: b.ID},
	})
	require.NoError(suite.T(), err)

	states, err := suite.db.NotificationStates(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), states, 2)

	assert.NoError(suite.T(), suite.db.MarkNotificationsRead(suite.ctx, suite.user.ID, nil))
}

func (suite *BillTestSuite) TestRevisionBumpsOnEveryWrite() {
	rev, err := suite.db.Revision(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), rev)

	b := suite.newBill("A", time.Now())
	rev1, err := suite.db.Revision(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), rev1)

	_, _, err = suite.db.MarkBillPaid(suite.ctx, suite.user.ID, b.ID)
	require.NoError(suite.T(), err)
	rev2, err := suite.db.Revision(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Greater(suite.T(), rev2, rev1)

	// A failed write leaves the revision alone.
	_, _, err = suite.db.UpdateBill(suite.ctx, suite.user.ID, "missing", models.BillPatch{})
	require.Error(suite.T(), err)
	rev3, err := suite.db.Revision(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), rev2, rev3)
}

func (suite *BillTestSuite) TestRecordReminderOncePerDay() {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	first, err := suite.db.RecordReminder(suite.ctx, suite.user.ID, "overdue-x", day)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), first)

	again, err := suite.db.RecordReminder(suite.ctx, suite.user.ID, "overdue-x", day)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), again)

	next, err := suite.db.RecordReminder(suite.ctx, suite.user.ID, "overdue-x", day.AddDate(0, 0, 1))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), next)

	require.NoError(suite.T(), suite.db.ForgetReminder(suite.ctx, suite.user.ID, "overdue-x", day))
	retry, err := suite.db.RecordReminder(suite.ctx, suite.user.ID, "overdue-x", day)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), retry)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	ctx  context.Context
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()

	// Create a test user
	password, err := auth.HashPassword("testpass")
	require.NoError(suite.T(), err, "failed to hash password")

	user, err := suite.db.CreateUser(suite.ctx, "testuser", password)
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	sessionUser, err := suite.db.ValidateSession(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", sessionUser.Username)
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	info, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)

	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestExpiredSessionIsRejected() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, time.Now().Add(-time.Minute))
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, token)
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	removed, err := suite.db.CleanExpiredSessions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), removed)
}

func (suite *SessionTestSuite) TestRenewSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	originalExpiry := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, originalExpiry)
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	originalInfo, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)

	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(suite.ctx, token, newExpiry)
	require.NoError(suite.T(), err)

	updatedInfo, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, token)
	require.NoError(suite.T(), err, "session should exist before deletion")

	err = suite.db.DeleteSession(suite.ctx, token)
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, token)
	assert.Error(suite.T(), err, "expected error after deleting session")
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	version, dirty, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)
	assert.False(t, dirty)
	require.NoError(t, db.Close())

	// Reopening runs migrate.Up again, which must be a no-op.
	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	count, err := db.UserCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// Test suite runners
func TestBillSuite(t *testing.T) {
	suite.Run(t, new(BillTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
