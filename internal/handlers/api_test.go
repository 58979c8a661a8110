package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/cache"
	"utility-tracker/internal/insights"
	"utility-tracker/internal/models"
)

func (suite *HandlersTestSuite) bearerToken() string {
	w := httptest.NewRecorder()
	suite.h.IssueToken(w, httptest.NewRequest("POST", "/api/token",
		strings.NewReader(`{"username":"alice","password":"correct-horse"}`)))
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var resp tokenResponse
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(suite.T(), resp.Token)
	return resp.Token
}

func (suite *HandlersTestSuite) api(handler http.HandlerFunc, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.h.BearerMiddleware(handler).ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestAPIIssueTokenRejectsBadPassword() {
	w := httptest.NewRecorder()
	suite.h.IssueToken(w, httptest.NewRequest("POST", "/api/token",
		strings.NewReader(`{"username":"alice","password":"nope"}`)))
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestAPIRequiresToken() {
	w := suite.api(suite.h.APIListBills, httptest.NewRequest("GET", "/api/bills", nil), "")
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	w = suite.api(suite.h.APIListBills, httptest.NewRequest("GET", "/api/bills", nil), "not-a-jwt")
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestAPIDisabledWithoutTokens() {
	views := insights.NewService(suite.db, cache.NewLRUCache[*insights.View](4, time.Minute), nil)
	h := NewHandlers(suite.db, views, testTemplateDir, false)
	assert.False(suite.T(), h.APIEnabled())

	w := httptest.NewRecorder()
	h.IssueToken(w, httptest.NewRequest("POST", "/api/token", strings.NewReader(`{}`)))
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestAPIBillLifecycle() {
	token := suite.bearerToken()
	due := suite.now.AddDate(0, 0, -1).Format(models.DateLayout)

	w := suite.api(suite.h.APICreateBill, httptest.NewRequest("POST", "/api/bills", strings.NewReader(
		`{"title":"Power","utility_type":"electricity","amount":"80.25","due_date":"`+due+`","is_recurring":true,"recurring_period":"quarterly"}`)), token)
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	var created models.Bill
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(suite.T(), "80.25", created.Amount.StringFixed(2))

	w = suite.api(suite.h.APIListBills, httptest.NewRequest("GET", "/api/bills?status=overdue", nil), token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var views []billing.BillView
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(suite.T(), views, 1)
	assert.Equal(suite.T(), models.DisplayOverdue, views[0].DisplayStatus)
	assert.Equal(suite.T(), -1, views[0].DaysUntilDue)

	req := httptest.NewRequest("PATCH", "/api/bills/"+created.ID, strings.NewReader(`{"status":"paid"}`))
	req.SetPathValue("id", created.ID)
	w = suite.api(suite.h.APIUpdateBill, req, token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var updated billUpdateResponse
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(suite.T(), models.StatusPaid, updated.Bill.Status)
	require.NotNil(suite.T(), updated.NextOccurrence)
	assert.Equal(suite.T(), models.StatusPending, updated.NextOccurrence.Status)

	req = httptest.NewRequest("PATCH", "/api/bills/"+created.ID, strings.NewReader(`{"status":"overdue"}`))
	req.SetPathValue("id", created.ID)
	w = suite.api(suite.h.APIUpdateBill, req, token)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code, "overdue is never stored")

	req = httptest.NewRequest("DELETE", "/api/bills/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	w = suite.api(suite.h.APIDeleteBill, req, token)
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)

	req = httptest.NewRequest("GET", "/api/bills/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	w = suite.api(suite.h.APIGetBill, req, token)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestAPINotifications() {
	token := suite.bearerToken()
	b := suite.addBill("Power", 0, false)

	w := suite.api(suite.h.APIListNotifications, httptest.NewRequest("GET", "/api/notifications", nil), token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var resp notificationsResponse
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(suite.T(), resp.Notifications, 1)
	n := resp.Notifications[0]
	assert.Equal(suite.T(), billing.NotificationID(models.NotificationDueSoon, b.ID), n.ID)
	assert.Equal(suite.T(), models.PriorityHigh, n.Priority)
	assert.Equal(suite.T(), "Power is due today", n.Message)
	assert.Equal(suite.T(), 1, resp.Unread)

	req := httptest.NewRequest("POST", "/api/notifications/"+n.ID+"/dismiss", nil)
	req.SetPathValue("id", n.ID)
	w = suite.api(suite.h.APIDismissNotification, req, token)
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)

	w = suite.api(suite.h.APIListNotifications, httptest.NewRequest("GET", "/api/notifications", nil), token)
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(suite.T(), resp.Notifications)
}

func (suite *HandlersTestSuite) TestAPIPaymentsAndAnalytics() {
	token := suite.bearerToken()
	today := suite.now.Format(models.DateLayout)

	w := suite.api(suite.h.APICreatePayment, httptest.NewRequest("POST", "/api/payments", strings.NewReader(
		`{"amount":"20","payment_date":"`+today+`","payment_method":"check"}`)), token)
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())

	w = suite.api(suite.h.APICreatePayment, httptest.NewRequest("POST", "/api/payments", strings.NewReader(
		`{"amount":"20","payment_date":"`+today+`","payment_method":"barter"}`)), token)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.api(suite.h.APIAnalytics, httptest.NewRequest("GET", "/api/analytics?months=3", nil), token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var a billing.Analytics
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &a))
	assert.Len(suite.T(), a.Months, 3)
	assert.Equal(suite.T(), "20", a.CurrentMonthTotal.String())
	assert.Equal(suite.T(), 1, a.PaymentCount)

	w = suite.api(suite.h.APIAnalytics, httptest.NewRequest("GET", "/api/analytics?months=0", nil), token)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.api(suite.h.APISummary, httptest.NewRequest("GET", "/api/summary", nil), token)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), `"paid_this_month":"20"`)
}
