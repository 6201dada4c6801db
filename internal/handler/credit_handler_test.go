package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"fittrack/internal/model"
	"fittrack/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredits_AdjustAndRead(t *testing.T) {
	s := newServer(t)
	_, adminToken := s.login(t, "admin@fit.io", model.RoleAdmin)
	userID, userToken := s.login(t, "user@fit.io", model.RoleUser)
	base := fmt.Sprintf("/users/%d/credits", userID)

	rec := s.do(t, http.MethodPost, base+"/adjust", adminToken, map[string]interface{}{
		"delta":          20,
		"reference_type": "manual",
		"reference_id":   "7",
		"metadata":       map[string]string{"note": "welcome"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	adjusted := decode[service.AdjustResult](t, rec)
	assert.Equal(t, userID, adjusted.UserID)
	assert.Equal(t, int64(20), adjusted.NewBalance)
	assert.NotZero(t, adjusted.TransactionID)

	// 20 - 25 被拒绝，余额不变
	rec = s.do(t, http.MethodPost, base+"/adjust", adminToken, map[string]interface{}{"delta": -25})
	requireError(t, rec, http.StatusConflict, "INSUFFICIENT_CREDITS")

	rec = s.do(t, http.MethodGet, base, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[map[string]int64](t, rec)
	assert.Equal(t, int64(20), balance["credit_balance"])

	rec = s.do(t, http.MethodGet, base+"/transactions?limit=0&offset=-3", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.TransactionPage](t, rec)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, 0, page.Offset)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "manual", *page.Items[0].ReferenceType)
	assert.Equal(t, int64(7), *page.Items[0].ReferenceID)
	assert.JSONEq(t, `{"note":"welcome"}`, string(page.Items[0].Metadata))

	rec = s.do(t, http.MethodGet, base+"/verify", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[service.BalanceAudit](t, rec).Consistent)
}

func TestCredits_InvalidDelta(t *testing.T) {
	s := newServer(t)
	_, adminToken := s.login(t, "admin@fit.io", model.RoleAdmin)
	userID, _ := s.login(t, "user@fit.io", model.RoleUser)
	path := fmt.Sprintf("/users/%d/credits/adjust", userID)

	for _, body := range []string{`{"delta":0}`, `{"delta":1.5}`, `{"delta":"abc"}`, `{}`} {
		rec := s.do(t, http.MethodPost, path, adminToken, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := s.do(t, http.MethodPost, path, adminToken, `{"delta":"5"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/users/999/credits/adjust", adminToken, `{"delta":5}`)
	requireError(t, rec, http.StatusNotFound, "USER_NOT_FOUND")
}

func TestCredits_OutOfRangeDeltaIsRejected(t *testing.T) {
	s := newServer(t)
	_, adminToken := s.login(t, "admin@fit.io", model.RoleAdmin)
	userID, _ := s.login(t, "user@fit.io", model.RoleUser)
	path := fmt.Sprintf("/users/%d/credits/adjust", userID)

	rec := s.do(t, http.MethodPost, path, adminToken, `{"delta":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, body := range []string{
		`{"delta":18446744073709551615}`,
		`{"delta":"9223372036854775808"}`,
		`{"delta":-9223372036854775809}`,
		`{"delta":1e30}`,
	} {
		rec = s.do(t, http.MethodPost, path, adminToken, body)
		requireError(t, rec, http.StatusBadRequest, "INVALID_DELTA")
	}

	// 在 int64 内但相加溢出
	rec = s.do(t, http.MethodPost, path, adminToken, `{"delta":9223372036854775807,"allowNegative":true}`)
	requireError(t, rec, http.StatusConflict, "BALANCE_OUT_OF_RANGE")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/users/%d/credits", userID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"user_id":%d,"credit_balance":10}`, userID), rec.Body.String())
}

func TestCredits_AccessControl(t *testing.T) {
	s := newServer(t)
	aliceID, aliceToken := s.login(t, "alice@fit.io", model.RoleUser)
	bobID, bobToken := s.login(t, "bob@fit.io", model.RoleUser)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/users/%d/credits", aliceID), bobToken, nil)
	requireError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/users/%d/credits/transactions", aliceID), bobToken, nil)
	requireError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/users/%d/credits/adjust", bobID), bobToken, `{"delta":100}`)
	requireError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/users/%d/credits", aliceID), "", nil)
	requireError(t, rec, http.StatusUnauthorized, "NO_TOKEN")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/users/%d/credits", aliceID), aliceToken+"x", nil)
	requireError(t, rec, http.StatusUnauthorized, "INVALID_TOKEN")

	rec = s.do(t, http.MethodGet, "/users/abc/credits", aliceToken, nil)
	requireError(t, rec, http.StatusBadRequest, "INVALID_ID")
}
