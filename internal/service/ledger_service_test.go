package service_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"fittrack/internal/model"
	"fittrack/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestLedger_AdjustRejectsZeroDelta(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "zero@test", model.RoleUser, 5)

	_, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{UserID: u.ID, Delta: 0})
	assert.ErrorIs(t, err, service.ErrInvalidDelta)
	assert.Equal(t, int64(5), e.balance(t, u.ID))
	assert.Equal(t, int64(1), e.txCount(t, u.ID))
}

func TestLedger_AdjustUnknownUser(t *testing.T) {
	e := newEnv(t)

	_, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{UserID: 404, Delta: 10})
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	var n int64
	require.NoError(t, e.db.Model(&model.CreditTransaction{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestLedger_InsufficientCreditsLeavesStateUntouched(t *testing.T) {
	// GIVEN 余额 20
	e := newEnv(t)
	u := e.user(t, "twenty@test", model.RoleUser, 20)

	// WHEN 扣 25 且不允许负数
	_, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{UserID: u.ID, Delta: -25})

	// THEN 拒绝，余额和流水都不变
	assert.ErrorIs(t, err, service.ErrInsufficientCredits)
	assert.Equal(t, int64(20), e.balance(t, u.ID))
	assert.Equal(t, int64(1), e.txCount(t, u.ID))
}

func TestLedger_AdjustRejectsBalanceOverflow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "nine@test", model.RoleUser, 9)

	for _, allowNegative := range []bool{false, true} {
		_, err := e.ledger.Adjust(ctx, &service.AdjustRequest{UserID: u.ID, Delta: math.MaxInt64, AllowNegative: allowNegative})
		assert.ErrorIs(t, err, service.ErrBalanceOutOfRange)
	}
	assert.Equal(t, int64(9), e.balance(t, u.ID))
	assert.Equal(t, int64(1), e.txCount(t, u.ID))

	// 恰好到达上界仍然允许
	res, err := e.ledger.Adjust(ctx, &service.AdjustRequest{UserID: u.ID, Delta: math.MaxInt64 - 9})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), res.NewBalance)

	low := e.user(t, "low@test", model.RoleUser, 0)
	_, err = e.ledger.Adjust(ctx, &service.AdjustRequest{UserID: low.ID, Delta: -5, AllowNegative: true})
	require.NoError(t, err)
	_, err = e.ledger.Adjust(ctx, &service.AdjustRequest{UserID: low.ID, Delta: math.MinInt64, AllowNegative: true})
	assert.ErrorIs(t, err, service.ErrBalanceOutOfRange)
	assert.Equal(t, int64(-5), e.balance(t, low.ID))
}

func TestLedger_AllowNegative(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "neg@test", model.RoleUser, 3)

	res, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{UserID: u.ID, Delta: -8, AllowNegative: true})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), res.NewBalance)
	assert.Equal(t, int64(-5), e.balance(t, u.ID))
}

func TestLedger_AdjustWritesSnapshotAndDefaults(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@test", model.RoleAdmin, 0)
	u := e.user(t, "meta@test", model.RoleUser, 7)

	res, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{
		ActorID:       admin.ID,
		UserID:        u.ID,
		Delta:         5,
		ReferenceType: ptr("order"),
		ReferenceID:   ptr(int64(99)),
		Metadata:      datatypes.JSON(`{"note":"bonus"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.NewBalance)
	assert.NotZero(t, res.TransactionID)

	var trans model.CreditTransaction
	require.NoError(t, e.db.First(&trans, res.TransactionID).Error)
	assert.Equal(t, model.DefaultCreditReason, trans.Reason)
	assert.Equal(t, int64(7), trans.BalanceBefore)
	assert.Equal(t, int64(12), trans.BalanceAfter)
	require.NotNil(t, trans.CreatedBy)
	assert.Equal(t, admin.ID, *trans.CreatedBy)
	assert.Equal(t, "order", *trans.ReferenceType)
	assert.JSONEq(t, `{"note":"bonus"}`, string(trans.Metadata))
	assert.Equal(t, res.TransactionNo, trans.TransactionNo)
}

func TestLedger_Conservation(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "sum@test", model.RoleUser, 0)
	ctx := context.Background()

	for _, d := range []int64{10, -3, 7, -14, 2, -2, 100} {
		_, _ = e.ledger.Adjust(ctx, &service.AdjustRequest{UserID: u.ID, Delta: d})
	}
	// -14 在余额 14 时成功，之后 -2 在余额 2 时成功

	audit, err := e.ledger.Verify(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, audit.LedgerSum, audit.CachedBalance)
	assert.Equal(t, int64(100), audit.CachedBalance)
}

func TestLedger_VerifyDetectsDrift(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "drift@test", model.RoleUser, 10)

	// 绕过积分引擎直接改余额
	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", u.ID).Update("credit_balance", 11).Error)

	audit, err := e.ledger.Verify(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.Equal(t, int64(11), audit.CachedBalance)
	assert.Equal(t, int64(10), audit.LedgerSum)
}

func TestLedger_ConcurrentAdjustmentsSerialize(t *testing.T) {
	// GIVEN 余额 10，并发 -5 与 +3
	e := newEnv(t)
	u := e.user(t, "race@test", model.RoleUser, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, d := range []int64{-5, 3} {
		wg.Add(1)
		go func(i int, d int64) {
			defer wg.Done()
			_, errs[i] = e.ledger.Adjust(context.Background(), &service.AdjustRequest{UserID: u.ID, Delta: d})
		}(i, d)
	}
	wg.Wait()

	// THEN 两次都成功，最终为 8
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int64(8), e.balance(t, u.ID))

	// 每条流水的 before/after 首尾相接，没有丢失更新
	var rows []model.CreditTransaction
	require.NoError(t, e.db.Where("user_id = ?", u.ID).Order("id ASC").Find(&rows).Error)
	for i := 1; i < len(rows); i++ {
		assert.Equal(t, rows[i-1].BalanceAfter, rows[i].BalanceBefore)
		assert.GreaterOrEqual(t, rows[i].BalanceAfter, int64(0))
	}
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "drain@test", model.RoleUser, 10)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, deny int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{UserID: u.ID, Delta: -1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, service.ErrInsufficientCredits):
				deny++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, deny)
	assert.Equal(t, int64(0), e.balance(t, u.ID))

	audit, err := e.ledger.Verify(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
}

func TestLedger_ListTransactionsNewestFirstAndClamped(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "list@test", model.RoleUser, 0)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := e.ledger.Adjust(ctx, &service.AdjustRequest{UserID: u.ID, Delta: int64(i)})
		require.NoError(t, err)
	}

	page, err := e.ledger.ListTransactions(ctx, u.ID, ptr(2), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(4), page.Items[0].Delta)
	assert.Equal(t, int64(3), page.Items[1].Delta)

	page, err = e.ledger.ListTransactions(ctx, u.ID, ptr(0), -3)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, int64(5), page.Items[0].Delta)

	page, err = e.ledger.ListTransactions(ctx, u.ID, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, service.DefaultPageLimit, page.Limit)
	assert.Len(t, page.Items, 5)

	_, err = e.ledger.ListTransactions(ctx, 999, nil, 0)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		limit        *int
		offset       int
		wantL, wantO int
	}{
		{nil, 0, 50, 0},
		{ptr(0), 0, 1, 0},
		{ptr(-7), -1, 1, 0},
		{ptr(200), 10, 200, 10},
		{ptr(500), 0, 200, 0},
	}
	for _, c := range cases {
		l, o := service.ClampPage(c.limit, c.offset)
		assert.Equal(t, c.wantL, l)
		assert.Equal(t, c.wantO, o)
	}
}

func TestLedger_GetBalance(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "bal@test", model.RoleUser, 42)

	bal, err := e.ledger.GetBalance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal)

	_, err = e.ledger.GetBalance(context.Background(), 12345)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
