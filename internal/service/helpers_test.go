package service_test

import (
	"context"
	"testing"

	"fittrack/internal/infrastructure/database/dbtest"
	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/service"
	"fittrack/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db       *gorm.DB
	log      *logger.Logger
	metrics  *metrics.Metrics
	ledger   *service.LedgerService
	ordering *service.OrderingService
	sessions *service.SessionService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)
	log := logger.NewDiscard()
	m := metrics.New()
	return &env{
		db:       db,
		log:      log,
		metrics:  m,
		ledger:   service.NewLedgerService(db, m, log),
		ordering: service.NewOrderingService(db, m, log),
		sessions: service.NewSessionService(db, log),
	}
}

func (e *env) role(t *testing.T, name string) int64 {
	t.Helper()
	var role model.Role
	require.NoError(t, e.db.Where("name = ?", name).First(&role).Error)
	return role.ID
}

// user 创建零余额用户，初始积分通过积分引擎写入以保持流水与余额一致
func (e *env) user(t *testing.T, email, role string, balance int64) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", RoleID: e.role(t, role)}
	require.NoError(t, e.db.Create(u).Error)
	if balance != 0 {
		_, err := e.ledger.Adjust(context.Background(), &service.AdjustRequest{
			UserID:        u.ID,
			Delta:         balance,
			Reason:        "seed",
			AllowNegative: balance < 0,
		})
		require.NoError(t, err)
	}
	return u
}

func (e *env) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	var u model.User
	require.NoError(t, e.db.First(&u, userID).Error)
	return u.CreditBalance
}

func (e *env) txCount(t *testing.T, userID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.CreditTransaction{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

// session 创建训练课并按顺序追加 n 个条目，返回条目 id
func (e *env) session(t *testing.T, title string, n int) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	s := &model.Session{Title: title}
	require.NoError(t, e.db.Create(s).Error)

	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ex := &model.Exercise{Title: title + " exercise"}
		require.NoError(t, e.db.Create(ex).Error)
		v, err := e.ordering.AddEntry(ctx, &service.AddEntryRequest{SessionID: s.ID, ExerciseID: ex.ID})
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	return s.ID, ids
}

// order 读取已提交的 (id -> order_index)
func (e *env) order(t *testing.T, sessionID int64) map[int64]int {
	t.Helper()
	var rows []model.SessionExercise
	require.NoError(t, e.db.Where("session_id = ?", sessionID).Find(&rows).Error)
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.OrderIndex
	}
	return out
}

func ids(views []model.SessionExerciseView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func indices(views []model.SessionExerciseView) []int {
	out := make([]int, len(views))
	for i, v := range views {
		out[i] = v.OrderIndex
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
