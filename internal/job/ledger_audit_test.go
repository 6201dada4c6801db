package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"fittrack/internal/config"
	"fittrack/internal/infrastructure/database/dbtest"
	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/service"
	"fittrack/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAuditJob_RunOnceFindsDrift(t *testing.T) {
	db := dbtest.New(t)
	log := logger.NewDiscard()
	m := metrics.New()
	ledger := service.NewLedgerService(db, m, log)
	ctx := context.Background()

	var role model.Role
	require.NoError(t, db.Where("name = ?", model.RoleUser).First(&role).Error)

	users := make([]*model.User, 5)
	for i := range users {
		users[i] = &model.User{Email: string(rune('a'+i)) + "@audit.io", PasswordHash: "x", RoleID: role.ID}
		require.NoError(t, db.Create(users[i]).Error)
		_, err := ledger.Adjust(ctx, &service.AdjustRequest{UserID: users[i].ID, Delta: int64(10 * (i + 1))})
		require.NoError(t, err)
	}
	// 绕过积分引擎直接改缓存余额
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", users[3].ID).Update("credit_balance", 1).Error)

	j := NewLedgerAuditJob(ledger, config.LedgerConfig{AuditBatchSize: 2}, m, log)
	summary := j.RunOnce(ctx)

	assert.Equal(t, 5, summary.Checked)
	assert.Equal(t, []int64{users[3].ID}, summary.Drift)
	assert.Zero(t, summary.Failed)
}

type failingAuditor struct {
	ids []int64
}

func (f *failingAuditor) UserIDsAfter(_ context.Context, afterID int64, limit int) ([]int64, error) {
	var out []int64
	for _, id := range f.ids {
		if id > afterID && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *failingAuditor) Verify(_ context.Context, userID int64) (*service.BalanceAudit, error) {
	switch userID {
	case 2:
		return nil, service.ErrUserNotFound
	case 3:
		return nil, errors.New("connection reset")
	}
	return &service.BalanceAudit{UserID: userID, Consistent: true}, nil
}

func TestLedgerAuditJob_SkipsDeletedAndCountsFailures(t *testing.T) {
	j := NewLedgerAuditJob(&failingAuditor{ids: []int64{1, 2, 3, 4}}, config.LedgerConfig{}, nil, logger.NewDiscard())

	summary := j.RunOnce(context.Background())
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, summary.Drift)
}

func TestLedgerAuditJob_StartStops(t *testing.T) {
	j := NewLedgerAuditJob(&failingAuditor{}, config.LedgerConfig{AuditInterval: time.Millisecond}, nil, logger.NewDiscard())

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()
	j.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}
