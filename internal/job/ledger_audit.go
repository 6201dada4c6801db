package job

import (
	"context"
	"errors"
	"time"

	"fittrack/internal/config"
	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/service"
	"fittrack/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Auditor 对账所需的积分引擎能力
type Auditor interface {
	UserIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error)
	Verify(ctx context.Context, userID int64) (*service.BalanceAudit, error)
}

// LedgerAuditJob 定期比较缓存余额与流水合计，只报告不修复
type LedgerAuditJob struct {
	ledger    Auditor
	metrics   *metrics.Metrics
	log       *logrus.Entry
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewLedgerAuditJob(ledger Auditor, cfg config.LedgerConfig, m *metrics.Metrics, log *logger.Logger) *LedgerAuditJob {
	batchSize := cfg.AuditBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &LedgerAuditJob{
		ledger:    ledger,
		metrics:   m,
		log:       log.Component("ledger_audit"),
		stopCh:    make(chan struct{}),
		interval:  cfg.AuditInterval,
		batchSize: batchSize,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	if j.interval <= 0 {
		j.log.Info("ledger audit disabled")
		return
	}
	j.log.WithField("interval", j.interval).Info("ledger audit started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("ledger audit stopped by context")
			return
		case <-j.stopCh:
			j.log.Info("ledger audit stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

// AuditSummary 一轮对账的统计
type AuditSummary struct {
	Checked int
	Drift   []int64
	Failed  int
}

// RunOnce 按 id 升序分批检查全部用户
func (j *LedgerAuditJob) RunOnce(ctx context.Context) AuditSummary {
	var summary AuditSummary
	var after int64
	for {
		if ctx.Err() != nil {
			return summary
		}
		ids, err := j.ledger.UserIDsAfter(ctx, after, j.batchSize)
		if err != nil {
			j.log.WithError(err).Error("list users for audit failed")
			return summary
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			j.verify(ctx, id, &summary)
		}
		after = ids[len(ids)-1]
	}

	entry := j.log.WithFields(logrus.Fields{
		"checked": summary.Checked,
		"drift":   len(summary.Drift),
		"failed":  summary.Failed,
	})
	if len(summary.Drift) > 0 {
		entry.Warn("ledger audit finished with drift")
	} else {
		entry.Debug("ledger audit finished")
	}
	return summary
}

func (j *LedgerAuditJob) verify(ctx context.Context, userID int64, summary *AuditSummary) {
	audit, err := j.ledger.Verify(ctx, userID)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		// 扫描期间被删除
		return
	case err != nil:
		summary.Failed++
		j.metrics.LedgerAudit(metrics.ResultError)
		j.log.WithError(err).WithField("user_id", userID).Error("verify balance failed")
		return
	}

	summary.Checked++
	if audit.Consistent {
		j.metrics.LedgerAudit(metrics.AuditConsistent)
		return
	}
	summary.Drift = append(summary.Drift, userID)
	j.metrics.LedgerAudit(metrics.AuditDrift)
}
