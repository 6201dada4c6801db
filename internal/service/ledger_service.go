package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/repository"
	"fittrack/pkg/idgen"
	"fittrack/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 分页参数
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// LedgerService 积分引擎
// credit_balance 只在 Adjust 的事务里随流水一起修改
type LedgerService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	txRepo   *repository.CreditTransactionRepository
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

func NewLedgerService(db *gorm.DB, m *metrics.Metrics, log *logger.Logger) *LedgerService {
	return &LedgerService{
		db:       db,
		userRepo: repository.NewUserRepository(db),
		txRepo:   repository.NewCreditTransactionRepository(db),
		metrics:  m,
		log:      log.Component("ledger"),
	}
}

// AdjustRequest 调整积分请求
type AdjustRequest struct {
	ActorID       int64
	UserID        int64
	Delta         int64
	Reason        string
	ReferenceType *string
	ReferenceID   *int64
	Metadata      datatypes.JSON
	AllowNegative bool
}

// AdjustResult 调整结果
type AdjustResult struct {
	UserID        int64  `json:"user_id"`
	NewBalance    int64  `json:"new_balance"`
	TransactionID int64  `json:"transaction_id"`
	TransactionNo string `json:"transaction_no"`
}

// Adjust 调整积分
//
// 加锁 -> 读余额 -> 校验 -> 写流水 + 覆盖余额 -> 提交，任何一步失败整体回滚
func (s *LedgerService) Adjust(ctx context.Context, req *AdjustRequest) (*AdjustResult, error) {
	if req.Delta == 0 {
		s.metrics.LedgerAdjustment(metrics.ResultRejected)
		return nil, ErrInvalidDelta
	}

	reason := req.Reason
	if reason == "" {
		reason = model.DefaultCreditReason
	}

	var result *AdjustResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁定用户行，同一用户的调整串行执行
		user, err := s.userRepo.LockByID(ctx, tx, req.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		// 2. 计算新余额，结果超出 int64 时拒绝
		if overflows(user.CreditBalance, req.Delta) {
			return ErrBalanceOutOfRange
		}
		next := user.CreditBalance + req.Delta
		if next < 0 && !req.AllowNegative {
			return ErrInsufficientCredits
		}

		// 3. 写流水
		var createdBy *int64
		if req.ActorID > 0 {
			actor := req.ActorID
			createdBy = &actor
		}
		trans := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        user.ID,
			Delta:         req.Delta,
			Reason:        reason,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			CreatedBy:     createdBy,
			Metadata:      req.Metadata,
			BalanceBefore: user.CreditBalance,
			BalanceAfter:  next,
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("insert credit transaction: %w", err)
		}

		// 4. 覆盖缓存余额
		if err := s.userRepo.SetBalance(ctx, tx, user.ID, next); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		result = &AdjustResult{
			UserID:        user.ID,
			NewBalance:    next,
			TransactionID: trans.ID,
			TransactionNo: trans.TransactionNo,
		}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			s.metrics.LedgerAdjustment(metrics.ResultRejected)
		} else {
			s.metrics.LedgerAdjustment(metrics.ResultError)
		}
		return nil, err
	}

	s.metrics.LedgerAdjustment(metrics.ResultOK)
	s.log.WithFields(logrus.Fields{
		"user_id":        result.UserID,
		"actor_id":       req.ActorID,
		"delta":          req.Delta,
		"reason":         reason,
		"new_balance":    result.NewBalance,
		"transaction_no": result.TransactionNo,
	}).Info("credits adjusted")
	return result, nil
}

func overflows(balance, delta int64) bool {
	if delta > 0 {
		return balance > math.MaxInt64-delta
	}
	return balance < math.MinInt64-delta
}

// GetBalance 读取缓存余额
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.CreditBalance, nil
}

// ClampPage limit 收敛到 [1, 200]，缺省 50；offset 小于 0 时取 0
// limit 为 nil 表示调用方未传
func ClampPage(limit *int, offset int) (int, int) {
	l := DefaultPageLimit
	if limit != nil {
		l = *limit
	}
	if l < 1 {
		l = 1
	}
	if l > MaxPageLimit {
		l = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return l, offset
}

// TransactionPage 流水分页结果
type TransactionPage struct {
	UserID int64                     `json:"user_id"`
	Items  []model.CreditTransaction `json:"items"`
	Total  int64                     `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// ListTransactions 流水列表，最新的在前
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, limit *int, offset int) (*TransactionPage, error) {
	if _, err := s.GetBalance(ctx, userID); err != nil {
		return nil, err
	}

	l, o := ClampPage(limit, offset)
	items, total, err := s.txRepo.ListByUserID(ctx, userID, l, o)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	return &TransactionPage{
		UserID: userID,
		Items:  items,
		Total:  total,
		Limit:  l,
		Offset: o,
	}, nil
}

// BalanceAudit 缓存余额与流水合计的对账结果
type BalanceAudit struct {
	UserID        int64 `json:"user_id"`
	CachedBalance int64 `json:"cached_balance"`
	LedgerSum     int64 `json:"ledger_sum"`
	Consistent    bool  `json:"consistent"`
}

// UserIDsAfter 供对账任务分批遍历用户
func (s *LedgerService) UserIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	return s.userRepo.IDsAfter(ctx, afterID, limit)
}

// Verify 对账，持有用户行锁读取，结果与并发调整互不交错
func (s *LedgerService) Verify(ctx context.Context, userID int64) (*BalanceAudit, error) {
	audit := &BalanceAudit{UserID: userID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.LockByID(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		sum, err := s.txRepo.SumByUserID(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("sum credit transactions: %w", err)
		}
		audit.CachedBalance = user.CreditBalance
		audit.LedgerSum = sum
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Consistent = audit.CachedBalance == audit.LedgerSum
	if !audit.Consistent {
		s.log.WithFields(logrus.Fields{
			"user_id":        userID,
			"cached_balance": audit.CachedBalance,
			"ledger_sum":     audit.LedgerSum,
		}).Warn("credit balance drift detected")
	}
	return audit, nil
}
