package service

import (
	"context"
	"errors"
	"fmt"

	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/repository"
	"fittrack/pkg/logger"
	"fittrack/pkg/sequence"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 排序操作名，用作指标标签
const (
	OpAdd        = "add"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpReorder    = "reorder"
	OpReorderMap = "reorder_map"
	OpMove       = "move"
	OpCompact    = "compact"
)

// errUnchanged 目标位置与当前位置相同，回滚事务后直接返回当前顺序
var errUnchanged = errors.New("order unchanged")

// OrderingService 排序引擎
//
// 每个写操作都在一个事务里执行，并先锁定训练课行；
// order_index 的计算统一走 pkg/sequence，写回统一走 ApplyOrder。
type OrderingService struct {
	db           *gorm.DB
	sessionRepo  *repository.SessionRepository
	entryRepo    *repository.SessionExerciseRepository
	exerciseRepo *repository.ExerciseRepository
	metrics      *metrics.Metrics
	log          *logrus.Entry
}

func NewOrderingService(db *gorm.DB, m *metrics.Metrics, log *logger.Logger) *OrderingService {
	return &OrderingService{
		db:           db,
		sessionRepo:  repository.NewSessionRepository(db),
		entryRepo:    repository.NewSessionExerciseRepository(db),
		exerciseRepo: repository.NewExerciseRepository(db),
		metrics:      m,
		log:          log.Component("ordering"),
	}
}

// AddEntryRequest 添加条目，OrderIndex 为空时追加到末尾
type AddEntryRequest struct {
	SessionID  int64
	ExerciseID int64
	Weight     decimal.NullDecimal
	Reps       *int
	OrderIndex *int
}

// UpdateEntryRequest 部分更新，Set* 标记字段是否出现在请求中（出现且为空表示置空）
type UpdateEntryRequest struct {
	SessionID  int64
	EntryID    int64
	SetWeight  bool
	Weight     decimal.NullDecimal
	SetReps    bool
	Reps       *int
	OrderIndex *int
}

// OrderItem reorder-map 的一项
type OrderItem struct {
	ID         int64
	OrderIndex int
}

func validateWeightReps(weight decimal.NullDecimal, reps *int) error {
	if weight.Valid && weight.Decimal.IsNegative() {
		return ErrInvalidWeight
	}
	if reps != nil && *reps < 0 {
		return ErrInvalidReps
	}
	return nil
}

// AddEntry 添加动作到训练课
// 未指定位置时取 COALESCE(MAX(order_index)+1, 0)；显式位置原样写入，不做连续性修复
func (s *OrderingService) AddEntry(ctx context.Context, req *AddEntryRequest) (*model.SessionExerciseView, error) {
	if req.ExerciseID <= 0 {
		return nil, ErrMissingExerciseID
	}
	if err := validateWeightReps(req.Weight, req.Reps); err != nil {
		return nil, err
	}
	if req.OrderIndex != nil && *req.OrderIndex < 0 {
		return nil, ErrInvalidOrderIndex
	}

	var view *model.SessionExerciseView
	err := s.inSession(ctx, OpAdd, req.SessionID, func(tx *gorm.DB) error {
		if _, err := s.exerciseRepo.GetByID(ctx, tx, req.ExerciseID); err != nil {
			if errors.Is(err, repository.ErrExerciseNotFound) {
				return ErrExerciseNotFound
			}
			return fmt.Errorf("get exercise: %w", err)
		}

		index := 0
		if req.OrderIndex != nil {
			index = *req.OrderIndex
		} else {
			next, err := s.entryRepo.NextOrderIndex(ctx, tx, req.SessionID)
			if err != nil {
				return fmt.Errorf("next order index: %w", err)
			}
			index = next
		}

		entry := &model.SessionExercise{
			SessionID:  req.SessionID,
			ExerciseID: req.ExerciseID,
			Weight:     req.Weight,
			Reps:       req.Reps,
			OrderIndex: index,
		}
		if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("create entry: %w", err)
		}

		v, err := s.entryView(ctx, tx, req.SessionID, entry.ID)
		view = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateEntry 部分更新重量、次数或位置；直接设置 order_index 不修复连续性，需要时调用 Compact
func (s *OrderingService) UpdateEntry(ctx context.Context, req *UpdateEntryRequest) (*model.SessionExerciseView, error) {
	fields := make(map[string]interface{})
	if req.SetWeight {
		if err := validateWeightReps(req.Weight, nil); err != nil {
			return nil, err
		}
		fields["weight"] = req.Weight
	}
	if req.SetReps {
		if err := validateWeightReps(decimal.NullDecimal{}, req.Reps); err != nil {
			return nil, err
		}
		fields["reps"] = req.Reps
	}
	if req.OrderIndex != nil {
		if *req.OrderIndex < 0 {
			return nil, ErrInvalidOrderIndex
		}
		fields["order_index"] = *req.OrderIndex
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	var view *model.SessionExerciseView
	err := s.inSession(ctx, OpUpdate, req.SessionID, func(tx *gorm.DB) error {
		if _, err := s.entryRepo.GetInSession(ctx, tx, req.SessionID, req.EntryID); err != nil {
			if errors.Is(err, repository.ErrEntryNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("get entry: %w", err)
		}
		if err := s.entryRepo.Update(ctx, tx, req.EntryID, fields); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}

		v, err := s.entryView(ctx, tx, req.SessionID, req.EntryID)
		view = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// DeleteEntry 删除条目，不自动压缩
func (s *OrderingService) DeleteEntry(ctx context.Context, sessionID, entryID int64) error {
	return s.inSession(ctx, OpDelete, sessionID, func(tx *gorm.DB) error {
		if err := s.entryRepo.Delete(ctx, tx, sessionID, entryID); err != nil {
			if errors.Is(err, repository.ErrEntryNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("delete entry: %w", err)
		}
		return nil
	})
}

// Reorder 按完整 id 序列重排，序列必须恰好覆盖训练课的全部条目
func (s *OrderingService) Reorder(ctx context.Context, sessionID int64, ids []int64) ([]model.SessionExerciseView, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyOrder
	}
	if sequence.HasDuplicates(ids) {
		return nil, ErrDuplicatedIDs
	}

	var views []model.SessionExerciseView
	err := s.inSession(ctx, OpReorder, sessionID, func(tx *gorm.DB) error {
		current, err := s.entryRepo.Slots(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
		if len(current) != len(ids) {
			return ErrMismatchCount
		}

		found, err := s.entryRepo.IDsInSession(ctx, tx, sessionID, ids)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if len(found) != len(ids) {
			return ErrIDNotInSession
		}

		if err := s.entryRepo.ApplyOrder(ctx, tx, sessionID, sequence.Changed(current, sequence.Assign(ids))); err != nil {
			return fmt.Errorf("apply order: %w", err)
		}

		views, err = s.entryRepo.ListViews(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ReorderMap 只修改列出的条目，不做全局连续性检查
func (s *OrderingService) ReorderMap(ctx context.Context, sessionID int64, items []OrderItem) ([]model.SessionExerciseView, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]int64, len(items))
	slots := make([]sequence.Slot, len(items))
	for i, item := range items {
		if item.ID <= 0 {
			return nil, ErrInvalidID
		}
		if item.OrderIndex < 0 {
			return nil, ErrInvalidOrderIndex
		}
		ids[i] = item.ID
		slots[i] = sequence.Slot{ID: item.ID, Index: item.OrderIndex}
	}
	if sequence.HasDuplicates(ids) {
		return nil, ErrDuplicatedIDs
	}

	var views []model.SessionExerciseView
	err := s.inSession(ctx, OpReorderMap, sessionID, func(tx *gorm.DB) error {
		found, err := s.entryRepo.IDsInSession(ctx, tx, sessionID, ids)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if len(found) != len(ids) {
			return ErrIDNotInSession
		}

		if err := s.entryRepo.ApplyOrder(ctx, tx, sessionID, slots); err != nil {
			return fmt.Errorf("apply order: %w", err)
		}

		views, err = s.entryRepo.ListViews(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Move 把条目移动到 target，target 收敛到 [0, n-1]，中间区间平移一位
func (s *OrderingService) Move(ctx context.Context, sessionID, entryID int64, target int) ([]model.SessionExerciseView, error) {
	var views []model.SessionExerciseView
	err := s.inSession(ctx, OpMove, sessionID, func(tx *gorm.DB) error {
		current, err := s.entryRepo.Slots(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("load slots: %w", err)
		}

		ids := sequence.Ordered(current)
		from := sequence.Position(ids, entryID)
		if from < 0 {
			return ErrEntryNotFound
		}
		to := sequence.Clamp(target, len(ids))
		if to == from {
			return errUnchanged
		}

		desired := sequence.Assign(sequence.Move(ids, from, to))
		if err := s.entryRepo.ApplyOrder(ctx, tx, sessionID, sequence.Changed(current, desired)); err != nil {
			return fmt.Errorf("apply order: %w", err)
		}

		views, err = s.entryRepo.ListViews(ctx, tx, sessionID)
		return err
	})
	if errors.Is(err, errUnchanged) {
		return s.entryRepo.ListViews(ctx, nil, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Compact 按 (order_index, id) 重新编号为 0..n-1，幂等
func (s *OrderingService) Compact(ctx context.Context, sessionID int64) error {
	return s.inSession(ctx, OpCompact, sessionID, func(tx *gorm.DB) error {
		current, err := s.entryRepo.Slots(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("load slots: %w", err)
		}

		desired := sequence.Assign(sequence.Ordered(current))
		if err := s.entryRepo.ApplyOrder(ctx, tx, sessionID, sequence.Changed(current, desired)); err != nil {
			return fmt.Errorf("apply order: %w", err)
		}
		return nil
	})
}

// inSession 开启事务并锁定训练课行后执行 fn，记录指标和日志
func (s *OrderingService) inSession(ctx context.Context, op string, sessionID int64, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.sessionRepo.LockByID(ctx, tx, sessionID); err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}
		return fn(tx)
	})

	entry := s.log.WithFields(logrus.Fields{"op": op, "session_id": sessionID})
	var svcErr *Error
	switch {
	case err == nil:
		s.metrics.OrderingOperation(op, metrics.ResultOK)
		entry.Info("session order updated")
	case errors.Is(err, errUnchanged):
		s.metrics.OrderingOperation(op, metrics.ResultOK)
	case errors.As(err, &svcErr):
		s.metrics.OrderingOperation(op, metrics.ResultRejected)
	default:
		s.metrics.OrderingOperation(op, metrics.ResultError)
		entry.WithError(err).Error("session order update failed")
	}
	return err
}

func (s *OrderingService) entryView(ctx context.Context, tx *gorm.DB, sessionID, entryID int64) (*model.SessionExerciseView, error) {
	views, err := s.entryRepo.ListViews(ctx, tx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	for i := range views {
		if views[i].ID == entryID {
			return &views[i], nil
		}
	}
	return nil, ErrEntryNotFound
}
