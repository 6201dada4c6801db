package repository

import (
	"context"
	"errors"
	"strings"

	"fittrack/internal/model"
	"fittrack/pkg/sequence"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrEntryNotFound = errors.New("session exercise not found")

type SessionExerciseRepository struct {
	db *gorm.DB
}

func NewSessionExerciseRepository(db *gorm.DB) *SessionExerciseRepository {
	return &SessionExerciseRepository{db: db}
}

func (r *SessionExerciseRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.SessionExercise) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// NextOrderIndex 当前最大位置 + 1，没有条目时为 0
func (r *SessionExerciseRepository) NextOrderIndex(ctx context.Context, tx *gorm.DB, sessionID int64) (int, error) {
	var next int
	err := tx.WithContext(ctx).
		Model(&model.SessionExercise{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(order_index) + 1, 0)").
		Scan(&next).Error
	return next, err
}

func (r *SessionExerciseRepository) GetInSession(ctx context.Context, tx *gorm.DB, sessionID, entryID int64) (*model.SessionExercise, error) {
	if tx == nil {
		tx = r.db
	}
	var entry model.SessionExercise
	err := tx.WithContext(ctx).
		Where("id = ? AND session_id = ?", entryID, sessionID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

type slotRow struct {
	ID         int64 `gorm:"column:id"`
	OrderIndex int   `gorm:"column:order_index"`
}

// Slots 按 (order_index, id) 读取训练课下所有条目的位置
func (r *SessionExerciseRepository) Slots(ctx context.Context, tx *gorm.DB, sessionID int64) ([]sequence.Slot, error) {
	var rows []slotRow
	err := tx.WithContext(ctx).
		Model(&model.SessionExercise{}).
		Select("id, order_index").
		Where("session_id = ?", sessionID).
		Order("order_index ASC").
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	slots := make([]sequence.Slot, len(rows))
	for i, row := range rows {
		slots[i] = sequence.Slot{ID: row.ID, Index: row.OrderIndex}
	}
	return slots, nil
}

// IDsInSession 返回 ids 中属于该训练课的部分
func (r *SessionExerciseRepository) IDsInSession(ctx context.Context, tx *gorm.DB, sessionID int64, ids []int64) ([]int64, error) {
	found := make([]int64, 0, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	err := tx.WithContext(ctx).
		Model(&model.SessionExercise{}).
		Where("session_id = ? AND id IN ?", sessionID, ids).
		Pluck("id", &found).Error
	return found, err
}

// ApplyOrder 用一条 CASE 语句写回位置，所有排序操作都经由这里修改 order_index
func (r *SessionExerciseRepository) ApplyOrder(ctx context.Context, tx *gorm.DB, sessionID int64, slots []sequence.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	var expr strings.Builder
	args := make([]interface{}, 0, len(slots)*2)
	ids := make([]int64, len(slots))

	expr.WriteString("CASE id")
	for i, s := range slots {
		expr.WriteString(" WHEN ? THEN ?")
		args = append(args, s.ID, s.Index)
		ids[i] = s.ID
	}
	expr.WriteString(" ELSE order_index END")

	return tx.WithContext(ctx).
		Model(&model.SessionExercise{}).
		Where("session_id = ? AND id IN ?", sessionID, ids).
		Update("order_index", gorm.Expr(expr.String(), args...)).Error
}

func (r *SessionExerciseRepository) Update(ctx context.Context, tx *gorm.DB, entryID int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.SessionExercise{}).
		Where("id = ?", entryID).
		Updates(fields).Error
}

func (r *SessionExerciseRepository) Delete(ctx context.Context, tx *gorm.DB, sessionID, entryID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("id = ? AND session_id = ?", entryID, sessionID).
		Delete(&model.SessionExercise{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *SessionExerciseRepository) DeleteBySession(ctx context.Context, tx *gorm.DB, sessionID int64) error {
	return tx.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.SessionExercise{}).Error
}

func (r *SessionExerciseRepository) CountByExercise(ctx context.Context, tx *gorm.DB, exerciseID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.SessionExercise{}).
		Where("exercise_id = ?", exerciseID).
		Count(&count).Error
	return count, err
}

type entryRow struct {
	ID               int64               `gorm:"column:id"`
	SessionID        int64               `gorm:"column:session_id"`
	Weight           decimal.NullDecimal `gorm:"column:weight"`
	Reps             *int                `gorm:"column:reps"`
	OrderIndex       int                 `gorm:"column:order_index"`
	ExerciseID       int64               `gorm:"column:exercise_id"`
	ExerciseTitle    string              `gorm:"column:exercise_title"`
	ExerciseImgURL   *string             `gorm:"column:exercise_img_url"`
	ExerciseVideoURL *string             `gorm:"column:exercise_video_url"`
}

// ListViews 一次查询取出多个训练课的条目，按 session_id, order_index, id 排序
func (r *SessionExerciseRepository) ListViews(ctx context.Context, tx *gorm.DB, sessionIDs ...int64) ([]model.SessionExerciseView, error) {
	views := make([]model.SessionExerciseView, 0)
	if len(sessionIDs) == 0 {
		return views, nil
	}
	if tx == nil {
		tx = r.db
	}

	var rows []entryRow
	err := tx.WithContext(ctx).
		Table("session_exercises AS se").
		Select("se.id, se.session_id, se.weight, se.reps, se.order_index, " +
			"e.id AS exercise_id, e.title AS exercise_title, e.img_url AS exercise_img_url, e.video_url AS exercise_video_url").
		Joins("JOIN exercises e ON e.id = se.exercise_id").
		Where("se.session_id IN ?", sessionIDs).
		Order("se.session_id ASC").
		Order("se.order_index ASC").
		Order("se.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		views = append(views, model.SessionExerciseView{
			ID:        row.ID,
			SessionID: row.SessionID,
			Exercise: model.ExerciseRef{
				ID:       row.ExerciseID,
				Title:    row.ExerciseTitle,
				ImgURL:   row.ExerciseImgURL,
				VideoURL: row.ExerciseVideoURL,
			},
			Weight:     row.Weight,
			Reps:       row.Reps,
			OrderIndex: row.OrderIndex,
		})
	}
	return views, nil
}
