package repository

import (
	"context"
	"errors"

	"fittrack/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, tx *gorm.DB, session *model.Session) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(session).Error
}

// LockByID 锁定训练课行，同一训练课上的排序操作因此串行执行
func (r *SessionRepository) LockByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Session, error) {
	var session model.Session
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) viewQuery(ctx context.Context, tx *gorm.DB) *gorm.DB {
	return tx.WithContext(ctx).
		Table("sessions AS s").
		Select("s.id, s.title, s.notes, s.type_id, s.rest_time, s.created_at, s.updated_at, " +
			"st.name AS type_name, st.description AS type_description").
		Joins("LEFT JOIN session_types st ON st.id = s.type_id")
}

// GetView 训练课及其类型
func (r *SessionRepository) GetView(ctx context.Context, tx *gorm.DB, id int64) (*model.SessionView, error) {
	if tx == nil {
		tx = r.db
	}
	var views []model.SessionView
	if err := r.viewQuery(ctx, tx).Where("s.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrSessionNotFound
	}
	return &views[0], nil
}

// ListViews 最新的在前
func (r *SessionRepository) ListViews(ctx context.Context) ([]model.SessionView, error) {
	views := make([]model.SessionView, 0)
	err := r.viewQuery(ctx, r.db).
		Order("s.created_at DESC").
		Order("s.id DESC").
		Scan(&views).Error
	return views, err
}

func (r *SessionRepository) Update(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *SessionRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Session{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) CountByType(ctx context.Context, tx *gorm.DB, typeID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).Model(&model.Session{}).Where("type_id = ?", typeID).Count(&count).Error
	return count, err
}
