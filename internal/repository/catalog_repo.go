package repository

import (
	"context"
	"errors"

	"fittrack/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTypeNotFound     = errors.New("type not found")
	ErrExerciseNotFound = errors.New("exercise not found")
)

// TypeRepository 动作类型和训练课类型表结构相同，按表名区分
type TypeRepository struct {
	db    *gorm.DB
	table string
}

func NewExerciseTypeRepository(db *gorm.DB) *TypeRepository {
	return &TypeRepository{db: db, table: model.ExerciseType{}.TableName()}
}

func NewSessionTypeRepository(db *gorm.DB) *TypeRepository {
	return &TypeRepository{db: db, table: model.SessionType{}.TableName()}
}

func (r *TypeRepository) Table() string {
	return r.table
}

func (r *TypeRepository) Create(ctx context.Context, tx *gorm.DB, t *model.CatalogType) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Table(r.table).Create(t).Error
}

func (r *TypeRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.CatalogType, error) {
	if tx == nil {
		tx = r.db
	}
	var t model.CatalogType
	err := tx.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTypeNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TypeRepository) List(ctx context.Context) ([]model.CatalogType, error) {
	types := make([]model.CatalogType, 0)
	err := r.db.WithContext(ctx).Table(r.table).Order("name ASC").Find(&types).Error
	return types, err
}

// NameTaken 名称是否已被 excludeID 以外的记录占用
func (r *TypeRepository) NameTaken(ctx context.Context, tx *gorm.DB, name string, excludeID int64) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).Table(r.table).Where("name = ? AND id <> ?", name, excludeID).Count(&count).Error
	return count > 0, err
}

func (r *TypeRepository) Update(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Table(r.table).Where("id = ?", id).Updates(fields).Error
}

func (r *TypeRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Table(r.table).Where("id = ?", id).Delete(&model.CatalogType{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTypeNotFound
	}
	return nil
}

type ExerciseRepository struct {
	db *gorm.DB
}

func NewExerciseRepository(db *gorm.DB) *ExerciseRepository {
	return &ExerciseRepository{db: db}
}

func (r *ExerciseRepository) Create(ctx context.Context, tx *gorm.DB, exercise *model.Exercise) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(exercise).Error
}

func (r *ExerciseRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Exercise, error) {
	if tx == nil {
		tx = r.db
	}
	var exercise model.Exercise
	err := tx.WithContext(ctx).Where("id = ?", id).First(&exercise).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

func (r *ExerciseRepository) viewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("exercises AS e").
		Select("e.id, e.title, e.img_url, e.video_url, e.type_id, e.created_at, et.name AS type_name").
		Joins("LEFT JOIN exercise_types et ON et.id = e.type_id")
}

func (r *ExerciseRepository) GetView(ctx context.Context, id int64) (*model.ExerciseView, error) {
	var views []model.ExerciseView
	if err := r.viewQuery(ctx).Where("e.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrExerciseNotFound
	}
	return &views[0], nil
}

func (r *ExerciseRepository) ListViews(ctx context.Context) ([]model.ExerciseView, error) {
	views := make([]model.ExerciseView, 0)
	err := r.viewQuery(ctx).Order("e.id DESC").Scan(&views).Error
	return views, err
}

func (r *ExerciseRepository) Update(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Model(&model.Exercise{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ExerciseRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Exercise{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrExerciseNotFound
	}
	return nil
}

func (r *ExerciseRepository) CountByType(ctx context.Context, tx *gorm.DB, typeID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).Model(&model.Exercise{}).Where("type_id = ?", typeID).Count(&count).Error
	return count, err
}
