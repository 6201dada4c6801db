package repository

import (
	"context"

	"fittrack/internal/model"

	"gorm.io/gorm"
)

type CreditTransactionRepository struct {
	db *gorm.DB
}

func NewCreditTransactionRepository(db *gorm.DB) *CreditTransactionRepository {
	return &CreditTransactionRepository{db: db}
}

func (r *CreditTransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CreditTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ListByUserID 按 created_at DESC, id DESC 分页
func (r *CreditTransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.CreditTransaction, int64, error) {
	transactions := make([]model.CreditTransaction, 0)
	var total int64

	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.CreditTransaction{}).Where("user_id = ?", userID)
	}

	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query().
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error

	return transactions, total, err
}

// SumByUserID 流水 delta 之和
func (r *CreditTransactionRepository) SumByUserID(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var sum int64
	err := tx.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *CreditTransactionRepository) CountByUserID(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Where("user_id = ? OR created_by = ?", userID, userID).
		Count(&count).Error
	return count, err
}
