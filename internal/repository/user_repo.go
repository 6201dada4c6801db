package repository

import (
	"context"
	"errors"

	"fittrack/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// EmailTaken 邮箱是否已被 excludeID 以外的用户占用
func (r *UserRepository) EmailTaken(ctx context.Context, tx *gorm.DB, email string, excludeID int64) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) viewQuery(ctx context.Context, tx *gorm.DB) *gorm.DB {
	return tx.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.email, u.name, u.role_id, r.name AS role_name, u.credit_balance, u.created_at, u.updated_at").
		Joins("JOIN roles r ON r.id = u.role_id")
}

// GetView 查询带角色名的用户
func (r *UserRepository) GetView(ctx context.Context, tx *gorm.DB, id int64) (*model.UserView, error) {
	if tx == nil {
		tx = r.db
	}
	var views []model.UserView
	if err := r.viewQuery(ctx, tx).Where("u.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrUserNotFound
	}
	return &views[0], nil
}

func (r *UserRepository) ListViews(ctx context.Context) ([]model.UserView, error) {
	views := make([]model.UserView, 0)
	err := r.viewQuery(ctx, r.db).Order("u.id ASC").Scan(&views).Error
	return views, err
}

// LockByID 在事务内对用户行加排他锁（SELECT ... FOR UPDATE）
func (r *UserRepository) LockByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetBalance 覆盖缓存余额，调用方必须持有该用户的行锁并在同一事务内写入流水
func (r *UserRepository) SetBalance(ctx context.Context, tx *gorm.DB, id int64, balance int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("credit_balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Update 部分更新资料字段，credit_balance 不在允许范围内
func (r *UserRepository) Update(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	delete(fields, "credit_balance")
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// LockIDsByRole 锁定某角色下的全部用户并返回 id
func (r *UserRepository) LockIDsByRole(ctx context.Context, tx *gorm.DB, roleID int64) ([]int64, error) {
	var users []model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("role_id = ?", roleID).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}

// IDsAfter 按 id 升序分批扫描用户
func (r *UserRepository) IDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*model.Role, error) {
	if tx == nil {
		tx = r.db
	}
	var role model.Role
	err := tx.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Role, error) {
	if tx == nil {
		tx = r.db
	}
	var role model.Role
	err := tx.WithContext(ctx).Where("id = ?", id).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}
