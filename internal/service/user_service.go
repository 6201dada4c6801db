package service

import (
	"context"
	"errors"
	"fmt"

	"fittrack/internal/model"
	"fittrack/internal/repository"
	"fittrack/pkg/logger"
	"fittrack/pkg/password"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserService 用户资料、角色和删除
type UserService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	roleRepo *repository.RoleRepository
	txRepo   *repository.CreditTransactionRepository
	hasher   *password.Hasher
	log      *logrus.Entry
}

func NewUserService(db *gorm.DB, hasher *password.Hasher, log *logger.Logger) *UserService {
	return &UserService{
		db:       db,
		userRepo: repository.NewUserRepository(db),
		roleRepo: repository.NewRoleRepository(db),
		txRepo:   repository.NewCreditTransactionRepository(db),
		hasher:   hasher,
		log:      log.Component("user"),
	}
}

func (s *UserService) List(ctx context.Context) ([]model.UserView, error) {
	return s.userRepo.ListViews(ctx)
}

// Get 管理员或本人
func (s *UserService) Get(ctx context.Context, actor Actor, id int64) (*model.UserView, error) {
	if !actor.CanAccessUser(id) {
		return nil, ErrForbidden
	}
	view, err := s.userRepo.GetView(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return view, nil
}

// ProfileInput 部分更新，SetName 标记 name 是否出现在请求中
type ProfileInput struct {
	Email    *string
	SetName  bool
	Name     *string
	Password *string
}

func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, id int64, in *ProfileInput) (*model.UserView, error) {
	if !actor.CanAccessUser(id) {
		return nil, ErrForbidden
	}

	fields := make(map[string]interface{})
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" {
			return nil, ErrMissingFields
		}
		fields["email"] = email
	}
	if in.SetName {
		fields["name"] = in.Name
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, ErrMissingFields
		}
		hashed, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hashed
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	var view *model.UserView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.LockByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		if email, ok := fields["email"].(string); ok {
			taken, err := s.userRepo.EmailTaken(ctx, tx, email, id)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if taken {
				return ErrEmailInUse
			}
		}
		if err := s.userRepo.Update(ctx, tx, id, fields); err != nil {
			return translateConstraint(err, ErrEmailInUse, nil)
		}

		var err error
		view, err = s.userRepo.GetView(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ensureNotLastAdmin user 是管理员且是唯一的管理员时返回 ErrCannotRemoveLastAdmin
func (s *UserService) ensureNotLastAdmin(ctx context.Context, tx *gorm.DB, user *model.User) error {
	admin, err := s.roleRepo.GetByName(ctx, tx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("get admin role: %w", err)
	}
	if user.RoleID != admin.ID {
		return nil
	}
	admins, err := s.userRepo.LockIDsByRole(ctx, tx, admin.ID)
	if err != nil {
		return fmt.Errorf("lock admins: %w", err)
	}
	if len(admins) <= 1 {
		return ErrCannotRemoveLastAdmin
	}
	return nil
}

// RoleName 把 role_id 解析为角色名，不存在时返回 ErrInvalidRole
func (s *UserService) RoleName(ctx context.Context, roleID int64) (string, error) {
	role, err := s.roleRepo.GetByID(ctx, nil, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return "", ErrInvalidRole
		}
		return "", err
	}
	return role.Name, nil
}

// SetRole 修改角色，不能把最后一个管理员降级
func (s *UserService) SetRole(ctx context.Context, id int64, roleName string) (*model.UserView, error) {
	if roleName != model.RoleAdmin && roleName != model.RoleUser {
		return nil, ErrInvalidRole
	}

	var view *model.UserView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.LockByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		role, err := s.roleRepo.GetByName(ctx, tx, roleName)
		if err != nil {
			if errors.Is(err, repository.ErrRoleNotFound) {
				return ErrInvalidRole
			}
			return err
		}
		if user.RoleID == role.ID {
			view, err = s.userRepo.GetView(ctx, tx, id)
			return err
		}
		if roleName != model.RoleAdmin {
			if err := s.ensureNotLastAdmin(ctx, tx, user); err != nil {
				return err
			}
		}
		if err := s.userRepo.Update(ctx, tx, id, map[string]interface{}{"role_id": role.ID}); err != nil {
			return fmt.Errorf("update role: %w", err)
		}

		view, err = s.userRepo.GetView(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": id, "role": roleName}).Info("user role changed")
	return view, nil
}

// Delete 管理员或本人；有积分流水的用户和最后一个管理员不能删除
func (s *UserService) Delete(ctx context.Context, actor Actor, id int64) error {
	if !actor.CanAccessUser(id) {
		return ErrForbidden
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.LockByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		if err := s.ensureNotLastAdmin(ctx, tx, user); err != nil {
			return err
		}

		refs, err := s.txRepo.CountByUserID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("count credit transactions: %w", err)
		}
		if refs > 0 {
			return ErrUserHasTransactions
		}

		if err := s.userRepo.Delete(ctx, tx, id); err != nil {
			return translateConstraint(err, nil, ErrUserHasTransactions)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}
