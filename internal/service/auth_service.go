package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fittrack/internal/model"
	"fittrack/internal/repository"
	"fittrack/pkg/logger"
	"fittrack/pkg/password"
	"fittrack/pkg/token"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthService 注册、登录和令牌校验
type AuthService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	roleRepo *repository.RoleRepository
	hasher   *password.Hasher
	tokens   *token.Manager
	log      *logrus.Entry
}

func NewAuthService(db *gorm.DB, hasher *password.Hasher, tokens *token.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		db:       db,
		userRepo: repository.NewUserRepository(db),
		roleRepo: repository.NewRoleRepository(db),
		hasher:   hasher,
		tokens:   tokens,
		log:      log.Component("auth"),
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     *string
}

// LoginResult 登录结果
type LoginResult struct {
	Token string          `json:"token"`
	User  *model.UserView `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 注册普通用户
func (s *AuthService) Register(ctx context.Context, in *RegisterInput) (*model.UserView, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var view *model.UserView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.userRepo.EmailTaken(ctx, tx, email, 0)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return ErrEmailInUse
		}

		role, err := s.roleRepo.GetByName(ctx, tx, model.RoleUser)
		if err != nil {
			return fmt.Errorf("get default role: %w", err)
		}

		user := &model.User{
			Email:        email,
			PasswordHash: hashed,
			Name:         in.Name,
			RoleID:       role.ID,
		}
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return translateConstraint(err, ErrEmailInUse, nil)
		}

		view, err = s.userRepo.GetView(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", view.ID).Info("user registered")
	return view, nil
}

// Login 校验密码并签发令牌，用户不存在与密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, email, plain string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || plain == "" {
		return nil, ErrMissingFields
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, plain) {
		return nil, ErrInvalidCredentials
	}

	view, err := s.userRepo.GetView(ctx, nil, user.ID)
	if err != nil {
		return nil, err
	}
	signed, err := s.tokens.Issue(view.ID, view.Email, view.RoleID, view.RoleName)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: signed, User: view}, nil
}

// Authenticate 解析 Bearer 令牌得到调用方
func (s *AuthService) Authenticate(raw string) (*Actor, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return &Actor{UserID: id, Role: claims.RoleName}, nil
}
