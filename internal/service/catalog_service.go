package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fittrack/internal/model"
	"fittrack/internal/repository"

	"gorm.io/gorm"
)

// TypeService 动作类型与训练课类型的增删改查
type TypeService struct {
	db       *gorm.DB
	typeRepo *repository.TypeRepository
	// inUse 统计引用该类型的记录数
	inUse func(ctx context.Context, tx *gorm.DB, typeID int64) (int64, error)
}

func NewExerciseTypeService(db *gorm.DB) *TypeService {
	return &TypeService{
		db:       db,
		typeRepo: repository.NewExerciseTypeRepository(db),
		inUse:    repository.NewExerciseRepository(db).CountByType,
	}
}

func NewSessionTypeService(db *gorm.DB) *TypeService {
	return &TypeService{
		db:       db,
		typeRepo: repository.NewSessionTypeRepository(db),
		inUse:    repository.NewSessionRepository(db).CountByType,
	}
}

// TypeInput 创建或部分更新
type TypeInput struct {
	Name           *string
	SetDescription bool
	Description    *string
}

func (s *TypeService) List(ctx context.Context) ([]model.CatalogType, error) {
	return s.typeRepo.List(ctx)
}

func (s *TypeService) Get(ctx context.Context, id int64) (*model.CatalogType, error) {
	t, err := s.typeRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrTypeNotFound) {
			return nil, ErrTypeNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TypeService) Create(ctx context.Context, in *TypeInput) (*model.CatalogType, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, ErrMissingName
	}
	t := &model.CatalogType{
		Name:        strings.TrimSpace(*in.Name),
		Description: in.Description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.typeRepo.NameTaken(ctx, tx, t.Name, 0)
		if err != nil {
			return fmt.Errorf("check name: %w", err)
		}
		if taken {
			return ErrNameInUse
		}
		if err := s.typeRepo.Create(ctx, tx, t); err != nil {
			return translateConstraint(err, ErrNameInUse, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TypeService) Update(ctx context.Context, id int64, in *TypeInput) (*model.CatalogType, error) {
	fields := make(map[string]interface{})
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrMissingName
		}
		fields["name"] = name
	}
	if in.SetDescription {
		fields["description"] = in.Description
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	var updated *model.CatalogType
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.typeRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrTypeNotFound) {
				return ErrTypeNotFound
			}
			return err
		}
		if name, ok := fields["name"].(string); ok {
			taken, err := s.typeRepo.NameTaken(ctx, tx, name, id)
			if err != nil {
				return fmt.Errorf("check name: %w", err)
			}
			if taken {
				return ErrNameInUse
			}
		}
		if err := s.typeRepo.Update(ctx, tx, id, fields); err != nil {
			return translateConstraint(err, ErrNameInUse, nil)
		}

		var err error
		updated, err = s.typeRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 仍被引用的类型不允许删除
func (s *TypeService) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.typeRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrTypeNotFound) {
				return ErrTypeNotFound
			}
			return err
		}
		refs, err := s.inUse(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("count references: %w", err)
		}
		if refs > 0 {
			return ErrReferenced
		}
		if err := s.typeRepo.Delete(ctx, tx, id); err != nil {
			return translateConstraint(err, nil, ErrReferenced)
		}
		return nil
	})
}
