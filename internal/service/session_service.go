package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fittrack/internal/model"
	"fittrack/internal/repository"
	"fittrack/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SessionService 训练课的读取与增删改
type SessionService struct {
	db          *gorm.DB
	sessionRepo *repository.SessionRepository
	entryRepo   *repository.SessionExerciseRepository
	typeRepo    *repository.TypeRepository
	log         *logrus.Entry
}

func NewSessionService(db *gorm.DB, log *logger.Logger) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: repository.NewSessionRepository(db),
		entryRepo:   repository.NewSessionExerciseRepository(db),
		typeRepo:    repository.NewSessionTypeRepository(db),
		log:         log.Component("session"),
	}
}

// Get 训练课详情，条目按 (order_index, id) 排序
// 两次查询放在同一事务里，读到的是同一个提交点
func (s *SessionService) Get(ctx context.Context, id int64) (*model.SessionDetail, error) {
	var detail *model.SessionDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		detail, err = s.detail(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *SessionService) detail(ctx context.Context, tx *gorm.DB, id int64) (*model.SessionDetail, error) {
	view, err := s.sessionRepo.GetView(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	entries, err := s.entryRepo.ListViews(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return &model.SessionDetail{SessionView: *view, Exercises: entries}, nil
}

// List 训练课列表，最新的在前
func (s *SessionService) List(ctx context.Context) ([]model.SessionView, error) {
	views, err := s.sessionRepo.ListViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return views, nil
}

// ListWithExercises 一次批量查询取出所有训练课的条目
func (s *SessionService) ListWithExercises(ctx context.Context) ([]model.SessionDetail, error) {
	views, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	entries, err := s.entryRepo.ListViews(ctx, nil, ids...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	bySession := make(map[int64][]model.SessionExerciseView, len(views))
	for _, e := range entries {
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
	}

	details := make([]model.SessionDetail, len(views))
	for i, v := range views {
		exercises := bySession[v.ID]
		if exercises == nil {
			exercises = []model.SessionExerciseView{}
		}
		details[i] = model.SessionDetail{SessionView: v, Exercises: exercises}
	}
	return details, nil
}

// SessionInput 创建或部分更新训练课，Set* 标记字段是否出现在请求中
type SessionInput struct {
	Title       *string
	SetNotes    bool
	Notes       *string
	SetTypeID   bool
	TypeID      *int64
	SetRestTime bool
	RestTime    *int
}

func (s *SessionService) checkType(ctx context.Context, tx *gorm.DB, typeID *int64) error {
	if typeID == nil {
		return nil
	}
	if *typeID <= 0 {
		return ErrInvalidTypeID
	}
	if _, err := s.typeRepo.GetByID(ctx, tx, *typeID); err != nil {
		if errors.Is(err, repository.ErrTypeNotFound) {
			return ErrInvalidTypeID
		}
		return fmt.Errorf("get session type: %w", err)
	}
	return nil
}

func (s *SessionService) Create(ctx context.Context, in *SessionInput) (*model.SessionDetail, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, ErrMissingTitle
	}
	if in.RestTime != nil && *in.RestTime < 0 {
		return nil, ErrInvalidRestTime
	}

	var detail *model.SessionDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkType(ctx, tx, in.TypeID); err != nil {
			return err
		}
		session := &model.Session{
			Title:    strings.TrimSpace(*in.Title),
			Notes:    in.Notes,
			TypeID:   in.TypeID,
			RestTime: in.RestTime,
		}
		if err := s.sessionRepo.Create(ctx, tx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		var err error
		detail, err = s.detail(ctx, tx, session.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("session_id", detail.ID).Info("session created")
	return detail, nil
}

func (s *SessionService) Update(ctx context.Context, id int64, in *SessionInput) (*model.SessionDetail, error) {
	fields := make(map[string]interface{})
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, ErrMissingTitle
		}
		fields["title"] = title
	}
	if in.SetNotes {
		fields["notes"] = in.Notes
	}
	if in.SetTypeID {
		fields["type_id"] = in.TypeID
	}
	if in.SetRestTime {
		if in.RestTime != nil && *in.RestTime < 0 {
			return nil, ErrInvalidRestTime
		}
		fields["rest_time"] = in.RestTime
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	var detail *model.SessionDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.sessionRepo.LockByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}
		if in.SetTypeID {
			if err := s.checkType(ctx, tx, in.TypeID); err != nil {
				return err
			}
		}
		if err := s.sessionRepo.Update(ctx, tx, id, fields); err != nil {
			return fmt.Errorf("update session: %w", err)
		}

		var err error
		detail, err = s.detail(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Delete 删除训练课及其全部条目
func (s *SessionService) Delete(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.sessionRepo.LockByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}
		if err := s.entryRepo.DeleteBySession(ctx, tx, id); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		if err := s.sessionRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("session_id", id).Info("session deleted")
	return nil
}
