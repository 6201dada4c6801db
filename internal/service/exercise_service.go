package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"fittrack/internal/infrastructure/media"
	"fittrack/internal/model"
	"fittrack/internal/repository"
	"fittrack/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MediaStore 上传文件的存取
type MediaStore interface {
	Save(kind media.Kind, fh *multipart.FileHeader) (*media.Stored, error)
	Remove(url string)
}

type ExerciseService struct {
	db           *gorm.DB
	exerciseRepo *repository.ExerciseRepository
	typeRepo     *repository.TypeRepository
	entryRepo    *repository.SessionExerciseRepository
	store        MediaStore
	log          *logrus.Entry
}

func NewExerciseService(db *gorm.DB, store MediaStore, log *logger.Logger) *ExerciseService {
	return &ExerciseService{
		db:           db,
		exerciseRepo: repository.NewExerciseRepository(db),
		typeRepo:     repository.NewExerciseTypeRepository(db),
		entryRepo:    repository.NewSessionExerciseRepository(db),
		store:        store,
		log:          log.Component("exercise"),
	}
}

// ExerciseInput multipart 表单：title、type_id 以及可选的 image / video 文件
type ExerciseInput struct {
	Title     *string
	SetTypeID bool
	TypeID    *int64
	Image     *multipart.FileHeader
	Video     *multipart.FileHeader
}

func (s *ExerciseService) List(ctx context.Context) ([]model.ExerciseView, error) {
	return s.exerciseRepo.ListViews(ctx)
}

func (s *ExerciseService) Get(ctx context.Context, id int64) (*model.ExerciseView, error) {
	view, err := s.exerciseRepo.GetView(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrExerciseNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return view, nil
}

// uploads 保存上传文件，任何一个失败时删除已保存的文件
func (s *ExerciseService) uploads(in *ExerciseInput) (img, vid *string, err error) {
	save := func(kind media.Kind, fh *multipart.FileHeader) (*string, error) {
		if fh == nil {
			return nil, nil
		}
		stored, err := s.store.Save(kind, fh)
		if err != nil {
			switch {
			case errors.Is(err, media.ErrUnsupportedMime):
				return nil, ErrUnsupportedMime
			case errors.Is(err, media.ErrTooLarge):
				return nil, ErrFileTooLarge
			default:
				return nil, fmt.Errorf("save %s: %w", kind, err)
			}
		}
		return &stored.URL, nil
	}

	if img, err = save(media.KindImage, in.Image); err != nil {
		return nil, nil, err
	}
	if vid, err = save(media.KindVideo, in.Video); err != nil {
		s.discard(img)
		return nil, nil, err
	}
	return img, vid, nil
}

func (s *ExerciseService) discard(urls ...*string) {
	for _, u := range urls {
		if u != nil {
			s.store.Remove(*u)
		}
	}
}

func (s *ExerciseService) checkType(ctx context.Context, tx *gorm.DB, typeID *int64) error {
	if typeID == nil {
		return nil
	}
	if _, err := s.typeRepo.GetByID(ctx, tx, *typeID); err != nil {
		if errors.Is(err, repository.ErrTypeNotFound) {
			return ErrInvalidTypeID
		}
		return fmt.Errorf("get exercise type: %w", err)
	}
	return nil
}

func (s *ExerciseService) Create(ctx context.Context, in *ExerciseInput) (*model.ExerciseView, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, ErrMissingTitle
	}

	img, vid, err := s.uploads(in)
	if err != nil {
		return nil, err
	}

	exercise := &model.Exercise{
		Title:    strings.TrimSpace(*in.Title),
		ImgURL:   img,
		VideoURL: vid,
		TypeID:   in.TypeID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkType(ctx, tx, in.TypeID); err != nil {
			return err
		}
		if err := s.exerciseRepo.Create(ctx, tx, exercise); err != nil {
			return fmt.Errorf("create exercise: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(img, vid)
		return nil, err
	}

	s.log.WithField("exercise_id", exercise.ID).Info("exercise created")
	return s.Get(ctx, exercise.ID)
}

// Update 部分更新；上传了新文件时替换旧地址，并在提交后删除旧的本地文件
func (s *ExerciseService) Update(ctx context.Context, id int64, in *ExerciseInput) (*model.ExerciseView, error) {
	fields := make(map[string]interface{})
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, ErrMissingTitle
		}
		fields["title"] = title
	}
	if in.SetTypeID {
		fields["type_id"] = in.TypeID
	}
	if len(fields) == 0 && in.Image == nil && in.Video == nil {
		return nil, ErrNoFields
	}

	img, vid, err := s.uploads(in)
	if err != nil {
		return nil, err
	}
	if img != nil {
		fields["img_url"] = *img
	}
	if vid != nil {
		fields["video_url"] = *vid
	}

	var existing *model.Exercise
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		existing, err = s.exerciseRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrExerciseNotFound) {
				return ErrExerciseNotFound
			}
			return err
		}
		if in.SetTypeID {
			if err := s.checkType(ctx, tx, in.TypeID); err != nil {
				return err
			}
		}
		if err := s.exerciseRepo.Update(ctx, tx, id, fields); err != nil {
			return fmt.Errorf("update exercise: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(img, vid)
		return nil, err
	}

	if img != nil {
		s.discard(existing.ImgURL)
	}
	if vid != nil {
		s.discard(existing.VideoURL)
	}
	return s.Get(ctx, id)
}

// Delete 被训练课引用的动作不允许删除；删除后清理本地媒体文件
func (s *ExerciseService) Delete(ctx context.Context, id int64) error {
	var existing *model.Exercise
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		existing, err = s.exerciseRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrExerciseNotFound) {
				return ErrExerciseNotFound
			}
			return err
		}
		refs, err := s.entryRepo.CountByExercise(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("count references: %w", err)
		}
		if refs > 0 {
			return ErrReferenced
		}
		if err := s.exerciseRepo.Delete(ctx, tx, id); err != nil {
			return translateConstraint(err, nil, ErrReferenced)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discard(existing.ImgURL, existing.VideoURL)
	s.log.WithField("exercise_id", id).Info("exercise deleted")
	return nil
}
