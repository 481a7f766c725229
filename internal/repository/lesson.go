package repository

import (
	"context"

	"course-enrollment-service/internal/model"

	"gorm.io/gorm"
)

type LessonRepository interface {
	CreateSection(ctx context.Context, section *model.Section) error
	Create(ctx context.Context, lesson *model.Lesson) error
	FindByID(ctx context.Context, lessonID string) (*model.Lesson, error)
	FindCourseID(ctx context.Context, lessonID string) (string, error)
	CountByCourse(ctx context.Context, courseID string) (int64, error)
	ListIDsByCourse(ctx context.Context, courseID string) ([]string, error)
}

type lessonRepoImpl struct {
	db *gorm.DB
}

func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepoImpl{
		db: db,
	}
}

func (r *lessonRepoImpl) CreateSection(ctx context.Context, section *model.Section) error {
	if section.ID == "" {
		section.ID = newID()
	}
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *lessonRepoImpl) Create(ctx context.Context, lesson *model.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = newID()
	}
	return r.db.WithContext(ctx).Create(lesson).Error
}

func (r *lessonRepoImpl) FindByID(ctx context.Context, lessonID string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.db.WithContext(ctx).
		Where("id = ?", lessonID).
		First(&lesson).Error

	if err != nil {
		return nil, err
	}

	return &lesson, nil
}

func (r *lessonRepoImpl) FindCourseID(ctx context.Context, lessonID string) (string, error) {
	var courseIDs []string
	err := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Joins("JOIN sections ON sections.id = lessons.section_id").
		Where("lessons.id = ?", lessonID).
		Limit(1).
		Pluck("sections.course_id", &courseIDs).Error

	if err != nil {
		return "", err
	}
	if len(courseIDs) == 0 {
		return "", gorm.ErrRecordNotFound
	}

	return courseIDs[0], nil
}

func (r *lessonRepoImpl) CountByCourse(ctx context.Context, courseID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Joins("JOIN sections ON sections.id = lessons.section_id").
		Where("sections.course_id = ?", courseID).
		Count(&count).Error

	return count, err
}

func (r *lessonRepoImpl) ListIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Joins("JOIN sections ON sections.id = lessons.section_id").
		Where("sections.course_id = ?", courseID).
		Order("sections.position ASC, lessons.position ASC").
		Pluck("lessons.id", &ids).Error

	if err != nil {
		return nil, err
	}

	return ids, nil
}
