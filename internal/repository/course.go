package repository

import (
	"context"

	"course-enrollment-service/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	FindByID(ctx context.Context, courseID string) (*model.Course, error)
	Seed(ctx context.Context, instructorID string) (*model.Course, error)
}

type courseRepoImpl struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepoImpl{
		db: db,
	}
}

func (r *courseRepoImpl) Create(ctx context.Context, course *model.Course) error {
	if course.ID == "" {
		course.ID = newID()
	}
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepoImpl) FindByID(ctx context.Context, courseID string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Where("id = ?", courseID).
		First(&course).Error

	if err != nil {
		return nil, err
	}

	return &course, nil
}

const (
	seedCourseID  = "00000000-0000-4000-8000-000000000001"
	seedSectionID = "00000000-0000-4000-8000-000000000011"
)

// Seed inserts a published demo course with one section of three lessons.
func (r *courseRepoImpl) Seed(ctx context.Context, instructorID string) (*model.Course, error) {
	course := &model.Course{
		ID:           seedCourseID,
		InstructorID: instructorID,
		Title:        "Go for Backend Engineers",
		Price:        decimal.NewFromInt(999),
		Status:       model.CourseStatusPublished,
	}
	section := &model.Section{ID: seedSectionID, CourseID: course.ID, Title: "Getting started", Position: 1}
	lessons := []model.Lesson{
		{ID: "00000000-0000-4000-8000-000000000101", SectionID: section.ID, Title: "Installing Go", Position: 1},
		{ID: "00000000-0000-4000-8000-000000000102", SectionID: section.ID, Title: "Modules", Position: 2},
		{ID: "00000000-0000-4000-8000-000000000103", SectionID: section.ID, Title: "Testing", Position: 3},
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(course).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(section).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lessons).Error
	})
	if err != nil {
		return nil, err
	}

	return course, nil
}
