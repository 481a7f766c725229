package repository

import (
	"context"
	"time"

	"course-enrollment-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository interface {
	MarkCompleted(ctx context.Context, studentID, courseID, lessonID string, at time.Time) (*model.Progress, error)
	CountCompleted(ctx context.Context, studentID, courseID string) (int64, error)
	CompletedLessonIDs(ctx context.Context, studentID, courseID string) ([]string, error)
}

type progressRepoImpl struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepoImpl{
		db: db,
	}
}

// MarkCompleted is idempotent: the first completion time is kept.
func (r *progressRepoImpl) MarkCompleted(ctx context.Context, studentID, courseID, lessonID string, at time.Time) (*model.Progress, error) {
	db := r.db.WithContext(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "course_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"completed":    true,
			"completed_at": gorm.Expr("COALESCE(completed_at, ?)", at),
			"updated_at":   time.Now(),
		}),
	}).Create(&model.Progress{
		StudentID:   studentID,
		CourseID:    courseID,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: &at,
	}).Error
	if err != nil {
		return nil, err
	}

	var progress model.Progress
	err = db.Where("student_id = ? AND course_id = ? AND lesson_id = ?", studentID, courseID, lessonID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}

	return &progress, nil
}

// CountCompleted ignores progress rows whose lesson no longer belongs to the course.
func (r *progressRepoImpl) CountCompleted(ctx context.Context, studentID, courseID string) (int64, error) {
	var count int64
	err := r.completedQuery(ctx, studentID, courseID).Count(&count).Error
	return count, err
}

func (r *progressRepoImpl) CompletedLessonIDs(ctx context.Context, studentID, courseID string) ([]string, error) {
	var ids []string
	err := r.completedQuery(ctx, studentID, courseID).Pluck("progresses.lesson_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *progressRepoImpl) completedQuery(ctx context.Context, studentID, courseID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Progress{}).
		Joins("JOIN lessons ON lessons.id = progresses.lesson_id").
		Joins("JOIN sections ON sections.id = lessons.section_id AND sections.course_id = progresses.course_id").
		Where("progresses.student_id = ? AND progresses.course_id = ? AND progresses.completed = ?", studentID, courseID, true)
}
