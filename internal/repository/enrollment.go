package repository

import (
	"context"
	"errors"
	"time"

	"course-enrollment-service/internal/model"

	"gorm.io/gorm"
)

type EnrollmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error
	FindByID(ctx context.Context, tx *gorm.DB, enrollmentID string) (*model.Enrollment, error)
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*model.Enrollment, error)
	Activate(ctx context.Context, tx *gorm.DB, enrollmentID string) (*model.Enrollment, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, enrollmentID string, from, to model.EnrollmentStatus) (*model.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string, statuses []model.EnrollmentStatus) ([]*model.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string, status model.EnrollmentStatus, offset, limit int) ([]*model.Enrollment, int64, error)
}

type enrollmentRepoImpl struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepoImpl{
		db: db,
	}
}

// Create fails with gorm.ErrDuplicatedKey when the student already has an
// enrollment for the course.
func (r *enrollmentRepoImpl) Create(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = newID()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now()
	}
	return conn(r.db, tx).WithContext(ctx).Create(enrollment).Error
}

func (r *enrollmentRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, enrollmentID string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := conn(r.db, tx).WithContext(ctx).
		Where("id = ?", enrollmentID).
		First(&enrollment).Error

	if err != nil {
		return nil, err
	}

	return &enrollment, nil
}

func (r *enrollmentRepoImpl) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		First(&enrollment).Error

	if err != nil {
		return nil, err
	}

	return &enrollment, nil
}

// Activate moves a pending enrollment to active and marks it paid.
func (r *enrollmentRepoImpl) Activate(ctx context.Context, tx *gorm.DB, enrollmentID string) (*model.Enrollment, error) {
	return r.transition(ctx, tx, enrollmentID, model.EnrollmentStatusPending, map[string]interface{}{
		"status":     model.EnrollmentStatusActive,
		"is_paid":    true,
		"updated_at": time.Now(),
	})
}

func (r *enrollmentRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, enrollmentID string, from, to model.EnrollmentStatus) (*model.Enrollment, error) {
	return r.transition(ctx, tx, enrollmentID, from, map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	})
}

// transition applies updates only while the enrollment is still in from.
// A missing enrollment yields gorm.ErrRecordNotFound, one in another state ErrStaleState.
func (r *enrollmentRepoImpl) transition(ctx context.Context, tx *gorm.DB, enrollmentID string, from model.EnrollmentStatus, updates map[string]interface{}) (*model.Enrollment, error) {
	db := conn(r.db, tx).WithContext(ctx)

	result := db.Model(&model.Enrollment{}).
		Where("id = ? AND status = ?", enrollmentID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}

	enrollment, err := r.FindByID(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return enrollment, ErrStaleState
	}

	return enrollment, nil
}

func (r *enrollmentRepoImpl) ListByStudent(ctx context.Context, studentID string, statuses []model.EnrollmentStatus) ([]*model.Enrollment, error) {
	var enrollments []*model.Enrollment
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	err := query.Order("created_at DESC").Find(&enrollments).Error
	if err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *enrollmentRepoImpl) ListByCourse(ctx context.Context, courseID string, status model.EnrollmentStatus, offset, limit int) ([]*model.Enrollment, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Enrollment{}).Where("course_id = ?", courseID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	// reused for both the count and the page
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var enrollments []*model.Enrollment
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, err
	}

	return enrollments, total, nil
}

func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
