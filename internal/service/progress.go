package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"course-enrollment-service/internal/apperr"
	"course-enrollment-service/internal/dto"
	"course-enrollment-service/internal/model"
	"course-enrollment-service/internal/repository"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"
)

type ProgressService interface {
	MarkLessonComplete(ctx context.Context, actor model.Actor, lessonID string) (*model.Progress, error)
	GetCourseProgress(ctx context.Context, actor model.Actor, courseID string) (*dto.CourseProgress, error)
	GetLessonCompletionMap(ctx context.Context, actor model.Actor, courseID string) (map[string]bool, error)
	TryPromoteToCompleted(ctx context.Context, studentID, courseID string) (bool, error)
}

type progressServiceImpl struct {
	logger         *log.Logger
	courseRepo     repository.CourseRepository
	lessonRepo     repository.LessonRepository
	enrollmentRepo repository.EnrollmentRepository
	progressRepo   repository.ProgressRepository
}

func NewProgressService(
	logger *log.Logger,
	courseRepo repository.CourseRepository,
	lessonRepo repository.LessonRepository,
	enrollmentRepo repository.EnrollmentRepository,
	progressRepo repository.ProgressRepository,
) ProgressService {
	return &progressServiceImpl{
		logger:         logger,
		courseRepo:     courseRepo,
		lessonRepo:     lessonRepo,
		enrollmentRepo: enrollmentRepo,
		progressRepo:   progressRepo,
	}
}

func (s *progressServiceImpl) MarkLessonComplete(ctx context.Context, actor model.Actor, lessonID string) (*model.Progress, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can track progress")
	}
	if lessonID == "" {
		return nil, apperr.Validation("lesson id is required")
	}

	courseID, err := s.lessonRepo.FindCourseID(ctx, lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("lesson not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find lesson course: %w", err)
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("course not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find course: %w", err)
	}
	if course.Status != model.CourseStatusPublished {
		return nil, apperr.Forbidden("course is not published")
	}

	enrollment, err := s.enrollmentRepo.FindByCourseAndStudent(ctx, courseID, actor.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbidden("you are not enrolled in this course")
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	if enrollment.Status != model.EnrollmentStatusActive {
		return nil, apperr.Forbidden("enrollment is not active")
	}

	progress, err := s.progressRepo.MarkCompleted(ctx, actor.ID, courseID, lessonID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	return progress, nil
}

// GetCourseProgress also promotes the enrollment to completed once every
// lesson is done, so readers never see 100% on an active enrollment.
func (s *progressServiceImpl) GetCourseProgress(ctx context.Context, actor model.Actor, courseID string) (*dto.CourseProgress, error) {
	enrollment, err := s.accessibleEnrollment(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	total, err := s.lessonRepo.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("count lessons: %w", err)
	}
	completed, err := s.progressRepo.CountCompleted(ctx, actor.ID, courseID)
	if err != nil {
		return nil, fmt.Errorf("count completed lessons: %w", err)
	}

	status := enrollment.Status
	if status == model.EnrollmentStatusActive && isComplete(total, completed) {
		promoted, err := s.TryPromoteToCompleted(ctx, actor.ID, courseID)
		if err != nil {
			return nil, err
		}
		if promoted {
			status = model.EnrollmentStatusCompleted
		}
	}

	return &dto.CourseProgress{
		CourseID:           courseID,
		TotalLessons:       total,
		CompletedLessons:   completed,
		ProgressPercentage: percentage(total, completed),
		EnrollmentStatus:   status,
	}, nil
}

func (s *progressServiceImpl) GetLessonCompletionMap(ctx context.Context, actor model.Actor, courseID string) (map[string]bool, error) {
	if _, err := s.accessibleEnrollment(ctx, actor, courseID); err != nil {
		return nil, err
	}

	lessonIDs, err := s.lessonRepo.ListIDsByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	completedIDs, err := s.progressRepo.CompletedLessonIDs(ctx, actor.ID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list completed lessons: %w", err)
	}

	completion := make(map[string]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		completion[id] = false
	}
	for _, id := range completedIDs {
		completion[id] = true
	}
	return completion, nil
}

// TryPromoteToCompleted moves an active enrollment to completed when all of
// the course's lessons are done. It reports whether this call made the change.
func (s *progressServiceImpl) TryPromoteToCompleted(ctx context.Context, studentID, courseID string) (bool, error) {
	enrollment, err := s.enrollmentRepo.FindByCourseAndStudent(ctx, courseID, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find enrollment: %w", err)
	}
	if enrollment.Status != model.EnrollmentStatusActive {
		return false, nil
	}

	total, err := s.lessonRepo.CountByCourse(ctx, courseID)
	if err != nil {
		return false, fmt.Errorf("count lessons: %w", err)
	}
	completed, err := s.progressRepo.CountCompleted(ctx, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("count completed lessons: %w", err)
	}
	if !isComplete(total, completed) {
		return false, nil
	}

	_, err = s.enrollmentRepo.TransitionStatus(ctx, nil, enrollment.ID, model.EnrollmentStatusActive, model.EnrollmentStatusCompleted)
	if errors.Is(err, repository.ErrStaleState) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete enrollment: %w", err)
	}

	s.logger.Infof("enrollment %s completed", enrollment.ID)
	return true, nil
}

func (s *progressServiceImpl) accessibleEnrollment(ctx context.Context, actor model.Actor, courseID string) (*model.Enrollment, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can view progress")
	}
	if courseID == "" {
		return nil, apperr.Validation("course id is required")
	}

	enrollment, err := s.enrollmentRepo.FindByCourseAndStudent(ctx, courseID, actor.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbidden("you are not enrolled in this course")
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	if !enrollment.Status.HasAccess() {
		return nil, apperr.Forbidden("enrollment is not active")
	}
	return enrollment, nil
}

// a course without lessons is never complete
func isComplete(total, completed int64) bool {
	return total > 0 && completed >= total
}

func percentage(total, completed int64) int {
	if total == 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}
