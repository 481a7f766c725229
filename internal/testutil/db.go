// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"course-enrollment-service/internal/client"
	"course-enrollment-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// the in-memory database lives as long as one connection stays open
	sqlDB.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, client.Migrate(db))
	return db
}

func CreateCourse(t *testing.T, db *gorm.DB, instructorID string, price int64, status model.CourseStatus) *model.Course {
	t.Helper()

	course := &model.Course{
		ID:           uuid.NewString(),
		InstructorID: instructorID,
		Title:        "Course " + uuid.NewString()[:6],
		Price:        decimal.NewFromInt(price),
		Status:       status,
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

// CreateLessons adds one section holding n lessons to the course.
func CreateLessons(t *testing.T, db *gorm.DB, courseID string, n int) []*model.Lesson {
	t.Helper()

	var position int64
	require.NoError(t, db.Model(&model.Section{}).Where("course_id = ?", courseID).Count(&position).Error)

	section := &model.Section{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Title:    "Section",
		Position: int(position) + 1,
	}
	require.NoError(t, db.Create(section).Error)

	lessons := make([]*model.Lesson, n)
	for i := range lessons {
		lessons[i] = &model.Lesson{
			ID:        uuid.NewString(),
			SectionID: section.ID,
			Title:     fmt.Sprintf("Lesson %d", i+1),
			Position:  i + 1,
		}
		require.NoError(t, db.Create(lessons[i]).Error)
	}
	return lessons
}

func CreateEnrollment(t *testing.T, db *gorm.DB, courseID, studentID string, status model.EnrollmentStatus, paid bool) *model.Enrollment {
	t.Helper()

	enrollment := &model.Enrollment{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		StudentID: studentID,
		Status:    status,
		IsPaid:    paid,
	}
	require.NoError(t, db.Create(enrollment).Error)
	return enrollment
}
