package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID           string          `gorm:"primaryKey;size:36;not null" json:"id"`
	InstructorID string          `gorm:"size:36;index;not null" json:"instructor_id"`
	Title        string          `gorm:"size:255;not null" json:"title"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"` // major currency unit, 0 means free
	Status       CourseStatus    `gorm:"size:16;index;not null;default:draft" json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsFree reports whether enrolling needs no payment.
func (c *Course) IsFree() bool {
	return !c.Price.IsPositive()
}

type Section struct {
	ID        string `gorm:"primaryKey;size:36;not null" json:"id"`
	CourseID  string `gorm:"size:36;uniqueIndex:idx_section_course_order;not null" json:"course_id"`
	Title     string `gorm:"size:255;not null" json:"title"`
	Position  int    `gorm:"uniqueIndex:idx_section_course_order;not null" json:"order"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Lesson struct {
	ID        string `gorm:"primaryKey;size:36;not null" json:"id"`
	SectionID string `gorm:"size:36;uniqueIndex:idx_lesson_section_order;not null" json:"section_id"`
	Title     string `gorm:"size:255;not null" json:"title"`
	Position  int    `gorm:"uniqueIndex:idx_lesson_section_order;not null" json:"order"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Enrollment struct {
	ID         string           `gorm:"primaryKey;size:36;not null" json:"id"`
	CourseID   string           `gorm:"size:36;uniqueIndex:idx_enrollment_course_student;not null" json:"course_id"`
	StudentID  string           `gorm:"size:36;uniqueIndex:idx_enrollment_course_student;index;not null" json:"student_id"`
	Status     EnrollmentStatus `gorm:"size:16;index;not null" json:"status"`
	IsPaid     bool             `gorm:"not null;default:false" json:"is_paid"`
	EnrolledAt time.Time        `gorm:"not null" json:"enrolled_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type Payment struct {
	ID                string          `gorm:"primaryKey;size:36;not null" json:"id"`
	EnrollmentID      string          `gorm:"size:36;index;not null" json:"enrollment_id"`
	StudentID         string          `gorm:"size:36;index;not null" json:"student_id"`
	CourseID          string          `gorm:"size:36;index;not null" json:"course_id"`
	RazorpayOrderID   string          `gorm:"size:64;uniqueIndex;not null" json:"razorpay_order_id"`
	RazorpayPaymentID *string         `gorm:"size:64" json:"razorpay_payment_id,omitempty"` // set only on success
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`    // major currency unit
	Currency          string          `gorm:"size:8;not null" json:"currency"`
	Status            PaymentStatus   `gorm:"size:16;index;not null" json:"status"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Progress struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	StudentID   string     `gorm:"size:36;uniqueIndex:idx_progress_student_course_lesson;not null" json:"student_id"`
	CourseID    string     `gorm:"size:36;uniqueIndex:idx_progress_student_course_lesson;not null" json:"course_id"`
	LessonID    string     `gorm:"size:36;uniqueIndex:idx_progress_student_course_lesson;not null" json:"lesson_id"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
