package dto

import "course-enrollment-service/internal/model"

type EnrollRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

type PurchaseRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

// PurchaseResponse carries what the browser needs to open the gateway checkout.
type PurchaseResponse struct {
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"` // minor currency unit
	Currency     string `json:"currency"`
	Key          string `json:"key"`
	EnrollmentID string `json:"enrollment_id"`
	PaymentID    string `json:"payment_id"`
	Reused       bool   `json:"reused"`
}

type ConfirmPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

type ConfirmPaymentResponse struct {
	EnrollmentID    string `json:"enrollment_id"`
	PaymentID       string `json:"payment_id"`
	AlreadyVerified bool   `json:"already_verified"`
}

type ListEnrollmentsQuery struct {
	CourseID string                 `param:"courseId" validate:"required"`
	Status   model.EnrollmentStatus `query:"status"`
	Page     int                    `query:"page"`
	Limit    int                    `query:"limit"`
}

type EnrollmentPage struct {
	Enrollments []*model.Enrollment `json:"enrollments"`
	Total       int64               `json:"total"`
	Page        int                 `json:"page"`
	Limit       int                 `json:"limit"`
	TotalPages  int                 `json:"total_pages"`
}

type UpdateEnrollmentStatusRequest struct {
	Status model.EnrollmentStatus `json:"status" validate:"required"`
}

type MarkLessonCompleteRequest struct {
	LessonID string `json:"lesson_id" validate:"required"`
}

type CourseProgress struct {
	CourseID           string                 `json:"course_id"`
	TotalLessons       int64                  `json:"total_lessons"`
	CompletedLessons   int64                  `json:"completed_lessons"`
	ProgressPercentage int                    `json:"progress_percentage"`
	EnrollmentStatus   model.EnrollmentStatus `json:"enrollment_status"`
}
