package model

type CourseStatus string

const (
	CourseStatusDraft       CourseStatus = "draft"
	CourseStatusPublished   CourseStatus = "published"
	CourseStatusUnpublished CourseStatus = "unpublished"
)

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// enrollmentTransitions is the full enrollment state machine.
// completed and cancelled are terminal.
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusPending:   {EnrollmentStatusActive, EnrollmentStatusCancelled},
	EnrollmentStatusActive:    {EnrollmentStatusCompleted, EnrollmentStatusCancelled},
	EnrollmentStatusCompleted: {},
	EnrollmentStatusCancelled: {},
}

func (s EnrollmentStatus) Valid() bool {
	_, ok := enrollmentTransitions[s]
	return ok
}

func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusCancelled
}

// HasAccess reports whether the student may consume course content.
func (s EnrollmentStatus) HasAccess() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCompleted
}

func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanInstructorTransitionTo restricts the state machine to the edges an
// instructor may drive by hand. pending->active belongs to payment
// confirmation and active->completed to progress tracking.
func (s EnrollmentStatus) CanInstructorTransitionTo(next EnrollmentStatus) bool {
	return next == EnrollmentStatusCancelled && s.CanTransitionTo(next)
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)
