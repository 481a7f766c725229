package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"course-enrollment-service/internal/apperr"
	"course-enrollment-service/internal/client"
	"course-enrollment-service/internal/dto"
	"course-enrollment-service/internal/model"
	"course-enrollment-service/internal/repository"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

type EnrollmentService interface {
	Enroll(ctx context.Context, actor model.Actor, courseID string) (*model.Enrollment, error)
	InitiatePurchase(ctx context.Context, actor model.Actor, courseID string) (*dto.PurchaseResponse, error)
	ConfirmPayment(ctx context.Context, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error)
	HandleWebhook(ctx context.Context, signature, eventID string, body []byte) error
	ListMyEnrollments(ctx context.Context, actor model.Actor) ([]*model.Enrollment, error)
	ListCourseEnrollments(ctx context.Context, actor model.Actor, query *dto.ListEnrollmentsQuery) (*dto.EnrollmentPage, error)
	UpdateEnrollmentStatus(ctx context.Context, actor model.Actor, enrollmentID string, status model.EnrollmentStatus) (*model.Enrollment, error)
}

type enrollmentServiceImpl struct {
	db               *gorm.DB
	gateway          client.PaymentGateway
	currency         string
	logger           *log.Logger
	courseRepo       repository.CourseRepository
	enrollmentRepo   repository.EnrollmentRepository
	paymentRepo      repository.PaymentRepository
	webhookEventRepo repository.WebhookEventRepository
}

func NewEnrollmentService(
	db *gorm.DB,
	gateway client.PaymentGateway,
	currency string,
	logger *log.Logger,
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	paymentRepo repository.PaymentRepository,
	webhookEventRepo repository.WebhookEventRepository,
) EnrollmentService {
	return &enrollmentServiceImpl{
		db:               db,
		gateway:          gateway,
		currency:         currency,
		logger:           logger,
		courseRepo:       courseRepo,
		enrollmentRepo:   enrollmentRepo,
		paymentRepo:      paymentRepo,
		webhookEventRepo: webhookEventRepo,
	}
}

func (s *enrollmentServiceImpl) Enroll(ctx context.Context, actor model.Actor, courseID string) (*model.Enrollment, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can enroll in courses")
	}

	course, err := s.publishedCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	enrollment := &model.Enrollment{
		CourseID:  course.ID,
		StudentID: actor.ID,
		Status:    model.EnrollmentStatusPending,
		IsPaid:    false,
	}
	if course.IsFree() {
		enrollment.Status = model.EnrollmentStatusActive
		enrollment.IsPaid = true
	}

	err = s.enrollmentRepo.Create(ctx, nil, enrollment)
	if repository.IsDuplicate(err) {
		return nil, apperr.Conflict("you are already enrolled in this course")
	}
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	s.logger.Infof("enrollment %s created for course %s with status %s", enrollment.ID, course.ID, enrollment.Status)
	return enrollment, nil
}

// InitiatePurchase reuses the latest pending payment while its gateway order
// can still be paid for the current price. Otherwise it creates a new order
// and fails every older pending payment of the enrollment.
func (s *enrollmentServiceImpl) InitiatePurchase(ctx context.Context, actor model.Actor, courseID string) (*dto.PurchaseResponse, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can make payments")
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsFree() {
		return nil, apperr.Validation("this course is free, enroll directly")
	}
	if course.Status != model.CourseStatusPublished {
		return nil, apperr.Forbidden("course is not available for purchase")
	}

	enrollment, err := s.pendingEnrollment(ctx, course, actor.ID)
	if err != nil {
		return nil, err
	}

	amountMinor := toMinorUnits(course.Price)

	reused, order, err := s.reusablePayment(ctx, enrollment, course, amountMinor)
	if err != nil {
		return nil, err
	}
	if reused != nil {
		s.logger.Infof("reusing payment %s (order %s) for enrollment %s", reused.ID, order.ID, enrollment.ID)
		return s.purchaseResponse(order, enrollment, reused, true), nil
	}

	order, err = s.gateway.CreateOrder(ctx, &client.CreateOrderRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Receipt:     receiptFor(enrollment.ID, time.Now()),
		Notes: map[string]string{
			"courseId":     course.ID,
			"studentId":    actor.ID,
			"enrollmentId": enrollment.ID,
		},
	})
	if err != nil {
		s.logger.Warnf("gateway order creation failed for enrollment %s: %v", enrollment.ID, err)
		return nil, apperr.Gateway("could not create payment order, please retry", err)
	}

	payment := &model.Payment{
		EnrollmentID:    enrollment.ID,
		StudentID:       actor.ID,
		CourseID:        course.ID,
		RazorpayOrderID: order.ID,
		Amount:          course.Price,
		Currency:        order.Currency,
		Status:          model.PaymentStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		superseded, err := s.paymentRepo.SupersedePending(ctx, tx, enrollment.ID)
		if err != nil {
			return fmt.Errorf("supersede pending payments: %w", err)
		}
		if superseded > 0 {
			s.logger.Infof("superseded %d pending payment(s) of enrollment %s", superseded, enrollment.ID)
		}

		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("store payment in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("payment %s created with order %s for enrollment %s", payment.ID, order.ID, enrollment.ID)
	return s.purchaseResponse(order, enrollment, payment, false), nil
}

// pendingEnrollment returns the student's pending enrollment for the course,
// creating it on first purchase. Losing a creation race to a concurrent
// request falls back to the winner's record.
func (s *enrollmentServiceImpl) pendingEnrollment(ctx context.Context, course *model.Course, studentID string) (*model.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.FindByCourseAndStudent(ctx, course.ID, studentID)
	if err == nil {
		return enrollment, checkPurchasable(enrollment)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	enrollment = &model.Enrollment{
		CourseID:  course.ID,
		StudentID: studentID,
		Status:    model.EnrollmentStatusPending,
		IsPaid:    false,
	}
	err = s.enrollmentRepo.Create(ctx, nil, enrollment)
	if err == nil {
		return enrollment, nil
	}
	if !repository.IsDuplicate(err) {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	enrollment, err = s.enrollmentRepo.FindByCourseAndStudent(ctx, course.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("find enrollment after duplicate create: %w", err)
	}
	return enrollment, checkPurchasable(enrollment)
}

func checkPurchasable(enrollment *model.Enrollment) error {
	switch enrollment.Status {
	case model.EnrollmentStatusPending:
		return nil
	case model.EnrollmentStatusCancelled:
		return apperr.Conflict("this enrollment was cancelled")
	default:
		return apperr.Conflict("you are already enrolled in this course")
	}
}

func (s *enrollmentServiceImpl) reusablePayment(ctx context.Context, enrollment *model.Enrollment, course *model.Course, amountMinor int64) (*model.Payment, *client.GatewayOrder, error) {
	pending, err := s.paymentRepo.FindLatestPending(ctx, enrollment.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find pending payment: %w", err)
	}

	// price changed since the order was created
	if !pending.Amount.Equal(course.Price) {
		return nil, nil, nil
	}

	order, err := s.gateway.FetchOrder(ctx, pending.RazorpayOrderID)
	if errors.Is(err, client.ErrOrderNotFound) {
		s.logger.Warnf("order %s of payment %s is unknown to the gateway, superseding", pending.RazorpayOrderID, pending.ID)
		return nil, nil, nil
	}
	if err != nil {
		s.logger.Warnf("gateway order fetch failed for payment %s: %v", pending.ID, err)
		return nil, nil, apperr.Gateway("could not load payment order, please retry", err)
	}

	switch {
	case order.Status == client.OrderStatusPaid:
		return nil, nil, apperr.Conflict("payment for this course is already being confirmed")
	case order.Payable() && order.Amount == amountMinor:
		return pending, order, nil
	default:
		return nil, nil, nil
	}
}

func (s *enrollmentServiceImpl) purchaseResponse(order *client.GatewayOrder, enrollment *model.Enrollment, payment *model.Payment, reused bool) *dto.PurchaseResponse {
	return &dto.PurchaseResponse{
		OrderID:      order.ID,
		Amount:       order.Amount,
		Currency:     order.Currency,
		Key:          s.gateway.KeyID(),
		EnrollmentID: enrollment.ID,
		PaymentID:    payment.ID,
		Reused:       reused,
	}
}

// ConfirmPayment trusts only the signature, never the caller. It is safe to
// call repeatedly with the same callback.
func (s *enrollmentServiceImpl) ConfirmPayment(ctx context.Context, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error) {
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, apperr.Validation("missing payment confirmation details")
	}

	payment, err := s.paymentRepo.FindByOrderID(ctx, nil, req.RazorpayOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payment record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	if payment.Status == model.PaymentStatusSuccess {
		return confirmResponse(payment, true), nil
	}

	if !s.gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		if _, err := s.paymentRepo.MarkFailed(ctx, nil, payment.ID); err != nil {
			return nil, fmt.Errorf("mark payment failed: %w", err)
		}
		s.logger.Warnf("invalid signature for order %s, payment %s marked failed", req.RazorpayOrderID, payment.ID)
		return nil, apperr.InvalidSignature("invalid payment signature")
	}

	alreadySettled, err := s.settle(ctx, payment, req.RazorpayPaymentID)
	if err != nil {
		return nil, err
	}

	return confirmResponse(payment, alreadySettled), nil
}

func confirmResponse(payment *model.Payment, already bool) *dto.ConfirmPaymentResponse {
	return &dto.ConfirmPaymentResponse{
		EnrollmentID:    payment.EnrollmentID,
		PaymentID:       payment.ID,
		AlreadyVerified: already,
	}
}

// settle records the payment as successful and activates its enrollment in
// one transaction. alreadySettled is true when a concurrent caller won.
func (s *enrollmentServiceImpl) settle(ctx context.Context, payment *model.Payment, gatewayPaymentID string) (alreadySettled bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.paymentRepo.MarkSuccess(ctx, tx, payment.ID, gatewayPaymentID, time.Now())
		if errors.Is(err, repository.ErrStaleState) {
			alreadySettled = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark payment success: %w", err)
		}

		other, err := s.paymentRepo.HasOtherSuccess(ctx, tx, payment.EnrollmentID, payment.ID)
		if err != nil {
			return fmt.Errorf("check successful payments: %w", err)
		}
		if other {
			return apperr.Conflict("enrollment already has a successful payment")
		}

		_, err = s.enrollmentRepo.Activate(ctx, tx, payment.EnrollmentID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return apperr.NotFound("enrollment not found")
		case errors.Is(err, repository.ErrStaleState):
			return apperr.Conflict("enrollment is not awaiting payment")
		}
		return err
	})
	if err != nil {
		return false, err
	}

	if !alreadySettled {
		s.logger.Infof("payment %s verified, enrollment %s activated", payment.ID, payment.EnrollmentID)
	}
	return alreadySettled, nil
}

// HandleWebhook processes a server-to-server gateway notification.
// Events are acknowledged once handled, unknown orders included, so the
// gateway stops redelivering them.
func (s *enrollmentServiceImpl) HandleWebhook(ctx context.Context, signature, eventID string, body []byte) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return apperr.InvalidSignature("invalid webhook signature")
	}

	var event model.RazorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Validation("malformed webhook payload")
	}

	if eventID != "" {
		seen, err := s.webhookEventRepo.Exists(ctx, eventID)
		if err != nil {
			return fmt.Errorf("check webhook event: %w", err)
		}
		if seen {
			return nil
		}
	}

	if err := s.applyWebhookEvent(ctx, &event); err != nil {
		return err
	}

	if eventID != "" {
		if err := s.webhookEventRepo.MarkProcessed(ctx, eventID, event.Event); err != nil {
			return fmt.Errorf("mark webhook event processed: %w", err)
		}
	}
	return nil
}

func (s *enrollmentServiceImpl) applyWebhookEvent(ctx context.Context, event *model.RazorpayWebhookEvent) error {
	switch event.Event {
	case model.RazorpayEventPaymentCaptured, model.RazorpayEventOrderPaid, model.RazorpayEventPaymentFailed:
	default:
		return nil
	}

	orderID := event.OrderID()
	payment, err := s.paymentRepo.FindByOrderID(ctx, nil, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warnf("webhook %s for unknown order %q ignored", event.Event, orderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}

	if event.Event == model.RazorpayEventPaymentFailed {
		if _, err := s.paymentRepo.MarkFailed(ctx, nil, payment.ID); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		return nil
	}

	gatewayPaymentID := event.Payload.Payment.Entity.ID
	if payment.Status == model.PaymentStatusSuccess || gatewayPaymentID == "" {
		return nil
	}

	_, err = s.settle(ctx, payment, gatewayPaymentID)
	if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindNotFound) {
		// redelivery cannot fix these; needs manual follow-up
		s.logger.Errorf("webhook settlement of payment %s rejected: %v", payment.ID, err)
		return nil
	}
	return err
}

func (s *enrollmentServiceImpl) ListMyEnrollments(ctx context.Context, actor model.Actor) ([]*model.Enrollment, error) {
	if !actor.IsStudent() {
		return nil, apperr.Forbidden("only students can view enrollments")
	}

	enrollments, err := s.enrollmentRepo.ListByStudent(ctx, actor.ID, []model.EnrollmentStatus{
		model.EnrollmentStatusActive,
		model.EnrollmentStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

func (s *enrollmentServiceImpl) ListCourseEnrollments(ctx context.Context, actor model.Actor, query *dto.ListEnrollmentsQuery) (*dto.EnrollmentPage, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, apperr.Validation("invalid enrollment status")
	}

	course, err := s.loadCourse(ctx, query.CourseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != actor.ID {
		return nil, apperr.Forbidden("you are not allowed to view enrollments for this course")
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	enrollments, total, err := s.enrollmentRepo.ListByCourse(ctx, course.ID, query.Status, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}

	return &dto.EnrollmentPage{
		Enrollments: enrollments,
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *enrollmentServiceImpl) UpdateEnrollmentStatus(ctx context.Context, actor model.Actor, enrollmentID string, status model.EnrollmentStatus) (*model.Enrollment, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid enrollment status")
	}

	enrollment, err := s.enrollmentRepo.FindByID(ctx, nil, enrollmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("enrollment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	course, err := s.loadCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != actor.ID {
		return nil, apperr.Forbidden("you are not allowed to update this enrollment")
	}

	if !enrollment.Status.CanInstructorTransitionTo(status) {
		return nil, apperr.Conflict(fmt.Sprintf("cannot change enrollment status from %q to %q", enrollment.Status, status))
	}

	updated, err := s.enrollmentRepo.TransitionStatus(ctx, nil, enrollment.ID, enrollment.Status, status)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, apperr.Conflict("enrollment changed concurrently, reload and retry")
	}
	if err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}

	s.logger.Infof("enrollment %s moved from %s to %s by instructor %s", enrollment.ID, enrollment.Status, status, actor.ID)
	return updated, nil
}

func (s *enrollmentServiceImpl) loadCourse(ctx context.Context, courseID string) (*model.Course, error) {
	if courseID == "" {
		return nil, apperr.Validation("course id is required")
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("course not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find course: %w", err)
	}
	return course, nil
}

func (s *enrollmentServiceImpl) publishedCourse(ctx context.Context, courseID string) (*model.Course, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != model.CourseStatusPublished {
		return nil, apperr.Forbidden("course is not published")
	}
	return course, nil
}

// receiptFor builds a receipt id within the gateway's 40 character limit.
func receiptFor(enrollmentID string, now time.Time) string {
	id := strings.ReplaceAll(enrollmentID, "-", "")
	if len(id) > 10 {
		id = id[len(id)-10:]
	}
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return "enr_" + id + "_" + ts
}
