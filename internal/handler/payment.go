package handler

import (
	"io"
	"net/http"

	"course-enrollment-service/internal/dto"
	"course-enrollment-service/internal/service"

	"github.com/labstack/echo/v4"
)

const (
	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
)

type PaymentHandler struct {
	enrollmentService service.EnrollmentService
}

func NewPaymentHandler(enrollmentService service.EnrollmentService) *PaymentHandler {
	return &PaymentHandler{
		enrollmentService: enrollmentService,
	}
}

func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.PurchaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.enrollmentService.InitiatePurchase(c.Request().Context(), actor, req.CourseID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Verify is the checkout callback. It needs no session: the gateway
// signature is the only proof that is trusted.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req dto.ConfirmPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.enrollmentService.ConfirmPayment(c.Request().Context(), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	err = h.enrollmentService.HandleWebhook(
		c.Request().Context(),
		c.Request().Header.Get(headerWebhookSignature),
		c.Request().Header.Get(headerWebhookEventID),
		body,
	)
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
