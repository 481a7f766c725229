package handler

import (
	"net/http"

	"course-enrollment-service/internal/dto"
	"course-enrollment-service/internal/service"

	"github.com/labstack/echo/v4"
)

type EnrollmentHandler struct {
	enrollmentService service.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollmentService: enrollmentService,
	}
}

func (h *EnrollmentHandler) Enroll(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.EnrollRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	enrollment, err := h.enrollmentService.Enroll(c.Request().Context(), actor, req.CourseID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, enrollment)
}

func (h *EnrollmentHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	enrollments, err := h.enrollmentService.ListMyEnrollments(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"enrollments": enrollments})
}

func (h *EnrollmentHandler) ListByCourse(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var query dto.ListEnrollmentsQuery
	if err := bindAndValidate(c, &query); err != nil {
		return err
	}

	page, err := h.enrollmentService.ListCourseEnrollments(c.Request().Context(), actor, &query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

func (h *EnrollmentHandler) UpdateStatus(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.UpdateEnrollmentStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	enrollment, err := h.enrollmentService.UpdateEnrollmentStatus(c.Request().Context(), actor, c.Param("enrollmentId"), req.Status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, enrollment)
}
