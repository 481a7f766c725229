package handler

import (
	"net/http"

	"course-enrollment-service/internal/dto"
	"course-enrollment-service/internal/service"

	"github.com/labstack/echo/v4"
)

type ProgressHandler struct {
	progressService service.ProgressService
}

func NewProgressHandler(progressService service.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
	}
}

func (h *ProgressHandler) CompleteLesson(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.MarkLessonCompleteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	progress, err := h.progressService.MarkLessonComplete(c.Request().Context(), actor, req.LessonID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, progress)
}

func (h *ProgressHandler) CourseProgress(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	progress, err := h.progressService.GetCourseProgress(c.Request().Context(), actor, c.Param("courseId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, progress)
}

func (h *ProgressHandler) LessonCompletion(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	completion, err := h.progressService.GetLessonCompletionMap(c.Request().Context(), actor, c.Param("courseId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"course_id": c.Param("courseId"), "lessons": completion})
}
