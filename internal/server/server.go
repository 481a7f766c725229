package server

import (
	"context"
	"net/http"

	"course-enrollment-service/internal/config"
	"course-enrollment-service/internal/handler"
	authmw "course-enrollment-service/internal/middleware"
	"course-enrollment-service/internal/model"
	"course-enrollment-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

type Server struct {
	echo              *echo.Echo
	auth              *config.Auth
	enrollmentHandler *handler.EnrollmentHandler
	paymentHandler    *handler.PaymentHandler
	progressHandler   *handler.ProgressHandler
}

func NewServer(auth *config.Auth, logger *log.Logger, enrollmentService service.EnrollmentService, progressService service.ProgressService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:              e,
		auth:              auth,
		enrollmentHandler: handler.NewEnrollmentHandler(enrollmentService),
		paymentHandler:    handler.NewPaymentHandler(enrollmentService),
		progressHandler:   handler.NewProgressHandler(progressService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authenticated := authmw.AuthMiddleware(s.auth)
	studentOnly := authmw.RequireRole(model.RoleStudent)
	instructorOnly := authmw.RequireRole(model.RoleInstructor)

	// -------- enrollments --------
	enrollments := api.Group("/enrollments", authenticated)
	enrollments.POST("", s.enrollmentHandler.Enroll, studentOnly)
	enrollments.GET("/me", s.enrollmentHandler.ListMine, studentOnly)
	enrollments.GET("/course/:courseId", s.enrollmentHandler.ListByCourse, instructorOnly)
	enrollments.PATCH("/:enrollmentId/status", s.enrollmentHandler.UpdateStatus, instructorOnly)

	// -------- payments --------
	payments := api.Group("/payments")
	payments.POST("/create-order", s.paymentHandler.CreateOrder, authenticated, studentOnly)

	// -------- gateway callbacks --------
	payments.POST("/verify", s.paymentHandler.Verify)
	payments.POST("/webhook", s.paymentHandler.Webhook)

	// -------- progress --------
	progress := api.Group("/progress", authenticated, studentOnly)
	progress.POST("/complete", s.progressHandler.CompleteLesson)
	progress.GET("/course/:courseId", s.progressHandler.CourseProgress)
	progress.GET("/course/:courseId/lessons", s.progressHandler.LessonCompletion)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
