package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-enrollment-service/internal/client"
	"course-enrollment-service/internal/config"
	"course-enrollment-service/internal/logger"
	"course-enrollment-service/internal/middleware"
	"course-enrollment-service/internal/model"
	"course-enrollment-service/internal/repository"
	"course-enrollment-service/internal/server"
	"course-enrollment-service/internal/service"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

const (
	devInstructorID = "dev-instructor"
	devStudentID    = "dev-student"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.New("enrollment", cfg.Log)

	db, err := client.InitDatabase(&cfg.Database)
	if err != nil {
		lg.Fatalf("init database: %v", err)
	}

	var gateway client.PaymentGateway
	if cfg.Razorpay.Stub {
		lg.Warn("using the in-memory payment gateway")
		gateway = client.NewStubGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)
	} else {
		gateway = client.NewRazorpayClient(&cfg.Razorpay)
	}

	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	enrollmentService := service.NewEnrollmentService(
		db,
		gateway,
		cfg.Razorpay.Currency,
		lg,
		courseRepo,
		enrollmentRepo,
		paymentRepo,
		webhookEventRepo,
	)
	progressService := service.NewProgressService(
		lg,
		courseRepo,
		lessonRepo,
		enrollmentRepo,
		progressRepo,
	)

	if cfg.Razorpay.Stub && !cfg.Environment.IsProduction() {
		seedDevelopment(lg, &cfg.Auth, courseRepo)
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(&cfg.Auth, lg, enrollmentService, progressService)

	lg.Infof("Starting HTTP server on %s", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	lg.Info("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("HTTP server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// seedDevelopment creates a demo course and logs tokens for trying the API locally.
func seedDevelopment(lg *log.Logger, auth *config.Auth, courseRepo repository.CourseRepository) {
	course, err := courseRepo.Seed(context.Background(), devInstructorID)
	if err != nil {
		lg.Errorf("seed demo course: %v", err)
		return
	}
	lg.Infof("demo course %s (%s) at price %s", course.ID, course.Title, course.Price.String())

	for _, actor := range []model.Actor{
		{ID: devStudentID, Role: model.RoleStudent},
		{ID: devInstructorID, Role: model.RoleInstructor},
	} {
		token, err := middleware.GenerateToken(auth, actor, 24*time.Hour)
		if err != nil {
			lg.Errorf("sign demo token: %v", err)
			return
		}
		lg.Infof("%s token: %s", actor.Role, token)
	}
}
