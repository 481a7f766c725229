package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"course-enrollment-service/internal/client"
	"course-enrollment-service/internal/config"
	"course-enrollment-service/internal/dto"
	"course-enrollment-service/internal/middleware"
	"course-enrollment-service/internal/model"
	"course-enrollment-service/internal/repository"
	"course-enrollment-service/internal/service"
	"course-enrollment-service/internal/testutil"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var authCfg = &config.Auth{JWTSecret: "test-secret", Issuer: "test"}

type apiFixture struct {
	db      *gorm.DB
	gateway *client.StubGateway
	srv     *Server
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	db := testutil.NewDB(t)
	lg := log.New("test")
	lg.SetOutput(io.Discard)
	gateway := client.NewStubGateway("rzp_test_key", "key-secret", "webhook-secret")

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	enrollments := service.NewEnrollmentService(db, gateway, "INR", lg,
		courseRepo, enrollmentRepo, repository.NewPaymentRepository(db), repository.NewWebhookEventRepository(db))
	progress := service.NewProgressService(lg,
		courseRepo, repository.NewLessonRepository(db), enrollmentRepo, repository.NewProgressRepository(db))

	return &apiFixture{db: db, gateway: gateway, srv: NewServer(authCfg, lg, enrollments, progress)}
}

func token(t *testing.T, id string, role model.Role) string {
	t.Helper()
	tok, err := middleware.GenerateToken(authCfg, model.Actor{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *apiFixture) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPurchaseFlow(t *testing.T) {
	api := newAPI(t)
	course := testutil.CreateCourse(t, api.db, "instructor-1", 999, model.CourseStatusPublished)
	testutil.CreateLessons(t, api.db, course.ID, 1)
	student := token(t, "student-1", model.RoleStudent)

	rec := api.do(t, http.MethodPost, "/api/payments/create-order", student, `{"course_id":"`+course.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var order dto.PurchaseResponse
	decode(t, rec, &order)
	assert.Equal(t, int64(99900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "rzp_test_key", order.Key)

	paymentID, signature, err := api.gateway.Pay(order.OrderID)
	require.NoError(t, err)

	tampered := signature[:len(signature)-1] + "0"
	if tampered == signature {
		tampered = signature[:len(signature)-1] + "1"
	}
	rec = api.do(t, http.MethodPost, "/api/payments/verify", "",
		`{"razorpay_order_id":"`+order.OrderID+`","razorpay_payment_id":"`+paymentID+`","razorpay_signature":"`+tampered+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_signature", errorKind(t, rec))

	verify := `{"razorpay_order_id":"` + order.OrderID + `","razorpay_payment_id":"` + paymentID + `","razorpay_signature":"` + signature + `"}`
	rec = api.do(t, http.MethodPost, "/api/payments/verify", "", verify)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var confirmed dto.ConfirmPaymentResponse
	decode(t, rec, &confirmed)
	assert.Equal(t, order.EnrollmentID, confirmed.EnrollmentID)
	assert.False(t, confirmed.AlreadyVerified)

	rec = api.do(t, http.MethodPost, "/api/payments/verify", "", verify)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &confirmed)
	assert.True(t, confirmed.AlreadyVerified)

	rec = api.do(t, http.MethodGet, "/api/enrollments/me", student, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Enrollments []model.Enrollment `json:"enrollments"`
	}
	decode(t, rec, &mine)
	require.Len(t, mine.Enrollments, 1)
	assert.Equal(t, model.EnrollmentStatusActive, mine.Enrollments[0].Status)

	rec = api.do(t, http.MethodGet, "/api/progress/course/"+course.ID, student, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var progress dto.CourseProgress
	decode(t, rec, &progress)
	assert.Equal(t, int64(1), progress.TotalLessons)
	assert.Zero(t, progress.ProgressPercentage)
}

func TestVerifyRecordsFailureForNonHexSignature(t *testing.T) {
	api := newAPI(t)
	course := testutil.CreateCourse(t, api.db, "instructor-1", 999, model.CourseStatusPublished)
	student := token(t, "student-1", model.RoleStudent)

	rec := api.do(t, http.MethodPost, "/api/payments/create-order", student, `{"course_id":"`+course.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var order dto.PurchaseResponse
	decode(t, rec, &order)

	paymentID, signature, err := api.gateway.Pay(order.OrderID)
	require.NoError(t, err)

	// flipping bit 0x40 turns c-f into '#', '$', '%' and '&'
	flipped := []byte(signature)
	for i, ch := range flipped {
		if ch >= 'c' && ch <= 'f' {
			flipped[i] ^= 0x40
			break
		}
	}
	require.NotEqual(t, signature, string(flipped))

	rec = api.do(t, http.MethodPost, "/api/payments/verify", "",
		`{"razorpay_order_id":"`+order.OrderID+`","razorpay_payment_id":"`+paymentID+`","razorpay_signature":"`+string(flipped)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "invalid_signature", errorKind(t, rec))

	var payment model.Payment
	require.NoError(t, api.db.Where("razorpay_order_id = ?", order.OrderID).First(&payment).Error)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
}

func TestProgressEndpoints(t *testing.T) {
	api := newAPI(t)
	course := testutil.CreateCourse(t, api.db, "instructor-1", 0, model.CourseStatusPublished)
	lessons := testutil.CreateLessons(t, api.db, course.ID, 2)
	student := token(t, "student-1", model.RoleStudent)

	rec := api.do(t, http.MethodPost, "/api/progress/complete", student, `{"lesson_id":"`+lessons[0].ID+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/enrollments", student, `{"course_id":"`+course.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, lesson := range lessons {
		rec = api.do(t, http.MethodPost, "/api/progress/complete", student, `{"lesson_id":"`+lesson.ID+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/api/progress/course/"+course.ID+"/lessons", student, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var completion struct {
		Lessons map[string]bool `json:"lessons"`
	}
	decode(t, rec, &completion)
	assert.Equal(t, map[string]bool{lessons[0].ID: true, lessons[1].ID: true}, completion.Lessons)

	rec = api.do(t, http.MethodGet, "/api/progress/course/"+course.ID, student, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var progress dto.CourseProgress
	decode(t, rec, &progress)
	assert.Equal(t, 100, progress.ProgressPercentage)
	assert.Equal(t, model.EnrollmentStatusCompleted, progress.EnrollmentStatus)
}

func TestInstructorEndpoints(t *testing.T) {
	api := newAPI(t)
	course := testutil.CreateCourse(t, api.db, "instructor-1", 999, model.CourseStatusPublished)
	enrollment := testutil.CreateEnrollment(t, api.db, course.ID, "student-1", model.EnrollmentStatusActive, true)
	owner := token(t, "instructor-1", model.RoleInstructor)

	rec := api.do(t, http.MethodGet, "/api/enrollments/course/"+course.ID+"?status=active&limit=5", owner, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page dto.EnrollmentPage
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 5, page.Limit)

	rec = api.do(t, http.MethodGet, "/api/enrollments/course/"+course.ID, token(t, "instructor-2", model.RoleInstructor), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/enrollments/"+enrollment.ID+"/status", owner, `{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorKind(t, rec))

	rec = api.do(t, http.MethodPatch, "/api/enrollments/"+enrollment.ID+"/status", owner, `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Enrollment
	decode(t, rec, &updated)
	assert.Equal(t, model.EnrollmentStatusCancelled, updated.Status)
}

func TestRequestRejections(t *testing.T) {
	api := newAPI(t)
	course := testutil.CreateCourse(t, api.db, "instructor-1", 999, model.CourseStatusPublished)
	student := token(t, "student-1", model.RoleStudent)
	instructor := token(t, "instructor-1", model.RoleInstructor)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		body   string
		code   int
		kind   string
	}{
		{"no token", http.MethodPost, "/api/payments/create-order", "", `{"course_id":"` + course.ID + `"}`, http.StatusUnauthorized, "unauthorized"},
		{"wrong role", http.MethodPost, "/api/payments/create-order", instructor, `{"course_id":"` + course.ID + `"}`, http.StatusForbidden, "forbidden"},
		{"missing course id", http.MethodPost, "/api/payments/create-order", student, `{}`, http.StatusBadRequest, "validation_error"},
		{"course id not a uuid", http.MethodPost, "/api/payments/create-order", student, `{"course_id":"abc"}`, http.StatusBadRequest, "validation_error"},
		{"malformed json", http.MethodPost, "/api/payments/create-order", student, `{"course_id":`, http.StatusBadRequest, "validation_error"},
		{"unknown course", http.MethodPost, "/api/payments/create-order", student, `{"course_id":"00000000-0000-4000-8000-00000000ffff"}`, http.StatusNotFound, "not_found"},
		{"verify missing fields", http.MethodPost, "/api/payments/verify", "", `{"razorpay_order_id":"order_1"}`, http.StatusBadRequest, "validation_error"},
		{"verify unknown order", http.MethodPost, "/api/payments/verify", "", `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"abcd"}`, http.StatusNotFound, "not_found"},
		{"webhook bad signature", http.MethodPost, "/api/payments/webhook", "", `{"event":"payment.captured"}`, http.StatusBadRequest, "invalid_signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.bearer, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, errorKind(t, rec))
		})
	}
}
