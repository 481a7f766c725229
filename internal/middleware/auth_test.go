package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"course-enrollment-service/internal/config"
	"course-enrollment-service/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authCfg = &config.Auth{JWTSecret: "test-secret", Issuer: "course-enrollment-service"}

func serve(t *testing.T, header string, mw ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, *model.Actor) {
	t.Helper()

	e := echo.New()
	var seen *model.Actor
	e.GET("/", func(c echo.Context) error {
		actor, ok := ActorFrom(c)
		if ok {
			seen = &actor
		}
		return c.NoContent(http.StatusNoContent)
	}, mw...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthMiddleware(t *testing.T) {
	student := model.Actor{ID: "student-1", Role: model.RoleStudent}
	valid, err := GenerateToken(authCfg, student, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(authCfg, student, -time.Minute)
	require.NoError(t, err)
	foreign, err := GenerateToken(&config.Auth{JWTSecret: "other", Issuer: authCfg.Issuer}, student, time.Hour)
	require.NoError(t, err)

	rec, actor := serve(t, "Bearer "+valid, AuthMiddleware(authCfg))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, actor)
	assert.Equal(t, student, *actor)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic " + valid,
		"expired":      "Bearer " + expired,
		"wrong secret": "Bearer " + foreign,
		"garbage":      "Bearer not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			rec, actor := serve(t, header, AuthMiddleware(authCfg))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, actor)
		})
	}
}

func TestRequireRole(t *testing.T) {
	token, err := GenerateToken(authCfg, model.Actor{ID: "instructor-1", Role: model.RoleInstructor}, time.Hour)
	require.NoError(t, err)

	rec, _ := serve(t, "Bearer "+token, AuthMiddleware(authCfg), RequireRole(model.RoleInstructor, model.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = serve(t, "Bearer "+token, AuthMiddleware(authCfg), RequireRole(model.RoleStudent))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = serve(t, "", RequireRole(model.RoleStudent))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
