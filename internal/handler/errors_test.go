package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"course-enrollment-service/internal/apperr"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	type fieldsBody struct {
		CourseID string `validate:"required"`
	}
	validationErr := NewRequestValidator().Validate(&fieldsBody{})
	require.Error(t, validationErr)

	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"validation", apperr.Validation("bad input"), http.StatusBadRequest, "validation_error"},
		{"not found", apperr.NotFound("missing"), http.StatusNotFound, "not_found"},
		{"forbidden", apperr.Forbidden("nope"), http.StatusForbidden, "forbidden"},
		{"conflict", apperr.Conflict("taken"), http.StatusConflict, "conflict"},
		{"invalid signature", apperr.InvalidSignature("forged"), http.StatusBadRequest, "invalid_signature"},
		{"gateway", apperr.Gateway("upstream down", fmt.Errorf("timeout")), http.StatusBadGateway, "gateway_error"},
		{"wrapped", fmt.Errorf("confirm: %w", apperr.Conflict("taken")), http.StatusConflict, "conflict"},
		{"struct validation", validationErr, http.StatusBadRequest, "validation_error"},
		{"echo unauthorized", echo.NewHTTPError(http.StatusUnauthorized, "no token"), http.StatusUnauthorized, "unauthorized"},
		{"internal", fmt.Errorf("db is on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body["error"])
			assert.NotContains(t, rec.Body.String(), "db is on fire")
		})
	}
}
