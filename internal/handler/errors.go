package handler

import (
	"errors"
	"net/http"

	"course-enrollment-service/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindNotFound:         http.StatusNotFound,
	apperr.KindForbidden:        http.StatusForbidden,
	apperr.KindConflict:         http.StatusConflict,
	apperr.KindInvalidSignature: http.StatusBadRequest,
	apperr.KindGateway:          http.StatusBadGateway,
}

// ErrorHandler renders every failure as {"error": kind, "message": text}.
// Internal errors never leak their cause to the client.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	kind := apperr.KindInternal.String()
	var message interface{} = http.StatusText(http.StatusInternalServerError)

	var (
		appErr   *apperr.Error
		httpErr  *echo.HTTPError
		fieldErr validator.ValidationErrors
	)
	switch {
	case errors.As(err, &appErr):
		if status, ok := statusByKind[appErr.Kind]; ok {
			code = status
			kind = appErr.Kind.String()
			message = appErr.Message
		}
	case errors.As(err, &fieldErr):
		fields := make(map[string]string, len(fieldErr))
		for _, fe := range fieldErr {
			fields[fe.Field()] = fe.Tag()
		}
		code = http.StatusBadRequest
		kind = apperr.KindValidation.String()
		message = fields
	case errors.As(err, &httpErr):
		code = httpErr.Code
		message = httpErr.Message
		switch {
		case code == http.StatusUnauthorized:
			kind = "unauthorized"
		case code == http.StatusForbidden:
			kind = apperr.KindForbidden.String()
		case code == http.StatusNotFound:
			kind = apperr.KindNotFound.String()
		case code < http.StatusInternalServerError:
			kind = apperr.KindValidation.String()
		}
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, echo.Map{"error": kind, "message": message})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
