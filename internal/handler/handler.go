package handler

import (
	"net/http"

	"course-enrollment-service/internal/middleware"
	"course-enrollment-service/internal/model"

	"github.com/labstack/echo/v4"
)

func actorFrom(c echo.Context) (model.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return actor, nil
}

// bindAndValidate decodes the request into req and checks its validate tags.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	return c.Validate(req)
}
