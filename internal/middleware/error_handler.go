package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stagefront/seatpack-sync/internal/dto"
)

// ErrorHandler renders every handler error as a dto.ErrorResponse so the
// status surface never leaks echo's default HTML error page.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	_ = c.JSON(code, dto.ErrorResponse{Message: msg})
}
