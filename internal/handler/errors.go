package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/service"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPaymentProvider):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to the client for err.  Processor and
// internal failures get a generic message; their detail is only logged.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusBadGateway:
		return "payment provider error, please try again"
	case http.StatusGatewayTimeout:
		return "payment provider timed out, please try again"
	case http.StatusInternalServerError:
		return "internal server error"
	}
	return err.Error()
}

// fail writes err as {key: message}.  Auth routes use "message", the
// checkout routes "error", matching what the storefront client reads.
func fail(c echo.Context, log *slog.Logger, err error, key string) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(c.Request().Context(), "request failed",
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Any("err", err))
	}
	return c.JSON(status, echo.Map{key: publicMessage(err, status)})
}
