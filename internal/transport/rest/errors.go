package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apiv1 "slotkeeper/backend/internal/api/v1"
	"slotkeeper/backend/internal/availability"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/appointments"
	"slotkeeper/backend/internal/store"
)

// httpError logs err and converts it to an *echo.HTTPError. notFound is the message
// used for store.ErrNotFound.
func httpError(log *slog.Logger, action, notFound string, err error, args ...any) error {
	var (
		vErr  *appointments.ValidationError
		sErr  *appointments.SlotUnavailableError
		stErr *appointments.InvalidStateError
		tErr  *domain.InvalidTransitionError
	)
	withErr := append(args, slog.Any("err", err))

	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", withErr...)
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	case errors.Is(err, availability.ErrInvalidDuration):
		log.Warn("invalid request", withErr...)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &sErr):
		log.Info(action+" slot unavailable", append(args, slog.String("reason", sErr.Reason))...)
		return echo.NewHTTPError(http.StatusConflict, sErr.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info(action+" conflict", args...)
		return echo.NewHTTPError(http.StatusConflict, (&appointments.SlotUnavailableError{}).Error())
	case errors.As(err, &tErr):
		log.Info(action+" rejected", append(args, slog.String("from", string(tErr.From)), slog.String("to", string(tErr.To)))...)
		return echo.NewHTTPError(http.StatusConflict, tErr.Error())
	case errors.As(err, &stErr):
		log.Info(action+" rejected", append(args, slog.String("status", string(stErr.Status)))...)
		return echo.NewHTTPError(http.StatusConflict, stErr.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(action+" idempotency conflict", args...)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "This request key was already used for a different appointment. Try again.")
	case errors.Is(err, appointments.ErrNoAvailability):
		log.Info(action+" found nothing", args...)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info(notFound, args...)
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrTransient):
		log.Warn(action+" transient failure", withErr...)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(action+" timed out", withErr...)
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	}
	log.Error(action+" failed", withErr...)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// errorHandler renders every error as apiv1.ErrorResponse.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else {
			log.Error("unhandled error", slog.Any("err", err), slog.String("path", c.Request().URL.Path))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, apiv1.ErrorResponse{Error: errorCode(code), Message: msg})
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "failed_precondition"
	case http.StatusUnprocessableEntity:
		return "idempotency_conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusGatewayTimeout:
		return "deadline_exceeded"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	}
	return "internal"
}
