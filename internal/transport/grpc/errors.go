package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"slotkeeper/backend/internal/availability"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/appointments"
	"slotkeeper/backend/internal/store"
)

const idempotencyConflictMessage = "This request key was already used for a different appointment. Try again."

// statusError logs err at a level matching its class and converts it to a gRPC status.
// notFound is the client-facing message for store.ErrNotFound.
func statusError(log *slog.Logger, action, notFound string, err error, args ...any) error {
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
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, availability.ErrInvalidDuration):
		log.Warn("invalid request", withErr...)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &sErr):
		log.Info(action+" slot unavailable", append(args, slog.String("reason", sErr.Reason))...)
		return status.Error(codes.FailedPrecondition, sErr.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info(action+" conflict", args...)
		return status.Error(codes.FailedPrecondition, (&appointments.SlotUnavailableError{}).Error())
	case errors.As(err, &tErr):
		log.Info(action+" rejected", append(args, slog.String("from", string(tErr.From)), slog.String("to", string(tErr.To)))...)
		return status.Error(codes.FailedPrecondition, tErr.Error())
	case errors.As(err, &stErr):
		log.Info(action+" rejected", append(args, slog.String("status", string(stErr.Status)))...)
		return status.Error(codes.FailedPrecondition, stErr.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(action+" idempotency conflict", args...)
		return status.Error(codes.FailedPrecondition, idempotencyConflictMessage)
	case errors.Is(err, appointments.ErrNoAvailability):
		log.Info(action+" found nothing", args...)
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info(notFound, args...)
		return status.Error(codes.NotFound, notFound)
	case errors.Is(err, store.ErrTransient):
		log.Warn(action+" transient failure", withErr...)
		return status.Error(codes.Unavailable, "temporarily unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(action+" timed out", withErr...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}
	log.Error(action+" failed", withErr...)
	return status.Error(codes.Internal, "internal error")
}
