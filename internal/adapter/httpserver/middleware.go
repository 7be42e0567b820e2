package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/platform/correlation"
	apperrors "github.com/shunguan/voteable/internal/platform/errors"
)

// correlationMiddleware keeps a well-formed inbound X-Request-ID and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromInbound(c.Request().Header.Get(correlation.Header))
		c.Response().Header().Set(correlation.Header, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) errorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := toAPIError(err)
			logError(c, structuredErr)
			s.httpMetrics.ObserveError(string(structuredErr.Type), structuredErr.Code)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// toAPIError maps domain and store errors onto response categories. Messages of
// domain errors are safe to return; anything else is reported as internal.
func toAPIError(err error) *apperrors.Error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidVote):
		return apperrors.ValidationError(err.Error()).WithCode("invalid_vote")
	case errors.Is(err, domain.ErrNotVoteable):
		return apperrors.ValidationError(err.Error()).WithCode("not_voteable")
	case errors.Is(err, domain.ErrVoteeNotFound):
		return apperrors.NotFoundError(err.Error()).WithCode("votee_not_found")
	case errors.Is(err, domain.ErrPreconditionFailed):
		return apperrors.ConflictError(err.Error()).WithCode("precondition_failed")
	case errors.Is(err, domain.ErrVoteeExists):
		return apperrors.ConflictError(err.Error()).WithCode("votee_exists")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.UnavailableError("store unavailable", err).WithCode("store_unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.UnavailableError("store timed out", err).WithCode("store_timeout")
	default:
		return apperrors.InternalError("internal server error", err)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"error_code", err.Code,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeRateLimited:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Request failed", attrs...)
	}
}
