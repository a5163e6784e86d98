package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/api/models"
	"github.com/megabin/megabin/internal/api/response"
	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
)

// writeRunError maps a daily route error onto a Problem response.
func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var validation *optimization.ValidationError
	switch {
	case errors.As(err, &validation):
		response.BadRequest(w, r, "invalid optimization input", fieldErrors(validation))
	case errors.Is(err, optimization.ErrValidation):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, dailyroute.ErrProgressRecorded):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, optimization.ErrNoCapacity):
		response.NoCapacity(w, r, err.Error())
	case errors.Is(err, optimization.ErrConfiguration):
		logger.Error().Err(err).Msg("daily route configuration error")
		response.ConfigurationError(w, r, err.Error())
	case errors.Is(err, optimization.ErrSolver), errors.Is(err, optimization.ErrDataIntegrity):
		logger.Error().Err(err).Str("outcome", dailyroute.Outcome(err)).Msg("route solver failed")
		response.BadGateway(w, r, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logger.Warn().Err(err).Msg("daily route request cancelled")
		response.GatewayTimeout(w, r, "the request did not complete in time")
	default:
		logger.Error().Err(err).Msg("daily route request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func fieldErrors(err *optimization.ValidationError) []models.FieldError {
	out := make([]models.FieldError, 0, len(err.Violations))
	for _, v := range err.Violations {
		out = append(out, models.FieldError{Field: v.Field, Message: v.Message, Code: "invalid"})
	}
	return out
}
