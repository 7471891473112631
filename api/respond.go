package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpupo63/blog-backend/errs"
	"github.com/rs/zerolog"
)

type Responder struct {
	logger zerolog.Logger
}

func NewResponder(logger zerolog.Logger) Responder {
	return Responder{logger}
}

func (r Responder) WriteJSON(w http.ResponseWriter, data any) {
	r.WriteJSONStatus(w, http.StatusOK, data)
}

// WriteJSONStatus marshals data before any header is written so a marshalling
// failure can still become a 500.
func (r Responder) WriteJSONStatus(w http.ResponseWriter, status int, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		r.logger.Error().Err(err).Msg("error marshaling response data")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonData); err != nil {
		r.logger.Error().Err(err).Msg("error writing response")
	}
}

func (r Responder) WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (r Responder) WriteError(w http.ResponseWriter, err error) {
	var apiErr *errs.ApiErr

	// For unexpected errors, log and return generic internal error
	if !errors.As(err, &apiErr) {
		r.logger.Error().Err(err).Msg("unexpected error")
		r.WriteJSONStatus(w, http.StatusInternalServerError, ErrorResponse{
			Error:  "Internal Server Error",
			Status: "error",
		})
		return
	}

	response := ErrorResponse{
		Error:   apiErr.Error(),
		Status:  "error",
		Field:   apiErr.Field,
		Details: apiErr.Details,
	}

	// Causes carry driver and parser messages; they stay in the log.
	if apiErr.StatusCode >= http.StatusInternalServerError {
		r.logger.Error().Str("cause", apiErr.GetFullError()).Msg(apiErr.Message())
		response.Error = apiErr.Message()
		response.Details = ""
	} else if apiErr.Cause != nil {
		r.logger.Debug().Str("cause", apiErr.GetFullError()).Int("status", apiErr.StatusCode).Msg(apiErr.Message())
	}

	if apiErr.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	r.WriteJSONStatus(w, apiErr.StatusCode, response)
}

// wrapDatabaseError wraps a database error with context information. Errors
// that already carry a status pass through.
func wrapDatabaseError(operation, entity string, cause error) error {
	var apiErr *errs.ApiErr
	if errors.As(cause, &apiErr) {
		return apiErr
	}
	return errs.NewDatabaseError(operation, entity, cause)
}
