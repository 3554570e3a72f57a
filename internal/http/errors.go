package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/dashboard"
	"github.com/kjstillabower/rent-lookup-service/internal/listing"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/validation"
)

// Error codes of the JSON error envelope.
const (
	CodeInvalidSearch        = "INVALID_SEARCH"
	CodeNeighborhoodNotFound = "NEIGHBORHOOD_NOT_FOUND"
	CodeNoSelection          = "NO_SELECTION"
	CodeInvalidOption        = "INVALID_OPTION"
	CodeInvalidCoordinates   = "INVALID_COORDINATES"
	CodeInvalidBody          = "INVALID_BODY"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL"
)

// msgSearchEmpty is shown when the search box is submitted blank.
const msgSearchEmpty = "Please enter a neighborhood name"

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError writes the standard error envelope with the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: observability.CorrelationIDFromContext(r.Context()),
	}})
}

// writeDomainError maps controller and validation errors to status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrSearchEmpty):
		writeError(w, r, http.StatusBadRequest, CodeInvalidSearch, msgSearchEmpty)
	case errors.Is(err, validation.ErrSearchTooLong):
		writeError(w, r, http.StatusBadRequest, CodeInvalidSearch, err.Error())
	case errors.Is(err, listing.ErrNeighborhoodNotFound):
		writeError(w, r, http.StatusNotFound, CodeNeighborhoodNotFound, err.Error())
	case errors.Is(err, dashboard.ErrNoSelection):
		writeError(w, r, http.StatusConflict, CodeNoSelection, "Search for a neighborhood first")
	case errors.Is(err, dashboard.ErrInvalidOption):
		writeError(w, r, http.StatusBadRequest, CodeInvalidOption, err.Error())
	case errors.Is(err, validation.ErrInvalidCoordinates):
		writeError(w, r, http.StatusBadRequest, CodeInvalidCoordinates, err.Error())
	default:
		observability.LoggerFromContext(r.Context()).Error("unhandled error", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "Internal error")
	}
}
