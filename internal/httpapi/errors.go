package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
)

const msgInternal = "internal server error"

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps a service error to its HTTP status and response body.
// Anything outside the apperr taxonomy is a 500 with a generic message.
func statusFor(err error) (int, errorBody) {
	var (
		validation  *apperr.ValidationError
		reference   *apperr.ReferenceError
		forbidden   *apperr.ForbiddenError
		notFound    *apperr.NotFoundError
		unsupported *apperr.UnsupportedTypeError
		conflict    *apperr.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorBody{Error: validation.Message, Field: validation.Field}
	case errors.As(err, &reference):
		return http.StatusBadRequest, errorBody{Error: reference.Message, Field: reference.Field}
	case errors.Is(err, apperr.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		var authErr *apperr.AuthenticationError
		if errors.As(err, &authErr) {
			return http.StatusUnauthorized, errorBody{Error: authErr.Message}
		}
		return http.StatusUnauthorized, errorBody{Error: "authentication required"}
	case errors.As(err, &forbidden):
		return http.StatusForbidden, errorBody{Error: forbidden.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorBody{Error: notFound.Error()}
	case errors.As(err, &unsupported):
		return http.StatusConflict, errorBody{Error: unsupported.Error(), Field: "type"}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorBody{Error: conflict.Message}
	default:
		return http.StatusInternalServerError, errorBody{Error: msgInternal}
	}
}

// fail writes err as a JSON error response. Server errors are logged with
// their full chain; the client only sees msgInternal.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}
