package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lenderapp/lender/internal/model"
	"github.com/lenderapp/lender/internal/store"
)

// StatusCSRFMismatch is returned when the double-submit CSRF check fails.
const StatusCSRFMismatch = 419

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps domain errors to responses. Anything unrecognized is
// logged and reported as a 500 with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusUnprocessableEntity, validationResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrEmailTaken):
		jsonError(w, http.StatusConflict, "email already registered")
	default:
		requestLogger(r.Context()).Error("request failed", "action", action, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
