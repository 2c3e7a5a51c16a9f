package handlers

import (
	"encoding/json"
	"net/http"

	"instafeed/internal/apperr"
	"instafeed/internal/service"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// WriteError writes a JSON error body with the given status.
func WriteError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func writeSuccess(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsAuth(err), apperr.IsNotAuthenticated(err):
		return http.StatusUnauthorized
	case apperr.IsConflict(err):
		return http.StatusConflict
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsGateway(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest reads a JSON body into v and validates it. Both failures
// are validation errors; invalid is the message for a failed validation.
func (h *Handlers) decodeRequest(r *http.Request, v interface{}, invalid string) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.Validate.Struct(v); err != nil {
		logger.Debugf("%s %s: %v", r.Method, r.URL.Path, err)
		return apperr.Validation("%s", invalid)
	}
	return nil
}

// handleError is the single place a failed operation becomes a response.
// The session user, if any, also gets the error as a notification.
func (h *Handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debugf("%s %s: %v", r.Method, r.URL.Path, err)
	}

	if userID, ok := service.UserIDFromContext(r.Context()); ok && h.Notifier != nil {
		h.Notifier.NotifyError(userID, err)
	}

	WriteError(w, err.Error(), status)
}
