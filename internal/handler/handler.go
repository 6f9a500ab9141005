// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/handler/dto"
)

// Handler serves router-level fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

var (
	userinfoPattern = regexp.MustCompile(`(://[^:/@\s]+):[^@\s]*@`)
	passwordPattern = regexp.MustCompile(`(?i)password=\S+`)
)

// writeInternalError logs err and answers 500 carrying its message, with
// connection credentials redacted.
func writeInternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal_error", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", redactCredentials(err.Error()))
}

func redactCredentials(msg string) string {
	msg = userinfoPattern.ReplaceAllString(msg, "$1:redacted@")
	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}

var errEmptyBody = errors.New("empty body")

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// requireUser returns the caller's user id, writing 401 when the request
// reached the handler without one.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return "", false
	}
	return userID, true
}
