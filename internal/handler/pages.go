package handler

import (
	"net/http"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/handler/dto"
)

// PageHandler answers the browser routes the authorization filter
// redirects to. The UI itself is served elsewhere.
type PageHandler struct{}

// NewPageHandler creates a new PageHandler.
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Page returns a handler for the named page.
func (h *PageHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := dto.PageResponse{Success: true, Page: name}
		if caller := auth.CallerFromContext(r.Context()); caller != nil {
			resp.UserID = caller.UserID
			resp.Role = string(caller.Role)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Error handles GET /error, the fail-closed landing page.
func (h *PageHandler) Error(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ErrorResponse{
		Success: false,
		Error:   "Something went wrong. Please try again later.",
		Code:    "AUTHORIZATION_UNAVAILABLE",
	})
}
