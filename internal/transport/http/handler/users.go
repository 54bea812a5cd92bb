package handler

import (
	"net/http"

	"github.com/go-api-assets/internal/application/auth"
	"github.com/go-api-assets/internal/pkg/id"
	"github.com/go-api-assets/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves profile lookups.
type UserHandler struct {
	svc auth.Service
}

func NewUserHandler(svc auth.Service) *UserHandler { return &UserHandler{svc: svc} }

// Me returns the caller's own profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Profile(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Get returns any user's profile. Mounted behind the admin role check.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !id.Valid(userID) {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
