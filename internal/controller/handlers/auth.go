package handlers

import (
	"encoding/json"
	"net/http"

	"shortforge/internal/auth"
	"shortforge/internal/controller/middleware"
	"shortforge/internal/logger"
	"shortforge/pkg/api"
)

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !auth.CheckPassword(req.Password, h.config.AdminPassword) {
		log.Warn("Failed login attempt")
		h.httpError(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := h.issuer.Issue()
	if err != nil {
		log.Error("Failed to issue token", "error", err)
		h.httpError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.LoginResponse{Token: token, Admin: true})
}

// Verify handles GET /api/auth/verify. It runs behind the auth middleware.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.respondJson(w, http.StatusOK, api.VerifyResponse{Valid: true, Admin: claims.Admin})
}
