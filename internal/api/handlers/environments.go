package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/envkeep/internal/api/middleware"
	"github.com/narvanalabs/envkeep/internal/service"
)

// EnvironmentHandler handles environment-related HTTP requests.
type EnvironmentHandler struct {
	envs   *service.EnvironmentManager
	logger *slog.Logger
}

// NewEnvironmentHandler creates a new environment handler.
func NewEnvironmentHandler(envs *service.EnvironmentManager, logger *slog.Logger) *EnvironmentHandler {
	return &EnvironmentHandler{
		envs:   envs,
		logger: logger,
	}
}

// CreateEnvironmentRequest represents the request body for creating an environment.
type CreateEnvironmentRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// UpdateEnvironmentRequest represents the request body for updating an
// environment. Name is decoded so the manager can reject it.
type UpdateEnvironmentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// List handles GET /v1/applications/{appID}/environments.
func (h *EnvironmentHandler) List(w http.ResponseWriter, r *http.Request) {
	envs, err := h.envs.List(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, envs)
}

// Create handles POST /v1/applications/{appID}/environments.
func (h *EnvironmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEnvironmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	env, err := h.envs.Create(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"), service.CreateEnvironmentInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, env)
}

// Get handles GET /v1/environments/{envID}.
func (h *EnvironmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	env, err := h.envs.Get(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "envID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// Update handles PATCH /v1/environments/{envID}.
func (h *EnvironmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateEnvironmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	env, err := h.envs.Update(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "envID"), service.UpdateEnvironmentInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// Delete handles DELETE /v1/environments/{envID}.
func (h *EnvironmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.envs.Delete(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "envID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteMessage(w, "Environment deleted")
}
