package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/envkeep/internal/api/middleware"
	"github.com/narvanalabs/envkeep/internal/service"
)

// ApplicationHandler handles application-related HTTP requests.
type ApplicationHandler struct {
	apps   *service.ApplicationManager
	logger *slog.Logger
}

// NewApplicationHandler creates a new application handler.
func NewApplicationHandler(apps *service.ApplicationManager, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		apps:   apps,
		logger: logger,
	}
}

// CreateApplicationRequest represents the request body for creating an application.
type CreateApplicationRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// UpdateApplicationRequest represents the request body for updating an application.
type UpdateApplicationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// List handles GET /v1/applications.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	page, err := h.apps.List(r.Context(), middleware.GetPrincipalID(r.Context()), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// Create handles POST /v1/applications.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	app, err := h.apps.Create(r.Context(), middleware.GetPrincipalID(r.Context()), service.CreateApplicationInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, app)
}

// Get handles GET /v1/applications/{appID}.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.Get(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, app)
}

// Update handles PATCH and PUT /v1/applications/{appID}.
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	app, err := h.apps.Update(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"), service.UpdateApplicationInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, app)
}

// Delete handles DELETE /v1/applications/{appID}.
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.apps.Delete(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteMessage(w, "Application deleted")
}
