package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/envkeep/internal/api/middleware"
	"github.com/narvanalabs/envkeep/internal/service"
)

// VariableHandler handles variable-related HTTP requests.
type VariableHandler struct {
	variables *service.VariableManager
	logger    *slog.Logger
}

// NewVariableHandler creates a new variable handler.
func NewVariableHandler(variables *service.VariableManager, logger *slog.Logger) *VariableHandler {
	return &VariableHandler{
		variables: variables,
		logger:    logger,
	}
}

// CreateVariableRequest represents the request body for creating a variable.
type CreateVariableRequest struct {
	Key            string   `json:"key"`
	Value          string   `json:"value"`
	EnvironmentIDs []string `json:"environment_ids"`
}

// UpdateVariableRequest represents the request body for updating a variable.
type UpdateVariableRequest struct {
	Key            *string   `json:"key"`
	Value          *string   `json:"value"`
	EnvironmentIDs *[]string `json:"environment_ids"`
}

// List handles GET /v1/applications/{appID}/variables.
func (h *VariableHandler) List(w http.ResponseWriter, r *http.Request) {
	variables, err := h.variables.List(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, variables)
}

// Create handles POST /v1/applications/{appID}/variables.
func (h *VariableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateVariableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	variable, err := h.variables.Create(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"), service.CreateVariableInput{
		Key:            req.Key,
		Value:          req.Value,
		EnvironmentIDs: req.EnvironmentIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, variable)
}

// Get handles GET /v1/variables/{variableID}.
func (h *VariableHandler) Get(w http.ResponseWriter, r *http.Request) {
	variable, err := h.variables.Get(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "variableID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, variable)
}

// Update handles PATCH /v1/variables/{variableID}.
func (h *VariableHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateVariableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	variable, err := h.variables.Update(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "variableID"), service.UpdateVariableInput{
		Key:            req.Key,
		Value:          req.Value,
		EnvironmentIDs: req.EnvironmentIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, variable)
}

// Delete handles DELETE /v1/variables/{variableID}.
func (h *VariableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.variables.Delete(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "variableID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteMessage(w, "Variable deleted")
}
