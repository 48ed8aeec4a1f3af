package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/envkeep/internal/api/middleware"
	"github.com/narvanalabs/envkeep/internal/service"
)

// SecretHandler handles secret-related HTTP requests. Responses carry
// metadata only; values are never returned.
type SecretHandler struct {
	secrets *service.SecretManager
	logger  *slog.Logger
}

// NewSecretHandler creates a new secret handler.
func NewSecretHandler(secrets *service.SecretManager, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		secrets: secrets,
		logger:  logger,
	}
}

// CreateSecretRequest represents the request body for creating a secret.
type CreateSecretRequest struct {
	Key            string   `json:"key"`
	Value          string   `json:"value"`
	EnvironmentIDs []string `json:"environment_ids"`
}

// UpdateSecretRequest represents the request body for updating a secret.
// environment_ids, when present, replaces the whole association set.
type UpdateSecretRequest struct {
	Key            *string   `json:"key"`
	Value          *string   `json:"value"`
	EnvironmentIDs *[]string `json:"environment_ids"`
}

// List handles GET /v1/applications/{appID}/secrets.
func (h *SecretHandler) List(w http.ResponseWriter, r *http.Request) {
	secrets, err := h.secrets.List(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, secrets)
}

// Create handles POST /v1/applications/{appID}/secrets.
func (h *SecretHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSecretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	secret, err := h.secrets.Create(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"), service.CreateSecretInput{
		Key:            req.Key,
		Value:          req.Value,
		EnvironmentIDs: req.EnvironmentIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, secret)
}

// Get handles GET /v1/secrets/{secretID}.
func (h *SecretHandler) Get(w http.ResponseWriter, r *http.Request) {
	secret, err := h.secrets.Get(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "secretID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, secret)
}

// Update handles PATCH /v1/secrets/{secretID}.
func (h *SecretHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSecretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	secret, err := h.secrets.Update(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "secretID"), service.UpdateSecretInput{
		Key:            req.Key,
		Value:          req.Value,
		EnvironmentIDs: req.EnvironmentIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, secret)
}

// Delete handles DELETE /v1/secrets/{secretID}.
func (h *SecretHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.secrets.Delete(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "secretID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteMessage(w, "Secret deleted")
}
