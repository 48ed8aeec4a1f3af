package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/envkeep/internal/api/middleware"
	"github.com/narvanalabs/envkeep/internal/service"
)

// MemberHandler handles membership HTTP requests.
type MemberHandler struct {
	members *service.MemberManager
	logger  *slog.Logger
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(members *service.MemberManager, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{
		members: members,
		logger:  logger,
	}
}

// SetMemberRequest represents the request body for adding or changing a member.
type SetMemberRequest struct {
	Role string `json:"role"`
}

// List handles GET /v1/applications/{appID}/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context(), middleware.GetPrincipalID(r.Context()), chi.URLParam(r, "appID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, members)
}

// Set handles PUT /v1/applications/{appID}/members/{principalID}.
func (h *MemberHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	member, err := h.members.Set(r.Context(), middleware.GetPrincipalID(r.Context()),
		chi.URLParam(r, "appID"), chi.URLParam(r, "principalID"), req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, member)
}

// Remove handles DELETE /v1/applications/{appID}/members/{principalID}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	err := h.members.Remove(r.Context(), middleware.GetPrincipalID(r.Context()),
		chi.URLParam(r, "appID"), chi.URLParam(r, "principalID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	WriteMessage(w, "Member removed")
}
