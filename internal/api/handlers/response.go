// Package handlers implements the HTTP handlers of the v1 API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/envkeep/internal/api/errors"
	"github.com/narvanalabs/envkeep/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// MessageResponse is returned by delete endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteMessage writes a 200 response carrying a human-readable message.
func WriteMessage(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// WriteBadRequest writes a 400 response tagged with the request ID.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.WriteErrorWithRequestID(w, apierrors.NewValidationError(message), middleware.GetReqID(r.Context()))
}

// writeError maps a manager error onto the API error shape. Internal
// failures are logged with their cause and answered generically.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	requestID := middleware.GetReqID(r.Context())
	apiErr := apierrors.FromError(err)
	if apiErr.Code == apierrors.CodeInternalError {
		logger.Error("request failed",
			"error", err,
			"kind", service.KindOf(err),
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
		)
	}
	apierrors.WriteErrorWithRequestID(w, apiErr, requestID)
}

// decodeJSON decodes a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("Request body is required")
		case errors.As(err, &maxErr):
			return fmt.Errorf("Request body must not exceed %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("Invalid request body: %v", err)
		}
	}
	if dec.More() {
		return errors.New("Request body must contain a single JSON object")
	}
	return nil
}

// listOptions reads ?limit= and ?cursor=.
func listOptions(r *http.Request) (service.ListOptions, error) {
	opts := service.ListOptions{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return opts, errors.New("limit must be a positive integer")
		}
		opts.Limit = limit
	}
	return opts, nil
}
