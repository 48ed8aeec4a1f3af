package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/narvanalabs/envkeep/internal/service"
	"github.com/narvanalabs/envkeep/internal/store"
)

// Every error body carries code, message and request_id, and the status
// follows the code.
func TestPropertyStructuredErrorResponseFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genErrorCode := gen.OneConstOf(
		CodeValidationError,
		CodeNotFound,
		CodeUnauthorized,
		CodeForbidden,
		CodeInternalError,
		CodeConflict,
	)
	genNonEmptyString := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0
	})
	genRequestID := gen.RegexMatch("[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}")

	properties.Property("Error response contains required fields", prop.ForAll(
		func(code, message, requestID string) bool {
			rr := httptest.NewRecorder()
			WriteError(rr, New(code, message).WithRequestID(requestID))

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				return false
			}
			return response["code"] == code &&
				response["message"] == message &&
				response["request_id"] == requestID &&
				rr.Code == New(code, message).HTTPStatusCode()
		},
		genErrorCode,
		genNonEmptyString,
		genRequestID,
	))

	properties.TestingRun(t)
}

func TestHTTPStatusCode(t *testing.T) {
	cases := map[string]int{
		CodeValidationError: http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeForbidden:       http.StatusForbidden,
		CodeConflict:        http.StatusConflict,
		CodeInternalError:   http.StatusInternalServerError,
		"SOMETHING_ELSE":    http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatusCode(), code)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{"unauthenticated", &service.Error{Kind: service.KindUnauthenticated, Message: "Authentication required"}, CodeUnauthorized, "Authentication required"},
		{"forbidden", &service.Error{Kind: service.KindForbidden, Message: "OWNER role or higher required"}, CodeForbidden, "OWNER role or higher required"},
		{"not found", &service.Error{Kind: service.KindNotFound, Message: "Secret not found"}, CodeNotFound, "Secret not found"},
		{"validation", &service.Error{Kind: service.KindValidationFailed, Message: "bad key"}, CodeValidationError, "bad key"},
		{"conflict", &service.Error{Kind: service.KindConflict, Message: "taken"}, CodeConflict, "taken"},
		{"wrapped", fmt.Errorf("outer: %w", &service.Error{Kind: service.KindNotFound, Message: "Application not found"}), CodeNotFound, "Application not found"},
		{"decryption hides detail", &service.Error{Kind: service.KindDecryptionFailed, Message: "cipher: message authentication failed"}, CodeInternalError, "An unexpected error occurred"},
		{"storage hides detail", &service.Error{Kind: service.KindStorageFailure, Message: "insert secret", Err: errors.New("connection refused")}, CodeInternalError, "An unexpected error occurred"},
		{"untyped", store.ErrNotFound, CodeInternalError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestFromErrorCarriesDetails(t *testing.T) {
	err := &service.Error{
		Kind:    service.KindConflict,
		Message: "Cannot delete environment with attached resources (2 secrets, 1 variables)",
		Details: map[string]any{"secrets": 2, "variables": 1},
	}
	apiErr := FromError(err)
	assert.Equal(t, CodeConflict, apiErr.Code)
	assert.Equal(t, 2, apiErr.Details["secrets"])
	assert.Equal(t, 1, apiErr.Details["variables"])
}
