package models

import (
	"errors"
	"strings"
	"time"
)

// MaxKeyLength bounds secret and variable keys.
const MaxKeyLength = 255

// Validation errors shared by secrets and variables.
var (
	ErrKeyRequired   = errors.New("key is required")
	ErrKeyTooLong    = errors.New("key must be 255 characters or less")
	ErrValueRequired = errors.New("value is required")
)

// Variable represents a plaintext configuration entry of an application.
type Variable struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"application_id"`
	Key           string           `json:"key"`
	Value         string           `json:"value"`
	Environments  []EnvironmentRef `json:"environments"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ValidateKey validates a secret or variable key.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}
