package models

import (
	"errors"
	"regexp"
	"time"
)

const (
	// MaxEnvironmentNameLength is the longest allowed environment name.
	MaxEnvironmentNameLength = 15
	// MaxEnvironmentsPerApplication caps the environments one application may hold.
	MaxEnvironmentsPerApplication = 10
)

// Validation errors for environments.
var (
	ErrEnvNameRequired  = errors.New("name is required")
	ErrEnvNameInvalid   = errors.New("name can only contain lowercase letters, numbers, hyphens, and underscores")
	ErrEnvNameTooLong   = errors.New("name must be 15 characters or less")
	ErrEnvNameImmutable = errors.New("name cannot be changed after creation")
	ErrEnvLimitReached  = errors.New("maximum of 10 environments per application")
)

var envNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Environment is a named configuration partition within an application.
type Environment struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"application_id"`
	Name          string            `json:"name"`
	Description   *string           `json:"description"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Counts        EnvironmentCounts `json:"counts"`
}

// EnvironmentCounts holds the number of secrets and variables attached to an environment.
type EnvironmentCounts struct {
	Secrets   int `json:"secrets"`
	Variables int `json:"variables"`
}

// InUse reports whether anything is attached.
func (c EnvironmentCounts) InUse() bool {
	return c.Secrets > 0 || c.Variables > 0
}

// EnvironmentRef is the short form of an environment embedded in secret and variable payloads.
type EnvironmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnvironmentDetail is an environment together with everything attached to it.
// Secrets carry metadata only.
type EnvironmentDetail struct {
	Environment
	Secrets   []*Secret   `json:"secrets"`
	Variables []*Variable `json:"variables"`
}

// ValidateEnvironmentName checks the name pattern and length. Uniqueness is
// enforced by the store.
func ValidateEnvironmentName(name string) error {
	if name == "" {
		return ErrEnvNameRequired
	}
	if !envNamePattern.MatchString(name) {
		return ErrEnvNameInvalid
	}
	if len(name) > MaxEnvironmentNameLength {
		return ErrEnvNameTooLong
	}
	return nil
}
