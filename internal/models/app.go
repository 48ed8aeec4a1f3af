package models

import (
	"errors"
	"strings"
	"time"
)

// MaxApplicationNameLength bounds application names.
const MaxApplicationNameLength = 100

// Validation errors for applications.
var (
	ErrAppNameRequired = errors.New("name is required")
	ErrAppNameTooLong  = errors.New("name must be 100 characters or less")
)

// Application is the top-level container owning environments, secrets,
// variables and memberships.
type Application struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ApplicationCounts holds the number of owned resources per kind.
type ApplicationCounts struct {
	Environments int `json:"environments"`
	Secrets      int `json:"secrets"`
	Variables    int `json:"variables"`
}

// ApplicationSummary is an application as seen by one principal.
type ApplicationSummary struct {
	Application
	Role   Role              `json:"role"`
	Counts ApplicationCounts `json:"counts"`
}

// ApplicationDetail extends the summary with members and environments.
type ApplicationDetail struct {
	ApplicationSummary
	Members      []*Membership  `json:"members"`
	Environments []*Environment `json:"environments"`
}

// ValidateApplicationName validates an application name.
func ValidateApplicationName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrAppNameRequired
	}
	if len(name) > MaxApplicationNameLength {
		return ErrAppNameTooLong
	}
	return nil
}
