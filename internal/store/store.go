// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/narvanalabs/envkeep/internal/models"
)

// Common store errors. Implementations wrap or return these so callers can
// match with errors.Is.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicateName is returned when an environment name is already taken in its application.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrDuplicateKey is returned when a secret or variable key is already taken in its application.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidReference is returned when a foreign key points at a missing row.
	ErrInvalidReference = errors.New("invalid reference")
)

// Page selects a window of an ordered list.
type Page struct {
	Limit  int
	Offset int
}

// ApplicationStore defines operations for application management.
type ApplicationStore interface {
	// Create creates a new application.
	Create(ctx context.Context, app *models.Application) error
	// Get retrieves an application by ID.
	Get(ctx context.Context, id string) (*models.Application, error)
	// ListForPrincipal retrieves applications the principal is a member of,
	// most recently updated first, with the principal's role and counts.
	ListForPrincipal(ctx context.Context, principalID string, page Page) ([]*models.ApplicationSummary, error)
	// Counts returns the number of environments, secrets and variables owned by an application.
	Counts(ctx context.Context, id string) (models.ApplicationCounts, error)
	// Update updates name, description and updated_at.
	Update(ctx context.Context, app *models.Application) error
	// Delete removes the application row. Owned rows must be removed first.
	Delete(ctx context.Context, id string) error
	// Lock takes a row lock on the application for the rest of the transaction.
	Lock(ctx context.Context, id string) error
}

// MembershipStore defines operations on principal/application role bindings.
type MembershipStore interface {
	// Get retrieves the membership of a principal on an application.
	Get(ctx context.Context, applicationID, principalID string) (*models.Membership, error)
	// List retrieves all members of an application.
	List(ctx context.Context, applicationID string) ([]*models.Membership, error)
	// Upsert creates a membership or changes its role.
	Upsert(ctx context.Context, m *models.Membership) error
	// Delete removes a membership.
	Delete(ctx context.Context, applicationID, principalID string) error
	// CountByRole returns the number of members holding a role.
	CountByRole(ctx context.Context, applicationID string, role models.Role) (int, error)
	// DeleteByApplication removes every membership of an application.
	DeleteByApplication(ctx context.Context, applicationID string) error
}

// EnvironmentStore defines operations for environment management.
type EnvironmentStore interface {
	// Create creates a new environment. Returns ErrDuplicateName when the name is taken.
	Create(ctx context.Context, env *models.Environment) error
	// Get retrieves an environment with its attachment counts.
	Get(ctx context.Context, id string) (*models.Environment, error)
	// List retrieves an application's environments in creation order.
	List(ctx context.Context, applicationID string) ([]*models.Environment, error)
	// Count returns the number of environments in an application.
	Count(ctx context.Context, applicationID string) (int, error)
	// CountAttached returns how many secrets and variables are attached to an environment.
	CountAttached(ctx context.Context, id string) (models.EnvironmentCounts, error)
	// FilterOwned returns the subset of ids that belong to the application.
	FilterOwned(ctx context.Context, applicationID string, ids []string) ([]string, error)
	// Update updates the description and updated_at.
	Update(ctx context.Context, env *models.Environment) error
	// Delete removes an environment.
	Delete(ctx context.Context, id string) error
	// DeleteByApplication removes every environment of an application.
	DeleteByApplication(ctx context.Context, applicationID string) error
}

// SecretStore defines operations for secret management. Encrypted values are
// stored and returned opaquely.
type SecretStore interface {
	// Create creates a new secret. Returns ErrDuplicateKey when the key is taken.
	Create(ctx context.Context, secret *models.Secret) error
	// Get retrieves a secret with its environment references.
	Get(ctx context.Context, id string) (*models.Secret, error)
	// List retrieves an application's secrets ordered by key.
	List(ctx context.Context, applicationID string) ([]*models.Secret, error)
	// ListByEnvironment retrieves the secrets attached to an environment ordered by key.
	ListByEnvironment(ctx context.Context, environmentID string) ([]*models.Secret, error)
	// ListAll retrieves every secret. Used for key rotation.
	ListAll(ctx context.Context) ([]*models.Secret, error)
	// Update updates key, encrypted value and updated_at.
	Update(ctx context.Context, secret *models.Secret) error
	// ReplaceEnvironments deletes all environment links of a secret and inserts the given set.
	ReplaceEnvironments(ctx context.Context, secretID string, environmentIDs []string) error
	// Delete removes a secret and its environment links.
	Delete(ctx context.Context, id string) error
	// DeleteByApplication removes every secret of an application and their links.
	DeleteByApplication(ctx context.Context, applicationID string) error
}

// VariableStore defines operations for variable management.
type VariableStore interface {
	// Create creates a new variable. Returns ErrDuplicateKey when the key is taken.
	Create(ctx context.Context, variable *models.Variable) error
	// Get retrieves a variable with its environment references.
	Get(ctx context.Context, id string) (*models.Variable, error)
	// List retrieves an application's variables ordered by key.
	List(ctx context.Context, applicationID string) ([]*models.Variable, error)
	// ListByEnvironment retrieves the variables attached to an environment ordered by key.
	ListByEnvironment(ctx context.Context, environmentID string) ([]*models.Variable, error)
	// Update updates key, value and updated_at.
	Update(ctx context.Context, variable *models.Variable) error
	// ReplaceEnvironments deletes all environment links of a variable and inserts the given set.
	ReplaceEnvironments(ctx context.Context, variableID string, environmentIDs []string) error
	// Delete removes a variable and its environment links.
	Delete(ctx context.Context, id string) error
	// DeleteByApplication removes every variable of an application and their links.
	DeleteByApplication(ctx context.Context, applicationID string) error
}

// Store is the main interface for database operations.
type Store interface {
	// Applications returns the ApplicationStore.
	Applications() ApplicationStore
	// Memberships returns the MembershipStore.
	Memberships() MembershipStore
	// Environments returns the EnvironmentStore.
	Environments() EnvironmentStore
	// Secrets returns the SecretStore.
	Secrets() SecretStore
	// Variables returns the VariableStore.
	Variables() VariableStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
