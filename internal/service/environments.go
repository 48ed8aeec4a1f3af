package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// EnvironmentManager manages the named environments of an application.
type EnvironmentManager struct {
	base
	logger *slog.Logger
}

// CreateEnvironmentInput is the payload for creating an environment.
type CreateEnvironmentInput struct {
	Name        string
	Description *string
}

// UpdateEnvironmentInput patches an environment. Name is accepted only so it
// can be rejected: environment names are immutable.
type UpdateEnvironmentInput struct {
	Name        *string
	Description *string
}

// List returns the environments of an application in creation order.
func (m *EnvironmentManager) List(ctx context.Context, principalID, applicationID string) ([]*models.Environment, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Application(applicationID), auth.ActionRead); err != nil {
		return nil, err
	}

	envs, err := m.store.Environments().List(ctx, applicationID)
	if err != nil {
		return nil, storageFailure("listing environments", err)
	}
	if envs == nil {
		envs = []*models.Environment{}
	}
	return envs, nil
}

// Create adds an environment. The name must be valid and unused, and the
// application must hold fewer than MaxEnvironmentsPerApplication.
func (m *EnvironmentManager) Create(ctx context.Context, principalID, applicationID string, in CreateEnvironmentInput) (*models.Environment, error) {
	if principalID == "" {
		return nil, unauthenticated()
	}

	env := &models.Environment{
		ID:            newID(),
		ApplicationID: applicationID,
		Name:          in.Name,
		Description:   normalizeDescription(in.Description),
	}

	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Application(applicationID), auth.ActionWrite); err != nil {
			return err
		}
		if err := models.ValidateEnvironmentName(in.Name); err != nil {
			return validation(err)
		}

		// The row lock serializes concurrent creators so the count stays accurate.
		if err := tx.Applications().Lock(ctx, applicationID); err != nil {
			return storageFailure("locking application", err)
		}
		count, err := tx.Environments().Count(ctx, applicationID)
		if err != nil {
			return storageFailure("counting environments", err)
		}
		if count >= models.MaxEnvironmentsPerApplication {
			return validation(models.ErrEnvLimitReached)
		}

		if err := tx.Environments().Create(ctx, env); err != nil {
			if errors.Is(err, store.ErrDuplicateName) {
				return conflict("Environment with this name already exists", nil)
			}
			return storageFailure("creating environment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("environment created", "application_id", applicationID, "environment_id", env.ID, "name", env.Name)
	return env, nil
}

// Get returns an environment with its attached secrets (metadata only) and
// variables.
func (m *EnvironmentManager) Get(ctx context.Context, principalID, id string) (*models.EnvironmentDetail, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Environment(id), auth.ActionRead); err != nil {
		return nil, err
	}

	env, err := m.store.Environments().Get(ctx, id)
	if err != nil {
		return nil, lookupErr("Environment", "loading environment", err)
	}
	secretList, err := m.store.Secrets().ListByEnvironment(ctx, id)
	if err != nil {
		return nil, storageFailure("listing environment secrets", err)
	}
	variables, err := m.store.Variables().ListByEnvironment(ctx, id)
	if err != nil {
		return nil, storageFailure("listing environment variables", err)
	}
	if secretList == nil {
		secretList = []*models.Secret{}
	}
	if variables == nil {
		variables = []*models.Variable{}
	}

	return &models.EnvironmentDetail{Environment: *env, Secrets: secretList, Variables: variables}, nil
}

// Update changes the description of an environment.
func (m *EnvironmentManager) Update(ctx context.Context, principalID, id string, in UpdateEnvironmentInput) (*models.Environment, error) {
	var env *models.Environment
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Environment(id), auth.ActionWrite); err != nil {
			return err
		}
		if in.Name != nil {
			return validation(models.ErrEnvNameImmutable)
		}

		var err error
		env, err = tx.Environments().Get(ctx, id)
		if err != nil {
			return lookupErr("Environment", "loading environment", err)
		}
		if in.Description != nil {
			env.Description = normalizeDescription(in.Description)
		}
		if err := tx.Environments().Update(ctx, env); err != nil {
			return lookupErr("Environment", "updating environment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Delete removes an environment that has no secrets or variables attached.
func (m *EnvironmentManager) Delete(ctx context.Context, principalID, id string) error {
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Environment(id), auth.ActionWrite); err != nil {
			return err
		}

		counts, err := tx.Environments().CountAttached(ctx, id)
		if err != nil {
			return storageFailure("counting attached resources", err)
		}
		if counts.InUse() {
			return inUse(counts)
		}

		if err := tx.Environments().Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrInvalidReference) {
				// Attached between the count and the delete.
				counts, cerr := tx.Environments().CountAttached(ctx, id)
				if cerr == nil {
					return inUse(counts)
				}
			}
			return lookupErr("Environment", "deleting environment", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("environment deleted", "environment_id", id, "principal_id", principalID)
	return nil
}

func inUse(counts models.EnvironmentCounts) *Error {
	return conflict(
		fmt.Sprintf("Cannot delete environment with attached resources (%d secrets, %d variables)", counts.Secrets, counts.Variables),
		map[string]any{"secrets": counts.Secrets, "variables": counts.Variables},
	)
}

func lookupErr(resource, op string, err error) error {
	if isNotFound(err) {
		return notFound(resource)
	}
	return storageFailure(op, err)
}
