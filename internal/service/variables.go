package service

import (
	"context"
	"log/slog"

	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// VariableManager manages plaintext configuration entries.
type VariableManager struct {
	base
	logger *slog.Logger
}

// CreateVariableInput is the payload for creating a variable.
type CreateVariableInput struct {
	Key            string
	Value          string
	EnvironmentIDs []string
}

// UpdateVariableInput patches a variable. An empty Value is allowed here;
// a non-nil EnvironmentIDs replaces the whole association set.
type UpdateVariableInput struct {
	Key            *string
	Value          *string
	EnvironmentIDs *[]string
}

// List returns the variables of an application ordered by key.
func (m *VariableManager) List(ctx context.Context, principalID, applicationID string) ([]*models.Variable, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Application(applicationID), auth.ActionRead); err != nil {
		return nil, err
	}

	list, err := m.store.Variables().List(ctx, applicationID)
	if err != nil {
		return nil, storageFailure("listing variables", err)
	}
	if list == nil {
		list = []*models.Variable{}
	}
	return list, nil
}

// Create stores a variable with its environments.
func (m *VariableManager) Create(ctx context.Context, principalID, applicationID string, in CreateVariableInput) (*models.Variable, error) {
	if principalID == "" {
		return nil, unauthenticated()
	}

	variable := &models.Variable{ID: newID(), ApplicationID: applicationID, Key: in.Key, Value: in.Value}
	envIDs := dedupe(in.EnvironmentIDs)

	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Application(applicationID), auth.ActionWrite); err != nil {
			return err
		}
		if err := models.ValidateKey(in.Key); err != nil {
			return validation(err)
		}
		if in.Value == "" {
			return validation(models.ErrValueRequired)
		}
		if err := checkEnvironments(ctx, tx, applicationID, envIDs); err != nil {
			return err
		}

		if err := tx.Variables().Create(ctx, variable); err != nil {
			return keyErr("Variable", "creating variable", err)
		}
		if err := tx.Variables().ReplaceEnvironments(ctx, variable.ID, envIDs); err != nil {
			return storageFailure("linking environments", err)
		}

		created, err := tx.Variables().Get(ctx, variable.ID)
		if err != nil {
			return storageFailure("reloading variable", err)
		}
		variable = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("variable created", "application_id", applicationID, "variable_id", variable.ID, "key", variable.Key)
	return variable, nil
}

// Get returns a variable including its value.
func (m *VariableManager) Get(ctx context.Context, principalID, id string) (*models.Variable, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Variable(id), auth.ActionRead); err != nil {
		return nil, err
	}

	variable, err := m.store.Variables().Get(ctx, id)
	if err != nil {
		return nil, lookupErr("Variable", "loading variable", err)
	}
	return variable, nil
}

// Update changes key, value and/or environments in one transaction.
func (m *VariableManager) Update(ctx context.Context, principalID, id string, in UpdateVariableInput) (*models.Variable, error) {
	var variable *models.Variable
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		res, err := authorize(ctx, tx, principalID, auth.Variable(id), auth.ActionWrite)
		if err != nil {
			return err
		}

		variable, err = tx.Variables().Get(ctx, id)
		if err != nil {
			return lookupErr("Variable", "loading variable", err)
		}

		if in.Key != nil {
			if err := models.ValidateKey(*in.Key); err != nil {
				return validation(err)
			}
			variable.Key = *in.Key
		}
		if in.Value != nil {
			variable.Value = *in.Value
		}

		if in.Key != nil || in.Value != nil {
			if err := tx.Variables().Update(ctx, variable); err != nil {
				return keyErr("Variable", "updating variable", err)
			}
		}

		if in.EnvironmentIDs != nil {
			envIDs := dedupe(*in.EnvironmentIDs)
			if err := checkEnvironments(ctx, tx, res.ApplicationID, envIDs); err != nil {
				return err
			}
			if err := tx.Variables().ReplaceEnvironments(ctx, id, envIDs); err != nil {
				return storageFailure("replacing environments", err)
			}
		}

		variable, err = tx.Variables().Get(ctx, id)
		if err != nil {
			return storageFailure("reloading variable", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("variable updated", "variable_id", id, "principal_id", principalID)
	return variable, nil
}

// Delete removes a variable and its environment links.
func (m *VariableManager) Delete(ctx context.Context, principalID, id string) error {
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Variable(id), auth.ActionWrite); err != nil {
			return err
		}
		if err := tx.Variables().Delete(ctx, id); err != nil {
			return lookupErr("Variable", "deleting variable", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("variable deleted", "variable_id", id, "principal_id", principalID)
	return nil
}
