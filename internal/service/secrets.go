package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/secrets"
	"github.com/narvanalabs/envkeep/internal/store"
)

// SecretManager manages encrypted configuration entries. Values are
// encrypted before they reach the store and are never returned.
type SecretManager struct {
	base
	codec  *secrets.Codec
	logger *slog.Logger
}

// CreateSecretInput is the payload for creating a secret.
type CreateSecretInput struct {
	Key            string
	Value          string
	EnvironmentIDs []string
}

// UpdateSecretInput patches a secret. An empty Value leaves the stored value
// unchanged. A non-nil EnvironmentIDs replaces the whole association set.
type UpdateSecretInput struct {
	Key            *string
	Value          *string
	EnvironmentIDs *[]string
}

// List returns the secrets of an application ordered by key.
func (m *SecretManager) List(ctx context.Context, principalID, applicationID string) ([]*models.Secret, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Application(applicationID), auth.ActionRead); err != nil {
		return nil, err
	}

	list, err := m.store.Secrets().List(ctx, applicationID)
	if err != nil {
		return nil, storageFailure("listing secrets", err)
	}
	if list == nil {
		list = []*models.Secret{}
	}
	return list, nil
}

// Create encrypts the value and stores the secret with its environments.
func (m *SecretManager) Create(ctx context.Context, principalID, applicationID string, in CreateSecretInput) (*models.Secret, error) {
	if principalID == "" {
		return nil, unauthenticated()
	}

	secret := &models.Secret{ID: newID(), ApplicationID: applicationID, Key: in.Key}
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

		blob, err := m.codec.Encrypt(in.Value)
		if err != nil {
			return &Error{Kind: KindStorageFailure, Message: "could not encrypt secret", Err: err}
		}
		secret.EncryptedValue = blob

		if err := tx.Secrets().Create(ctx, secret); err != nil {
			return keyErr("Secret", "creating secret", err)
		}
		if err := tx.Secrets().ReplaceEnvironments(ctx, secret.ID, envIDs); err != nil {
			return storageFailure("linking environments", err)
		}

		created, err := tx.Secrets().Get(ctx, secret.ID)
		if err != nil {
			return storageFailure("reloading secret", err)
		}
		secret = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("secret created", "application_id", applicationID, "secret_id", secret.ID, "key", secret.Key)
	return secret, nil
}

// Get returns secret metadata and environments. The value stays encrypted.
func (m *SecretManager) Get(ctx context.Context, principalID, id string) (*models.Secret, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Secret(id), auth.ActionRead); err != nil {
		return nil, err
	}

	secret, err := m.store.Secrets().Get(ctx, id)
	if err != nil {
		return nil, lookupErr("Secret", "loading secret", err)
	}
	return secret, nil
}

// Update changes key, value and/or environments in one transaction.
func (m *SecretManager) Update(ctx context.Context, principalID, id string, in UpdateSecretInput) (*models.Secret, error) {
	var secret *models.Secret
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		res, err := authorize(ctx, tx, principalID, auth.Secret(id), auth.ActionWrite)
		if err != nil {
			return err
		}

		secret, err = tx.Secrets().Get(ctx, id)
		if err != nil {
			return lookupErr("Secret", "loading secret", err)
		}

		if in.Key != nil {
			if err := models.ValidateKey(*in.Key); err != nil {
				return validation(err)
			}
			secret.Key = *in.Key
		}
		rotate := in.Value != nil && *in.Value != ""
		if rotate {
			blob, err := m.codec.Encrypt(*in.Value)
			if err != nil {
				return &Error{Kind: KindStorageFailure, Message: "could not encrypt secret", Err: err}
			}
			secret.EncryptedValue = blob
		}

		if in.Key != nil || rotate {
			if err := tx.Secrets().Update(ctx, secret); err != nil {
				return keyErr("Secret", "updating secret", err)
			}
		}

		if in.EnvironmentIDs != nil {
			envIDs := dedupe(*in.EnvironmentIDs)
			if err := checkEnvironments(ctx, tx, res.ApplicationID, envIDs); err != nil {
				return err
			}
			if err := tx.Secrets().ReplaceEnvironments(ctx, id, envIDs); err != nil {
				return storageFailure("replacing environments", err)
			}
		}

		secret, err = tx.Secrets().Get(ctx, id)
		if err != nil {
			return storageFailure("reloading secret", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("secret updated", "secret_id", id, "principal_id", principalID)
	return secret, nil
}

// Delete removes a secret and its environment links.
func (m *SecretManager) Delete(ctx context.Context, principalID, id string) error {
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Secret(id), auth.ActionWrite); err != nil {
			return err
		}
		if err := tx.Secrets().Delete(ctx, id); err != nil {
			return lookupErr("Secret", "deleting secret", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("secret deleted", "secret_id", id, "principal_id", principalID)
	return nil
}

// keyErr maps a duplicate key to Conflict.
func keyErr(resource, op string, err error) error {
	if errors.Is(err, store.ErrDuplicateKey) {
		return conflict(fmt.Sprintf("%s key already exists", resource), nil)
	}
	return lookupErr(resource, op, err)
}

// RotateKey re-encrypts every stored secret from one codec to another in a
// single transaction. Any secret that does not decrypt with from aborts the
// rotation and leaves the store unchanged. Returns the number of secrets
// rotated.
func RotateKey(ctx context.Context, st store.Store, from, to *secrets.Codec, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rotated := 0
	err := st.WithTx(ctx, func(tx store.Store) error {
		all, err := tx.Secrets().ListAll(ctx)
		if err != nil {
			return storageFailure("listing secrets", err)
		}

		for _, secret := range all {
			blob, err := from.ReEncrypt(secret.EncryptedValue, to)
			if err != nil {
				if errors.Is(err, secrets.ErrDecryptionFailed) {
					logger.Error("secret failed to decrypt during rotation", "secret_id", secret.ID)
					return decryptionFailed(fmt.Errorf("secret %s: %w", secret.ID, err))
				}
				return &Error{Kind: KindStorageFailure, Message: "could not re-encrypt secret", Err: err}
			}
			secret.EncryptedValue = blob
			if err := tx.Secrets().Update(ctx, secret); err != nil {
				return storageFailure("saving rotated secret", err)
			}
			rotated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("encryption key rotated", "secrets", rotated)
	return rotated, nil
}
