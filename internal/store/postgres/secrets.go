package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// SecretStore implements store.SecretStore using PostgreSQL.
// Values are stored exactly as handed in; encryption happens above the store.
type SecretStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *SecretStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new secret.
func (s *SecretStore) Create(ctx context.Context, secret *models.Secret) error {
	query := `
		INSERT INTO secrets (id, application_id, key, encrypted_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	if secret.UpdatedAt.IsZero() {
		secret.UpdatedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		secret.ID,
		secret.ApplicationID,
		secret.Key,
		secret.EncryptedValue,
		secret.CreatedAt,
		secret.UpdatedAt,
	).Scan(&secret.CreatedAt, &secret.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting secret: %w", translateError(err))
	}

	return nil
}

// Get retrieves a secret by ID.
func (s *SecretStore) Get(ctx context.Context, id string) (*models.Secret, error) {
	query := `
		SELECT id, application_id, key, encrypted_value, created_at, updated_at
		FROM secrets
		WHERE id = $1`

	secret := &models.Secret{}
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&secret.ID,
		&secret.ApplicationID,
		&secret.Key,
		&secret.EncryptedValue,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying secret: %w", err)
	}

	refs, err := secretLinks.refs(ctx, s.conn(), []string{secret.ID})
	if err != nil {
		return nil, err
	}
	secret.Environments = nonNilRefs(refs[secret.ID])

	return secret, nil
}

// List retrieves an application's secrets ordered by key.
func (s *SecretStore) List(ctx context.Context, applicationID string) ([]*models.Secret, error) {
	query := `
		SELECT id, application_id, key, encrypted_value, created_at, updated_at
		FROM secrets
		WHERE application_id = $1
		ORDER BY key ASC`

	return s.list(ctx, query, applicationID)
}

// ListByEnvironment retrieves the secrets attached to an environment ordered by key.
func (s *SecretStore) ListByEnvironment(ctx context.Context, environmentID string) ([]*models.Secret, error) {
	query := `
		SELECT s.id, s.application_id, s.key, s.encrypted_value, s.created_at, s.updated_at
		FROM secrets s
		JOIN secret_environments se ON se.secret_id = s.id
		WHERE se.environment_id = $1
		ORDER BY s.key ASC`

	return s.list(ctx, query, environmentID)
}

// ListAll retrieves every secret ordered by ID.
func (s *SecretStore) ListAll(ctx context.Context) ([]*models.Secret, error) {
	query := `
		SELECT id, application_id, key, encrypted_value, created_at, updated_at
		FROM secrets
		ORDER BY id ASC`

	return s.list(ctx, query)
}

func (s *SecretStore) list(ctx context.Context, query string, args ...any) ([]*models.Secret, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer rows.Close()

	var secrets []*models.Secret
	var ids []string
	for rows.Next() {
		secret := &models.Secret{}
		if err := rows.Scan(
			&secret.ID,
			&secret.ApplicationID,
			&secret.Key,
			&secret.EncryptedValue,
			&secret.CreatedAt,
			&secret.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning secret row: %w", err)
		}
		secrets = append(secrets, secret)
		ids = append(ids, secret.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secret rows: %w", err)
	}

	refs, err := secretLinks.refs(ctx, s.conn(), ids)
	if err != nil {
		return nil, err
	}
	for _, secret := range secrets {
		secret.Environments = nonNilRefs(refs[secret.ID])
	}

	return secrets, nil
}

// Update updates the key and encrypted value of a secret.
func (s *SecretStore) Update(ctx context.Context, secret *models.Secret) error {
	secret.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx,
		`UPDATE secrets SET key = $2, encrypted_value = $3, updated_at = $4 WHERE id = $1`,
		secret.ID, secret.Key, secret.EncryptedValue, secret.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating secret: %w", translateError(err))
	}

	return expectAffected(result)
}

// ReplaceEnvironments replaces the environment links of a secret.
func (s *SecretStore) ReplaceEnvironments(ctx context.Context, secretID string, environmentIDs []string) error {
	return secretLinks.replace(ctx, s.conn(), secretID, environmentIDs)
}

// Delete removes a secret and its environment links.
func (s *SecretStore) Delete(ctx context.Context, id string) error {
	if err := secretLinks.deleteOwner(ctx, s.conn(), id); err != nil {
		return err
	}

	result, err := s.conn().ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}

	return expectAffected(result)
}

// DeleteByApplication removes every secret of an application.
func (s *SecretStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	if err := secretLinks.deleteApplication(ctx, s.conn(), applicationID); err != nil {
		return err
	}
	if _, err := s.conn().ExecContext(ctx,
		`DELETE FROM secrets WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("deleting application secrets: %w", err)
	}
	return nil
}

func nonNilRefs(refs []models.EnvironmentRef) []models.EnvironmentRef {
	if refs == nil {
		return []models.EnvironmentRef{}
	}
	return refs
}
