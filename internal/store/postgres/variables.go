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

// VariableStore implements store.VariableStore using PostgreSQL.
type VariableStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *VariableStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new variable.
func (s *VariableStore) Create(ctx context.Context, variable *models.Variable) error {
	query := `
		INSERT INTO variables (id, application_id, key, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	if variable.CreatedAt.IsZero() {
		variable.CreatedAt = now
	}
	if variable.UpdatedAt.IsZero() {
		variable.UpdatedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		variable.ID,
		variable.ApplicationID,
		variable.Key,
		variable.Value,
		variable.CreatedAt,
		variable.UpdatedAt,
	).Scan(&variable.CreatedAt, &variable.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting variable: %w", translateError(err))
	}

	return nil
}

// Get retrieves a variable by ID.
func (s *VariableStore) Get(ctx context.Context, id string) (*models.Variable, error) {
	query := `
		SELECT id, application_id, key, value, created_at, updated_at
		FROM variables
		WHERE id = $1`

	variable := &models.Variable{}
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&variable.ID,
		&variable.ApplicationID,
		&variable.Key,
		&variable.Value,
		&variable.CreatedAt,
		&variable.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying variable: %w", err)
	}

	refs, err := variableLinks.refs(ctx, s.conn(), []string{variable.ID})
	if err != nil {
		return nil, err
	}
	variable.Environments = nonNilRefs(refs[variable.ID])

	return variable, nil
}

// List retrieves an application's variables ordered by key.
func (s *VariableStore) List(ctx context.Context, applicationID string) ([]*models.Variable, error) {
	query := `
		SELECT id, application_id, key, value, created_at, updated_at
		FROM variables
		WHERE application_id = $1
		ORDER BY key ASC`

	return s.list(ctx, query, applicationID)
}

// ListByEnvironment retrieves the variables attached to an environment ordered by key.
func (s *VariableStore) ListByEnvironment(ctx context.Context, environmentID string) ([]*models.Variable, error) {
	query := `
		SELECT v.id, v.application_id, v.key, v.value, v.created_at, v.updated_at
		FROM variables v
		JOIN variable_environments ve ON ve.variable_id = v.id
		WHERE ve.environment_id = $1
		ORDER BY v.key ASC`

	return s.list(ctx, query, environmentID)
}

func (s *VariableStore) list(ctx context.Context, query string, args ...any) ([]*models.Variable, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying variables: %w", err)
	}
	defer rows.Close()

	var variables []*models.Variable
	var ids []string
	for rows.Next() {
		variable := &models.Variable{}
		if err := rows.Scan(
			&variable.ID,
			&variable.ApplicationID,
			&variable.Key,
			&variable.Value,
			&variable.CreatedAt,
			&variable.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning variable row: %w", err)
		}
		variables = append(variables, variable)
		ids = append(ids, variable.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variable rows: %w", err)
	}

	refs, err := variableLinks.refs(ctx, s.conn(), ids)
	if err != nil {
		return nil, err
	}
	for _, variable := range variables {
		variable.Environments = nonNilRefs(refs[variable.ID])
	}

	return variables, nil
}

// Update updates the key and value of a variable.
func (s *VariableStore) Update(ctx context.Context, variable *models.Variable) error {
	variable.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx,
		`UPDATE variables SET key = $2, value = $3, updated_at = $4 WHERE id = $1`,
		variable.ID, variable.Key, variable.Value, variable.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating variable: %w", translateError(err))
	}

	return expectAffected(result)
}

// ReplaceEnvironments replaces the environment links of a variable.
func (s *VariableStore) ReplaceEnvironments(ctx context.Context, variableID string, environmentIDs []string) error {
	return variableLinks.replace(ctx, s.conn(), variableID, environmentIDs)
}

// Delete removes a variable and its environment links.
func (s *VariableStore) Delete(ctx context.Context, id string) error {
	if err := variableLinks.deleteOwner(ctx, s.conn(), id); err != nil {
		return err
	}

	result, err := s.conn().ExecContext(ctx, `DELETE FROM variables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting variable: %w", err)
	}

	return expectAffected(result)
}

// DeleteByApplication removes every variable of an application.
func (s *VariableStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	if err := variableLinks.deleteApplication(ctx, s.conn(), applicationID); err != nil {
		return err
	}
	if _, err := s.conn().ExecContext(ctx,
		`DELETE FROM variables WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("deleting application variables: %w", err)
	}
	return nil
}
