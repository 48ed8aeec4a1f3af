package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// EnvironmentStore implements store.EnvironmentStore using PostgreSQL.
type EnvironmentStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *EnvironmentStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const environmentColumns = `
	e.id, e.application_id, e.name, e.description, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM secret_environments se WHERE se.environment_id = e.id),
	(SELECT COUNT(*) FROM variable_environments ve WHERE ve.environment_id = e.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvironment(row rowScanner) (*models.Environment, error) {
	env := &models.Environment{}
	var description sql.NullString
	if err := row.Scan(
		&env.ID,
		&env.ApplicationID,
		&env.Name,
		&description,
		&env.CreatedAt,
		&env.UpdatedAt,
		&env.Counts.Secrets,
		&env.Counts.Variables,
	); err != nil {
		return nil, err
	}
	env.Description = stringPtr(description)
	return env, nil
}

// Create creates a new environment.
func (s *EnvironmentStore) Create(ctx context.Context, env *models.Environment) error {
	query := `
		INSERT INTO environments (id, application_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	if env.UpdatedAt.IsZero() {
		env.UpdatedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		env.ID,
		env.ApplicationID,
		env.Name,
		nullString(env.Description),
		env.CreatedAt,
		env.UpdatedAt,
	).Scan(&env.CreatedAt, &env.UpdatedAt)
	if err != nil {
		translated := translateError(err)
		if errors.Is(translated, store.ErrDuplicateName) || errors.Is(translated, store.ErrDuplicateKey) {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("inserting environment: %w", translated)
	}

	return nil
}

// Get retrieves an environment by ID with its attachment counts.
func (s *EnvironmentStore) Get(ctx context.Context, id string) (*models.Environment, error) {
	query := `SELECT ` + environmentColumns + ` FROM environments e WHERE e.id = $1`

	env, err := scanEnvironment(s.conn().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying environment: %w", err)
	}

	return env, nil
}

// List retrieves an application's environments in creation order.
func (s *EnvironmentStore) List(ctx context.Context, applicationID string) ([]*models.Environment, error) {
	query := `SELECT ` + environmentColumns + `
		FROM environments e
		WHERE e.application_id = $1
		ORDER BY e.created_at ASC, e.name ASC`

	rows, err := s.conn().QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("querying environments: %w", err)
	}
	defer rows.Close()

	var envs []*models.Environment
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning environment row: %w", err)
		}
		envs = append(envs, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating environment rows: %w", err)
	}

	return envs, nil
}

// Count returns the number of environments in an application.
func (s *EnvironmentStore) Count(ctx context.Context, applicationID string) (int, error) {
	var count int
	err := s.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM environments WHERE application_id = $1`, applicationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting environments: %w", err)
	}
	return count, nil
}

// CountAttached returns how many secrets and variables reference an environment.
func (s *EnvironmentStore) CountAttached(ctx context.Context, id string) (models.EnvironmentCounts, error) {
	query := `
		SELECT (SELECT COUNT(*) FROM secret_environments WHERE environment_id = $1),
		       (SELECT COUNT(*) FROM variable_environments WHERE environment_id = $1)`

	var counts models.EnvironmentCounts
	if err := s.conn().QueryRowContext(ctx, query, id).Scan(&counts.Secrets, &counts.Variables); err != nil {
		return counts, fmt.Errorf("counting attached resources: %w", err)
	}
	return counts, nil
}

// FilterOwned returns the subset of ids that belong to the application.
func (s *EnvironmentStore) FilterOwned(ctx context.Context, applicationID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.conn().QueryContext(ctx,
		`SELECT id FROM environments WHERE application_id = $1 AND id = ANY($2)`,
		applicationID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying owned environments: %w", err)
	}
	defer rows.Close()

	var owned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning environment id: %w", err)
		}
		owned = append(owned, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating environment ids: %w", err)
	}

	return owned, nil
}

// Update updates the description of an environment.
func (s *EnvironmentStore) Update(ctx context.Context, env *models.Environment) error {
	env.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx,
		`UPDATE environments SET description = $2, updated_at = $3 WHERE id = $1`,
		env.ID, nullString(env.Description), env.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating environment: %w", err)
	}

	return expectAffected(result)
}

// Delete removes an environment. Attached secrets or variables make this fail
// with store.ErrInvalidReference.
func (s *EnvironmentStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn().ExecContext(ctx, `DELETE FROM environments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting environment: %w", translateError(err))
	}

	return expectAffected(result)
}

// DeleteByApplication removes every environment of an application.
func (s *EnvironmentStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	if _, err := s.conn().ExecContext(ctx,
		`DELETE FROM environments WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("deleting application environments: %w", translateError(err))
	}
	return nil
}
