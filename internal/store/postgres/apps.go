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

// ApplicationStore implements store.ApplicationStore using PostgreSQL.
type ApplicationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *ApplicationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new application.
func (s *ApplicationStore) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		app.ID,
		app.Name,
		nullString(app.Description),
		app.CreatedAt,
		app.UpdatedAt,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting application: %w", translateError(err))
	}

	return nil
}

// Get retrieves an application by ID.
func (s *ApplicationStore) Get(ctx context.Context, id string) (*models.Application, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM applications
		WHERE id = $1`

	app := &models.Application{}
	var description sql.NullString
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.Name,
		&description,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying application: %w", translateError(err))
	}
	app.Description = stringPtr(description)

	return app, nil
}

// ListForPrincipal retrieves the applications a principal belongs to.
func (s *ApplicationStore) ListForPrincipal(ctx context.Context, principalID string, page store.Page) ([]*models.ApplicationSummary, error) {
	query := `
		SELECT a.id, a.name, a.description, a.created_at, a.updated_at, m.role,
		       (SELECT COUNT(*) FROM environments e WHERE e.application_id = a.id),
		       (SELECT COUNT(*) FROM secrets sc WHERE sc.application_id = a.id),
		       (SELECT COUNT(*) FROM variables v WHERE v.application_id = a.id)
		FROM applications a
		JOIN application_members m ON m.application_id = a.id
		WHERE m.principal_id = $1
		ORDER BY a.updated_at DESC, a.id ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.conn().QueryContext(ctx, query, principalID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying applications: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ApplicationSummary
	for rows.Next() {
		summary := &models.ApplicationSummary{}
		var description sql.NullString
		if err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&description,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.Role,
			&summary.Counts.Environments,
			&summary.Counts.Secrets,
			&summary.Counts.Variables,
		); err != nil {
			return nil, fmt.Errorf("scanning application row: %w", err)
		}
		summary.Description = stringPtr(description)
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating application rows: %w", err)
	}

	return summaries, nil
}

// Counts returns how many environments, secrets and variables an application owns.
func (s *ApplicationStore) Counts(ctx context.Context, id string) (models.ApplicationCounts, error) {
	query := `
		SELECT (SELECT COUNT(*) FROM environments WHERE application_id = $1),
		       (SELECT COUNT(*) FROM secrets WHERE application_id = $1),
		       (SELECT COUNT(*) FROM variables WHERE application_id = $1)`

	var counts models.ApplicationCounts
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&counts.Environments,
		&counts.Secrets,
		&counts.Variables,
	)
	if err != nil {
		return counts, fmt.Errorf("counting application resources: %w", err)
	}
	return counts, nil
}

// Update updates an existing application.
func (s *ApplicationStore) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE applications
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1`

	app.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx, query,
		app.ID,
		app.Name,
		nullString(app.Description),
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating application: %w", translateError(err))
	}

	return expectAffected(result)
}

// Delete removes an application row.
func (s *ApplicationStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn().ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting application: %w", translateError(err))
	}

	return expectAffected(result)
}

// Lock takes a row lock on the application until the transaction ends.
func (s *ApplicationStore) Lock(ctx context.Context, id string) error {
	var locked string
	err := s.conn().QueryRowContext(ctx, `SELECT id FROM applications WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("locking application: %w", err)
	}
	return nil
}

// expectAffected maps a zero row count to store.ErrNotFound.
func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
