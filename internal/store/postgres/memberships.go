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

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *MembershipStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Get retrieves the membership of a principal on an application.
func (s *MembershipStore) Get(ctx context.Context, applicationID, principalID string) (*models.Membership, error) {
	query := `
		SELECT application_id, principal_id, role, created_at, updated_at
		FROM application_members
		WHERE application_id = $1 AND principal_id = $2`

	m := &models.Membership{}
	err := s.conn().QueryRowContext(ctx, query, applicationID, principalID).Scan(
		&m.ApplicationID,
		&m.PrincipalID,
		&m.Role,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying membership: %w", err)
	}

	return m, nil
}

// List retrieves the members of an application, owners first.
func (s *MembershipStore) List(ctx context.Context, applicationID string) ([]*models.Membership, error) {
	query := `
		SELECT application_id, principal_id, role, created_at, updated_at
		FROM application_members
		WHERE application_id = $1
		ORDER BY CASE role WHEN 'OWNER' THEN 0 WHEN 'EDITOR' THEN 1 ELSE 2 END, created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ApplicationID, &m.PrincipalID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating membership rows: %w", err)
	}

	return members, nil
}

// Upsert creates a membership or changes its role.
func (s *MembershipStore) Upsert(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO application_members (application_id, principal_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (application_id, principal_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	err := s.conn().QueryRowContext(ctx, query, m.ApplicationID, m.PrincipalID, m.Role, now).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting membership: %w", translateError(err))
	}

	return nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, applicationID, principalID string) error {
	result, err := s.conn().ExecContext(ctx,
		`DELETE FROM application_members WHERE application_id = $1 AND principal_id = $2`,
		applicationID, principalID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}

	return expectAffected(result)
}

// CountByRole returns the number of members holding a role.
func (s *MembershipStore) CountByRole(ctx context.Context, applicationID string, role models.Role) (int, error) {
	var count int
	err := s.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM application_members WHERE application_id = $1 AND role = $2`,
		applicationID, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting memberships: %w", err)
	}
	return count, nil
}

// DeleteByApplication removes every membership of an application.
func (s *MembershipStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	if _, err := s.conn().ExecContext(ctx,
		`DELETE FROM application_members WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("deleting application memberships: %w", err)
	}
	return nil
}
