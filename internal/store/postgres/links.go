package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/narvanalabs/envkeep/internal/models"
)

// linkTable describes a join table between an owner (secret or variable)
// and environments.
type linkTable struct {
	table       string
	ownerTable  string
	ownerColumn string
}

var (
	secretLinks   = linkTable{table: "secret_environments", ownerTable: "secrets", ownerColumn: "secret_id"}
	variableLinks = linkTable{table: "variable_environments", ownerTable: "variables", ownerColumn: "variable_id"}
)

// refs loads the environment references of the given owners keyed by owner ID.
func (l linkTable) refs(ctx context.Context, q queryable, ownerIDs []string) (map[string][]models.EnvironmentRef, error) {
	out := make(map[string][]models.EnvironmentRef, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT l.%[1]s, e.id, e.name
		FROM %[2]s l
		JOIN environments e ON e.id = l.environment_id
		WHERE l.%[1]s = ANY($1)
		ORDER BY e.created_at ASC, e.name ASC`, l.ownerColumn, l.table)

	rows, err := q.QueryContext(ctx, query, pq.Array(ownerIDs))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", l.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID string
		var ref models.EnvironmentRef
		if err := rows.Scan(&ownerID, &ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", l.table, err)
		}
		out[ownerID] = append(out[ownerID], ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", l.table, err)
	}

	return out, nil
}

// replace deletes every link of an owner and inserts the given set.
func (l linkTable) replace(ctx context.Context, q queryable, ownerID string, environmentIDs []string) error {
	if _, err := q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, l.table, l.ownerColumn), ownerID); err != nil {
		return fmt.Errorf("clearing %s: %w", l.table, err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, environment_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, l.table, l.ownerColumn)
	for _, envID := range environmentIDs {
		if _, err := q.ExecContext(ctx, insert, ownerID, envID); err != nil {
			return fmt.Errorf("inserting %s: %w", l.table, translateError(err))
		}
	}

	return nil
}

// deleteOwner removes the links of one owner.
func (l linkTable) deleteOwner(ctx context.Context, q queryable, ownerID string) error {
	if _, err := q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, l.table, l.ownerColumn), ownerID); err != nil {
		return fmt.Errorf("deleting %s: %w", l.table, err)
	}
	return nil
}

// deleteApplication removes the links of every owner in an application.
func (l linkTable) deleteApplication(ctx context.Context, q queryable, applicationID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE %[2]s IN (SELECT id FROM %[3]s WHERE application_id = $1)`,
		l.table, l.ownerColumn, l.ownerTable)
	if _, err := q.ExecContext(ctx, query, applicationID); err != nil {
		return fmt.Errorf("deleting %s: %w", l.table, err)
	}
	return nil
}
