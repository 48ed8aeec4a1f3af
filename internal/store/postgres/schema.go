package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements is applied in order. Every statement is idempotent.
// Link tables reference their parents without ON DELETE CASCADE: the
// application code removes children explicitly inside one transaction.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_updated_at ON applications(updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS application_members (
		application_id TEXT NOT NULL REFERENCES applications(id),
		principal_id VARCHAR(255) NOT NULL,
		role VARCHAR(10) NOT NULL CHECK (role IN ('OWNER', 'EDITOR', 'VIEWER')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (application_id, principal_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_application_members_principal ON application_members(principal_id)`,
	`CREATE TABLE IF NOT EXISTS environments (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL REFERENCES applications(id),
		name VARCHAR(15) NOT NULL CHECK (name ~ '^[a-z0-9_-]+$'),
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ` + constraintEnvironmentName + ` UNIQUE (application_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS secrets (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL REFERENCES applications(id),
		key VARCHAR(255) NOT NULL,
		encrypted_value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ` + constraintSecretKey + ` UNIQUE (application_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS secret_environments (
		secret_id TEXT NOT NULL REFERENCES secrets(id),
		environment_id TEXT NOT NULL REFERENCES environments(id),
		PRIMARY KEY (secret_id, environment_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_secret_environments_env ON secret_environments(environment_id)`,
	`CREATE TABLE IF NOT EXISTS variables (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL REFERENCES applications(id),
		key VARCHAR(255) NOT NULL,
		value TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ` + constraintVariableKey + ` UNIQUE (application_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS variable_environments (
		variable_id TEXT NOT NULL REFERENCES variables(id),
		environment_id TEXT NOT NULL REFERENCES environments(id),
		PRIMARY KEY (variable_id, environment_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_variable_environments_env ON variable_environments(environment_id)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, statement := range schemaStatements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("running migration %d: %w", i, err)
		}
	}
	return nil
}
