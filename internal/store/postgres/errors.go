package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/narvanalabs/envkeep/internal/store"
)

// PostgreSQL SQLSTATE codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidTextRep      = "22P02"
)

// Named constraints from the schema.
const (
	constraintEnvironmentName = "environments_application_name_key"
	constraintSecretKey       = "secrets_application_key_key"
	constraintVariableKey     = "variables_application_key_key"
)

// translateError maps driver errors onto store sentinels. Unknown errors are
// returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if pgErr.ConstraintName == constraintEnvironmentName {
				return store.ErrDuplicateName
			}
			return store.ErrDuplicateKey
		case codeForeignKeyViolation:
			return store.ErrInvalidReference
		case codeInvalidTextRep:
			return store.ErrNotFound
		}
		return err
	}
	if isUniqueViolation(err) {
		if strings.Contains(err.Error(), constraintEnvironmentName) {
			return store.ErrDuplicateName
		}
		return store.ErrDuplicateKey
	}
	return err
}

// isUniqueViolation checks if the error text looks like a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), codeUniqueViolation) ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
