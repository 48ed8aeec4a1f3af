package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithDB(db, logger), mock
}

func TestApplicationCreateAndGet(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO applications")).
		WithArgs("app-1", "billing", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	app := &models.Application{ID: "app-1", Name: "billing"}
	require.NoError(t, s.Applications().Create(ctx, app))
	assert.Equal(t, now, app.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow("app-1", "billing", "payments", now, now))

	got, err := s.Applications().Get(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, "payments", *got.Description)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationGetMissingReturnsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}))

	_, err := s.Applications().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationListForPrincipalScansRoleAndCounts(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN application_members m")).
		WithArgs("user-1", 3, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "created_at", "updated_at", "role", "envs", "secrets", "vars",
		}).
			AddRow("app-2", "newer", nil, now, now, "EDITOR", 2, 1, 4).
			AddRow("app-1", "older", nil, now, now.Add(-time.Hour), "OWNER", 0, 0, 0))

	summaries, err := s.Applications().ListForPrincipal(context.Background(), "user-1", store.Page{Limit: 3})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, models.RoleEditor, summaries[0].Role)
	assert.Equal(t, models.ApplicationCounts{Environments: 2, Secrets: 1, Variables: 4}, summaries[0].Counts)
	assert.Nil(t, summaries[0].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRowReturnsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE environments SET description")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Environments().Update(context.Background(), &models.Environment{ID: "env-x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnvironmentCreateDuplicateName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO environments")).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintEnvironmentName})

	err := s.Environments().Create(context.Background(), &models.Environment{
		ID: "env-1", ApplicationID: "app-1", Name: "production",
	})
	assert.ErrorIs(t, err, store.ErrDuplicateName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSecretCreateDuplicateKey(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO secrets")).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintSecretKey})

	err := s.Secrets().Create(context.Background(), &models.Secret{
		ID: "sec-1", ApplicationID: "app-1", Key: "API_KEY", EncryptedValue: "aa:bb",
	})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSecretListLoadsEnvironmentRefs(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM secrets")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "application_id", "key", "encrypted_value", "created_at", "updated_at",
		}).
			AddRow("sec-a", "app-1", "A_KEY", "00:11", now, now).
			AddRow("sec-b", "app-1", "B_KEY", "22:33", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM secret_environments l")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"owner", "id", "name"}).
			AddRow("sec-a", "env-1", "development").
			AddRow("sec-a", "env-2", "production"))

	secrets, err := s.Secrets().List(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, secrets, 2)
	assert.Equal(t, []models.EnvironmentRef{
		{ID: "env-1", Name: "development"},
		{ID: "env-2", Name: "production"},
	}, secrets[0].Environments)
	assert.NotNil(t, secrets[1].Environments)
	assert.Empty(t, secrets[1].Environments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitsReplacedLinks(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM variable_environments WHERE variable_id = $1")).
		WithArgs("var-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO variable_environments")).
		WithArgs("var-1", "env-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO variable_environments")).
		WithArgs("var-1", "env-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx store.Store) error {
		return tx.Variables().ReplaceEnvironments(context.Background(), "var-1", []string{"env-1", "env-2"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM secret_environments")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx store.Store) error {
		if err := tx.Secrets().ReplaceEnvironments(context.Background(), "sec-1", nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterOwnedSkipsQueryForEmptyInput(t *testing.T) {
	s, mock := newMockStore(t)

	owned, err := s.Environments().FilterOwned(context.Background(), "app-1", nil)
	require.NoError(t, err)
	assert.Empty(t, owned)

	mock.ExpectQuery(regexp.QuoteMeta("id = ANY($2)")).
		WithArgs("app-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("env-1"))

	owned, err = s.Environments().FilterOwned(context.Background(), "app-1", []string{"env-1", "env-9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"env-1"}, owned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range schemaStatements {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"environment name", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintEnvironmentName}, store.ErrDuplicateName},
		{"variable key", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintVariableKey}, store.ErrDuplicateKey},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, store.ErrInvalidReference},
		{"text fallback", errors.New(`duplicate key value violates unique constraint "environments_application_name_key"`), store.ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.err), tt.want)
		})
	}
}
