package postgres

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// setupTestDB opens TEST_DATABASE_URL and applies a clean schema.
// Set TEST_DATABASE_URL environment variable to run these tests.
func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping database: %v", err)
	}

	for _, table := range []string{
		"variable_environments", "secret_environments", "variables", "secrets",
		"environments", "application_members", "applications",
	} {
		_, _ = db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE")
	}
	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func genEnvName() gopter.Gen {
	return gen.SliceOfN(8, gen.OneConstOf('a', 'b', 'z', '0', '9', '-', '_')).
		Map(func(rs []rune) string { return string(rs) })
}

// Environment names are unique per application and round-trip through the table.
func TestEnvironmentNameUniqueness(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("second create with same name is rejected", prop.ForAll(
		func(name string) bool {
			app := &models.Application{ID: uuid.New().String(), Name: "prop-app"}
			if err := s.Applications().Create(ctx, app); err != nil {
				return false
			}

			first := &models.Environment{ID: uuid.New().String(), ApplicationID: app.ID, Name: name}
			if err := s.Environments().Create(ctx, first); err != nil {
				return false
			}
			got, err := s.Environments().Get(ctx, first.ID)
			if err != nil || got.Name != name {
				return false
			}

			second := &models.Environment{ID: uuid.New().String(), ApplicationID: app.ID, Name: name}
			return s.Environments().Create(ctx, second) == store.ErrDuplicateName
		},
		genEnvName(),
	))

	properties.TestingRun(t)
}

// Deleting an application's children then the application leaves nothing behind.
func TestApplicationCascadeDelete(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	app := &models.Application{ID: uuid.New().String(), Name: "cascade"}
	env := &models.Environment{ID: uuid.New().String(), ApplicationID: app.ID, Name: "production"}
	secret := &models.Secret{ID: uuid.New().String(), ApplicationID: app.ID, Key: "TOKEN", EncryptedValue: "00:11"}

	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Applications().Create(ctx, app); err != nil {
			return err
		}
		if err := tx.Memberships().Upsert(ctx, &models.Membership{ApplicationID: app.ID, PrincipalID: "owner", Role: models.RoleOwner}); err != nil {
			return err
		}
		if err := tx.Environments().Create(ctx, env); err != nil {
			return err
		}
		if err := tx.Secrets().Create(ctx, secret); err != nil {
			return err
		}
		return tx.Secrets().ReplaceEnvironments(ctx, secret.ID, []string{env.ID})
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}

	counts, err := s.Environments().CountAttached(ctx, env.ID)
	if err != nil || counts.Secrets != 1 {
		t.Fatalf("expected one attached secret, got %+v (%v)", counts, err)
	}

	err = s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Secrets().DeleteByApplication(ctx, app.ID); err != nil {
			return err
		}
		if err := tx.Variables().DeleteByApplication(ctx, app.ID); err != nil {
			return err
		}
		if err := tx.Environments().DeleteByApplication(ctx, app.ID); err != nil {
			return err
		}
		if err := tx.Memberships().DeleteByApplication(ctx, app.ID); err != nil {
			return err
		}
		return tx.Applications().Delete(ctx, app.ID)
	})
	if err != nil {
		t.Fatalf("deleting: %v", err)
	}

	if _, err := s.Secrets().Get(ctx, secret.ID); err != store.ErrNotFound {
		t.Errorf("expected secret to be gone, got %v", err)
	}
	if _, err := s.Applications().Get(ctx, app.ID); err != store.ErrNotFound {
		t.Errorf("expected application to be gone, got %v", err)
	}
}
