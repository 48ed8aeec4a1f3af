package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

func seedApp(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.Applications().Create(context.Background(), &models.Application{ID: id, Name: id}))
}

func TestWithTxDiscardsChangesOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedApp(t, s, "app-1")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.Environments().Create(ctx, &models.Environment{ID: "env-1", ApplicationID: "app-1", Name: "dev"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Environments().Get(ctx, "env-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxPublishesOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedApp(t, s, "app-1")

	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Environments().Create(ctx, &models.Environment{ID: "env-1", ApplicationID: "app-1", Name: "dev"}); err != nil {
			return err
		}
		return tx.WithTx(ctx, func(inner store.Store) error {
			return inner.Variables().Create(ctx, &models.Variable{ID: "var-1", ApplicationID: "app-1", Key: "PORT", Value: "8080"})
		})
	})
	require.NoError(t, err)

	v, err := s.Variables().Get(ctx, "var-1")
	require.NoError(t, err)
	assert.Equal(t, "8080", v.Value)
	assert.Empty(t, v.Environments)
}

func TestUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedApp(t, s, "app-1")
	seedApp(t, s, "app-2")

	require.NoError(t, s.Environments().Create(ctx, &models.Environment{ID: "e1", ApplicationID: "app-1", Name: "prod"}))
	err := s.Environments().Create(ctx, &models.Environment{ID: "e2", ApplicationID: "app-1", Name: "prod"})
	assert.ErrorIs(t, err, store.ErrDuplicateName)
	require.NoError(t, s.Environments().Create(ctx, &models.Environment{ID: "e3", ApplicationID: "app-2", Name: "prod"}))

	require.NoError(t, s.Secrets().Create(ctx, &models.Secret{ID: "s1", ApplicationID: "app-1", Key: "K"}))
	err = s.Secrets().Create(ctx, &models.Secret{ID: "s2", ApplicationID: "app-1", Key: "K"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestListForPrincipalOrdersAndPages(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Applications().Create(ctx, &models.Application{
			ID: id, Name: id, CreatedAt: base, UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
		require.NoError(t, s.Memberships().Upsert(ctx, &models.Membership{ApplicationID: id, PrincipalID: "u", Role: models.RoleViewer}))
	}
	require.NoError(t, s.Memberships().Upsert(ctx, &models.Membership{ApplicationID: "a", PrincipalID: "other", Role: models.RoleOwner}))

	page, err := s.Applications().ListForPrincipal(ctx, "u", store.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, err = s.Applications().ListForPrincipal(ctx, "u", store.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, models.RoleViewer, page[0].Role)
}

func TestLinksAndCounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedApp(t, s, "app-1")

	require.NoError(t, s.Environments().Create(ctx, &models.Environment{ID: "e1", ApplicationID: "app-1", Name: "dev"}))
	require.NoError(t, s.Secrets().Create(ctx, &models.Secret{ID: "s1", ApplicationID: "app-1", Key: "K"}))
	require.NoError(t, s.Secrets().ReplaceEnvironments(ctx, "s1", []string{"e1"}))

	env, err := s.Environments().Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnvironmentCounts{Secrets: 1}, env.Counts)
	assert.ErrorIs(t, s.Environments().Delete(ctx, "e1"), store.ErrInvalidReference)

	assert.ErrorIs(t, s.Secrets().ReplaceEnvironments(ctx, "s1", []string{"missing"}), store.ErrInvalidReference)

	require.NoError(t, s.Secrets().Delete(ctx, "s1"))
	require.NoError(t, s.Environments().Delete(ctx, "e1"))
}
