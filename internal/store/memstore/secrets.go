package memstore

import (
	"context"
	"sort"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

type secretStore struct{ s *Store }

func (r *secretStore) Create(ctx context.Context, secret *models.Secret) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.applications[secret.ApplicationID]; !ok {
			return store.ErrInvalidReference
		}
		for _, existing := range st.secrets {
			if existing.ApplicationID == secret.ApplicationID && existing.Key == secret.Key {
				return store.ErrDuplicateKey
			}
		}
		now := r.s.now()
		if secret.CreatedAt.IsZero() {
			secret.CreatedAt = now
		}
		if secret.UpdatedAt.IsZero() {
			secret.UpdatedAt = now
		}
		stored := *secret
		stored.Environments = nil
		st.secrets[secret.ID] = stored
		return nil
	})
}

func (r *secretStore) Get(ctx context.Context, id string) (*models.Secret, error) {
	var out *models.Secret
	err := r.s.view(func(st *state) error {
		secret, ok := st.secrets[id]
		if !ok {
			return store.ErrNotFound
		}
		secret.Environments = refsFor(st, st.secretLinks[id])
		out = &secret
		return nil
	})
	return out, err
}

func (r *secretStore) List(ctx context.Context, applicationID string) ([]*models.Secret, error) {
	return r.filter(func(st *state, sec models.Secret) bool {
		return sec.ApplicationID == applicationID
	})
}

func (r *secretStore) ListByEnvironment(ctx context.Context, environmentID string) ([]*models.Secret, error) {
	return r.filter(func(st *state, sec models.Secret) bool {
		_, ok := st.secretLinks[sec.ID][environmentID]
		return ok
	})
}

func (r *secretStore) ListAll(ctx context.Context) ([]*models.Secret, error) {
	return r.filter(func(*state, models.Secret) bool { return true })
}

func (r *secretStore) filter(keep func(*state, models.Secret) bool) ([]*models.Secret, error) {
	var out []*models.Secret
	err := r.s.view(func(st *state) error {
		for _, sec := range st.secrets {
			if !keep(st, sec) {
				continue
			}
			sec := sec
			sec.Environments = refsFor(st, st.secretLinks[sec.ID])
			out = append(out, &sec)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Key != out[j].Key {
				return out[i].Key < out[j].Key
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func (r *secretStore) Update(ctx context.Context, secret *models.Secret) error {
	return r.s.view(func(st *state) error {
		existing, ok := st.secrets[secret.ID]
		if !ok {
			return store.ErrNotFound
		}
		for id, other := range st.secrets {
			if id != secret.ID && other.ApplicationID == existing.ApplicationID && other.Key == secret.Key {
				return store.ErrDuplicateKey
			}
		}
		existing.Key = secret.Key
		existing.EncryptedValue = secret.EncryptedValue
		existing.UpdatedAt = r.s.now()
		secret.UpdatedAt = existing.UpdatedAt
		st.secrets[secret.ID] = existing
		return nil
	})
}

func (r *secretStore) ReplaceEnvironments(ctx context.Context, secretID string, environmentIDs []string) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.secrets[secretID]; !ok {
			return store.ErrInvalidReference
		}
		return replaceLinks(st.secretLinks, st, secretID, environmentIDs)
	})
}

func (r *secretStore) Delete(ctx context.Context, id string) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.secrets[id]; !ok {
			return store.ErrNotFound
		}
		delete(st.secrets, id)
		delete(st.secretLinks, id)
		return nil
	})
}

func (r *secretStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	return r.s.view(func(st *state) error {
		for id, sec := range st.secrets {
			if sec.ApplicationID == applicationID {
				delete(st.secrets, id)
				delete(st.secretLinks, id)
			}
		}
		return nil
	})
}
