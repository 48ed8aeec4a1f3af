package memstore

import (
	"context"
	"sort"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

type applicationStore struct{ s *Store }

func (a *applicationStore) Create(ctx context.Context, app *models.Application) error {
	return a.s.view(func(st *state) error {
		if _, ok := st.applications[app.ID]; ok {
			return store.ErrDuplicateKey
		}
		now := a.s.now()
		if app.CreatedAt.IsZero() {
			app.CreatedAt = now
		}
		if app.UpdatedAt.IsZero() {
			app.UpdatedAt = now
		}
		st.applications[app.ID] = *app
		return nil
	})
}

func (a *applicationStore) Get(ctx context.Context, id string) (*models.Application, error) {
	var out *models.Application
	err := a.s.view(func(st *state) error {
		app, ok := st.applications[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &app
		return nil
	})
	return out, err
}

func (a *applicationStore) ListForPrincipal(ctx context.Context, principalID string, page store.Page) ([]*models.ApplicationSummary, error) {
	var out []*models.ApplicationSummary
	err := a.s.view(func(st *state) error {
		var all []*models.ApplicationSummary
		for key, m := range st.members {
			if key.principalID != principalID {
				continue
			}
			app, ok := st.applications[key.applicationID]
			if !ok {
				continue
			}
			all = append(all, &models.ApplicationSummary{
				Application: app,
				Role:        m.Role,
				Counts:      applicationCounts(st, app.ID),
			})
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
				return all[i].UpdatedAt.After(all[j].UpdatedAt)
			}
			return all[i].ID < all[j].ID
		})

		if page.Offset >= len(all) {
			return nil
		}
		all = all[page.Offset:]
		if page.Limit > 0 && page.Limit < len(all) {
			all = all[:page.Limit]
		}
		out = all
		return nil
	})
	return out, err
}

func (a *applicationStore) Counts(ctx context.Context, id string) (models.ApplicationCounts, error) {
	var out models.ApplicationCounts
	err := a.s.view(func(st *state) error {
		out = applicationCounts(st, id)
		return nil
	})
	return out, err
}

func (a *applicationStore) Update(ctx context.Context, app *models.Application) error {
	return a.s.view(func(st *state) error {
		existing, ok := st.applications[app.ID]
		if !ok {
			return store.ErrNotFound
		}
		existing.Name = app.Name
		existing.Description = app.Description
		existing.UpdatedAt = a.s.now()
		app.UpdatedAt = existing.UpdatedAt
		app.CreatedAt = existing.CreatedAt
		st.applications[app.ID] = existing
		return nil
	})
}

func (a *applicationStore) Delete(ctx context.Context, id string) error {
	return a.s.view(func(st *state) error {
		if _, ok := st.applications[id]; !ok {
			return store.ErrNotFound
		}
		if applicationCounts(st, id) != (models.ApplicationCounts{}) {
			return store.ErrInvalidReference
		}
		for key := range st.members {
			if key.applicationID == id {
				return store.ErrInvalidReference
			}
		}
		delete(st.applications, id)
		return nil
	})
}

// Lock only checks existence; the store mutex already serializes transactions.
func (a *applicationStore) Lock(ctx context.Context, id string) error {
	return a.s.view(func(st *state) error {
		if _, ok := st.applications[id]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
}

type membershipStore struct{ s *Store }

func (m *membershipStore) Get(ctx context.Context, applicationID, principalID string) (*models.Membership, error) {
	var out *models.Membership
	err := m.s.view(func(st *state) error {
		mem, ok := st.members[memberKey{applicationID, principalID}]
		if !ok {
			return store.ErrNotFound
		}
		out = &mem
		return nil
	})
	return out, err
}

func (m *membershipStore) List(ctx context.Context, applicationID string) ([]*models.Membership, error) {
	var out []*models.Membership
	err := m.s.view(func(st *state) error {
		for key, mem := range st.members {
			if key.applicationID == applicationID {
				mem := mem
				out = append(out, &mem)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Role.Rank() != out[j].Role.Rank() {
				return out[i].Role.Rank() > out[j].Role.Rank()
			}
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].PrincipalID < out[j].PrincipalID
		})
		return nil
	})
	return out, err
}

func (m *membershipStore) Upsert(ctx context.Context, mem *models.Membership) error {
	return m.s.view(func(st *state) error {
		if _, ok := st.applications[mem.ApplicationID]; !ok {
			return store.ErrInvalidReference
		}
		key := memberKey{mem.ApplicationID, mem.PrincipalID}
		now := m.s.now()
		if existing, ok := st.members[key]; ok {
			mem.CreatedAt = existing.CreatedAt
		} else {
			mem.CreatedAt = now
		}
		mem.UpdatedAt = now
		st.members[key] = *mem
		return nil
	})
}

func (m *membershipStore) Delete(ctx context.Context, applicationID, principalID string) error {
	return m.s.view(func(st *state) error {
		key := memberKey{applicationID, principalID}
		if _, ok := st.members[key]; !ok {
			return store.ErrNotFound
		}
		delete(st.members, key)
		return nil
	})
}

func (m *membershipStore) CountByRole(ctx context.Context, applicationID string, role models.Role) (int, error) {
	n := 0
	err := m.s.view(func(st *state) error {
		for key, mem := range st.members {
			if key.applicationID == applicationID && mem.Role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *membershipStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	return m.s.view(func(st *state) error {
		for key := range st.members {
			if key.applicationID == applicationID {
				delete(st.members, key)
			}
		}
		return nil
	})
}
