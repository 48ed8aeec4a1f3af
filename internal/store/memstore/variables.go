package memstore

import (
	"context"
	"sort"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

type variableStore struct{ s *Store }

func (r *variableStore) Create(ctx context.Context, variable *models.Variable) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.applications[variable.ApplicationID]; !ok {
			return store.ErrInvalidReference
		}
		for _, existing := range st.variables {
			if existing.ApplicationID == variable.ApplicationID && existing.Key == variable.Key {
				return store.ErrDuplicateKey
			}
		}
		now := r.s.now()
		if variable.CreatedAt.IsZero() {
			variable.CreatedAt = now
		}
		if variable.UpdatedAt.IsZero() {
			variable.UpdatedAt = now
		}
		stored := *variable
		stored.Environments = nil
		st.variables[variable.ID] = stored
		return nil
	})
}

func (r *variableStore) Get(ctx context.Context, id string) (*models.Variable, error) {
	var out *models.Variable
	err := r.s.view(func(st *state) error {
		variable, ok := st.variables[id]
		if !ok {
			return store.ErrNotFound
		}
		variable.Environments = refsFor(st, st.variableLinks[id])
		out = &variable
		return nil
	})
	return out, err
}

func (r *variableStore) List(ctx context.Context, applicationID string) ([]*models.Variable, error) {
	return r.filter(func(st *state, v models.Variable) bool {
		return v.ApplicationID == applicationID
	})
}

func (r *variableStore) ListByEnvironment(ctx context.Context, environmentID string) ([]*models.Variable, error) {
	return r.filter(func(st *state, v models.Variable) bool {
		_, ok := st.variableLinks[v.ID][environmentID]
		return ok
	})
}

func (r *variableStore) filter(keep func(*state, models.Variable) bool) ([]*models.Variable, error) {
	var out []*models.Variable
	err := r.s.view(func(st *state) error {
		for _, v := range st.variables {
			if !keep(st, v) {
				continue
			}
			v := v
			v.Environments = refsFor(st, st.variableLinks[v.ID])
			out = append(out, &v)
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

func (r *variableStore) Update(ctx context.Context, variable *models.Variable) error {
	return r.s.view(func(st *state) error {
		existing, ok := st.variables[variable.ID]
		if !ok {
			return store.ErrNotFound
		}
		for id, other := range st.variables {
			if id != variable.ID && other.ApplicationID == existing.ApplicationID && other.Key == variable.Key {
				return store.ErrDuplicateKey
			}
		}
		existing.Key = variable.Key
		existing.Value = variable.Value
		existing.UpdatedAt = r.s.now()
		variable.UpdatedAt = existing.UpdatedAt
		st.variables[variable.ID] = existing
		return nil
	})
}

func (r *variableStore) ReplaceEnvironments(ctx context.Context, variableID string, environmentIDs []string) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.variables[variableID]; !ok {
			return store.ErrInvalidReference
		}
		return replaceLinks(st.variableLinks, st, variableID, environmentIDs)
	})
}

func (r *variableStore) Delete(ctx context.Context, id string) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.variables[id]; !ok {
			return store.ErrNotFound
		}
		delete(st.variables, id)
		delete(st.variableLinks, id)
		return nil
	})
}

func (r *variableStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	return r.s.view(func(st *state) error {
		for id, v := range st.variables {
			if v.ApplicationID == applicationID {
				delete(st.variables, id)
				delete(st.variableLinks, id)
			}
		}
		return nil
	})
}
