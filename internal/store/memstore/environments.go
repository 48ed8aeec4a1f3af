package memstore

import (
	"context"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

type environmentStore struct{ s *Store }

func (e *environmentStore) Create(ctx context.Context, env *models.Environment) error {
	return e.s.view(func(st *state) error {
		if _, ok := st.applications[env.ApplicationID]; !ok {
			return store.ErrInvalidReference
		}
		for _, existing := range st.environments {
			if existing.ApplicationID == env.ApplicationID && existing.Name == env.Name {
				return store.ErrDuplicateName
			}
		}
		now := e.s.now()
		if env.CreatedAt.IsZero() {
			env.CreatedAt = now
		}
		if env.UpdatedAt.IsZero() {
			env.UpdatedAt = now
		}
		env.Counts = models.EnvironmentCounts{}
		st.environments[env.ID] = *env
		return nil
	})
}

func (e *environmentStore) Get(ctx context.Context, id string) (*models.Environment, error) {
	var out *models.Environment
	err := e.s.view(func(st *state) error {
		env, ok := st.environments[id]
		if !ok {
			return store.ErrNotFound
		}
		env.Counts = environmentCounts(st, id)
		out = &env
		return nil
	})
	return out, err
}

func (e *environmentStore) List(ctx context.Context, applicationID string) ([]*models.Environment, error) {
	var out []*models.Environment
	err := e.s.view(func(st *state) error {
		var envs []models.Environment
		for _, env := range st.environments {
			if env.ApplicationID == applicationID {
				envs = append(envs, env)
			}
		}
		sortEnvironments(envs)
		for _, env := range envs {
			env := env
			env.Counts = environmentCounts(st, env.ID)
			out = append(out, &env)
		}
		return nil
	})
	return out, err
}

func (e *environmentStore) Count(ctx context.Context, applicationID string) (int, error) {
	var n int
	err := e.s.view(func(st *state) error {
		n = applicationCounts(st, applicationID).Environments
		return nil
	})
	return n, err
}

func (e *environmentStore) CountAttached(ctx context.Context, id string) (models.EnvironmentCounts, error) {
	var out models.EnvironmentCounts
	err := e.s.view(func(st *state) error {
		out = environmentCounts(st, id)
		return nil
	})
	return out, err
}

func (e *environmentStore) FilterOwned(ctx context.Context, applicationID string, ids []string) ([]string, error) {
	var out []string
	err := e.s.view(func(st *state) error {
		for _, id := range ids {
			if env, ok := st.environments[id]; ok && env.ApplicationID == applicationID {
				out = append(out, id)
			}
		}
		return nil
	})
	return out, err
}

func (e *environmentStore) Update(ctx context.Context, env *models.Environment) error {
	return e.s.view(func(st *state) error {
		existing, ok := st.environments[env.ID]
		if !ok {
			return store.ErrNotFound
		}
		existing.Description = env.Description
		existing.UpdatedAt = e.s.now()
		env.UpdatedAt = existing.UpdatedAt
		st.environments[env.ID] = existing
		return nil
	})
}

func (e *environmentStore) Delete(ctx context.Context, id string) error {
	return e.s.view(func(st *state) error {
		if _, ok := st.environments[id]; !ok {
			return store.ErrNotFound
		}
		if environmentCounts(st, id).InUse() {
			return store.ErrInvalidReference
		}
		delete(st.environments, id)
		return nil
	})
}

func (e *environmentStore) DeleteByApplication(ctx context.Context, applicationID string) error {
	return e.s.view(func(st *state) error {
		for id, env := range st.environments {
			if env.ApplicationID != applicationID {
				continue
			}
			if environmentCounts(st, id).InUse() {
				return store.ErrInvalidReference
			}
			delete(st.environments, id)
		}
		return nil
	})
}
