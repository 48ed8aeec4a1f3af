// Package memstore provides an in-memory implementation of the store
// interfaces. It backs the "memory" store driver and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

type memberKey struct {
	applicationID string
	principalID   string
}

type state struct {
	applications map[string]models.Application
	members      map[memberKey]models.Membership
	environments map[string]models.Environment
	secrets      map[string]models.Secret
	variables    map[string]models.Variable
	// secret/variable ID -> set of environment IDs
	secretLinks   map[string]map[string]struct{}
	variableLinks map[string]map[string]struct{}
}

func newState() *state {
	return &state{
		applications:  make(map[string]models.Application),
		members:       make(map[memberKey]models.Membership),
		environments:  make(map[string]models.Environment),
		secrets:       make(map[string]models.Secret),
		variables:     make(map[string]models.Variable),
		secretLinks:   make(map[string]map[string]struct{}),
		variableLinks: make(map[string]map[string]struct{}),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.applications {
		c.applications[k] = v
	}
	for k, v := range st.members {
		c.members[k] = v
	}
	for k, v := range st.environments {
		c.environments[k] = v
	}
	for k, v := range st.secrets {
		c.secrets[k] = v
	}
	for k, v := range st.variables {
		c.variables[k] = v
	}
	c.secretLinks = cloneLinks(st.secretLinks)
	c.variableLinks = cloneLinks(st.variableLinks)
	return c
}

func cloneLinks(in map[string]map[string]struct{}) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(in))
	for owner, envs := range in {
		set := make(map[string]struct{}, len(envs))
		for id := range envs {
			set[id] = struct{}{}
		}
		out[owner] = set
	}
	return out
}

// Store is an in-memory store.Store. All operations are serialized by a
// single mutex; a transaction works on a copy that replaces the live state
// on commit.
type Store struct {
	mu    *sync.Mutex
	root  **state
	st    *state
	inTx  bool
	clock func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	st := newState()
	return &Store{
		mu:    &sync.Mutex{},
		root:  &st,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Applications returns the ApplicationStore.
func (s *Store) Applications() store.ApplicationStore { return &applicationStore{s} }

// Memberships returns the MembershipStore.
func (s *Store) Memberships() store.MembershipStore { return &membershipStore{s} }

// Environments returns the EnvironmentStore.
func (s *Store) Environments() store.EnvironmentStore { return &environmentStore{s} }

// Secrets returns the SecretStore.
func (s *Store) Secrets() store.SecretStore { return &secretStore{s} }

// Variables returns the VariableStore.
func (s *Store) Variables() store.VariableStore { return &variableStore{s} }

// WithTx runs fn against a snapshot and publishes it when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, root: s.root, st: (*s.root).clone(), inTx: true, clock: s.clock}
	if err := fn(tx); err != nil {
		return err
	}
	*s.root = tx.st
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// view runs fn with the current state, locking unless inside a transaction.
func (s *Store) view(fn func(st *state) error) error {
	if s.inTx {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(*s.root)
}

func (s *Store) now() time.Time {
	return s.clock()
}

func refsFor(st *state, links map[string]struct{}) []models.EnvironmentRef {
	refs := make([]models.EnvironmentRef, 0, len(links))
	envs := make([]models.Environment, 0, len(links))
	for id := range links {
		if env, ok := st.environments[id]; ok {
			envs = append(envs, env)
		}
	}
	sortEnvironments(envs)
	for _, env := range envs {
		refs = append(refs, models.EnvironmentRef{ID: env.ID, Name: env.Name})
	}
	return refs
}

func sortEnvironments(envs []models.Environment) {
	sort.Slice(envs, func(i, j int) bool {
		if !envs[i].CreatedAt.Equal(envs[j].CreatedAt) {
			return envs[i].CreatedAt.Before(envs[j].CreatedAt)
		}
		return envs[i].Name < envs[j].Name
	})
}

func countLinks(links map[string]map[string]struct{}, envID string) int {
	n := 0
	for _, envs := range links {
		if _, ok := envs[envID]; ok {
			n++
		}
	}
	return n
}

func environmentCounts(st *state, envID string) models.EnvironmentCounts {
	return models.EnvironmentCounts{
		Secrets:   countLinks(st.secretLinks, envID),
		Variables: countLinks(st.variableLinks, envID),
	}
}

func applicationCounts(st *state, appID string) models.ApplicationCounts {
	var c models.ApplicationCounts
	for _, env := range st.environments {
		if env.ApplicationID == appID {
			c.Environments++
		}
	}
	for _, sec := range st.secrets {
		if sec.ApplicationID == appID {
			c.Secrets++
		}
	}
	for _, v := range st.variables {
		if v.ApplicationID == appID {
			c.Variables++
		}
	}
	return c
}

func replaceLinks(links map[string]map[string]struct{}, st *state, ownerID string, envIDs []string) error {
	set := make(map[string]struct{}, len(envIDs))
	for _, id := range envIDs {
		if _, ok := st.environments[id]; !ok {
			return store.ErrInvalidReference
		}
		set[id] = struct{}{}
	}
	links[ownerID] = set
	return nil
}
