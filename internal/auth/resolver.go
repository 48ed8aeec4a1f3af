package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// ResourceKind names the kind of resource a ResourceRef points at.
type ResourceKind string

const (
	KindApplication ResourceKind = "application"
	KindEnvironment ResourceKind = "environment"
	KindSecret      ResourceKind = "secret"
	KindVariable    ResourceKind = "variable"
)

// ResourceRef identifies a resource whose owning application decides access.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

// Application, Environment, Secret and Variable build ResourceRefs.
func Application(id string) ResourceRef { return ResourceRef{KindApplication, id} }
func Environment(id string) ResourceRef { return ResourceRef{KindEnvironment, id} }
func Secret(id string) ResourceRef      { return ResourceRef{KindSecret, id} }
func Variable(id string) ResourceRef    { return ResourceRef{KindVariable, id} }

// Resolution is the outcome of resolving a principal against a resource.
// Role is empty when the principal has no membership or the resource is missing.
type Resolution struct {
	ApplicationID string
	Role          models.Role
}

// Found reports whether the principal can see the resource at all.
func (r Resolution) Found() bool {
	return r.Role.Valid()
}

// Resolver walks a resource to its application and looks up the membership.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver reading from st.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the principal's role on the application owning ref.
// Missing resources and missing memberships both produce an empty role;
// only storage failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, principalID string, ref ResourceRef) (Resolution, error) {
	st := r.store
	appID, err := owningApplication(ctx, st, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{}, nil
		}
		return Resolution{}, err
	}

	membership, err := st.Memberships().Get(ctx, appID, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{ApplicationID: appID}, nil
		}
		return Resolution{}, fmt.Errorf("resolving membership: %w", err)
	}

	return Resolution{ApplicationID: appID, Role: membership.Role}, nil
}

func owningApplication(ctx context.Context, st store.Store, ref ResourceRef) (string, error) {
	switch ref.Kind {
	case KindApplication:
		app, err := st.Applications().Get(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return app.ID, nil
	case KindEnvironment:
		env, err := st.Environments().Get(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return env.ApplicationID, nil
	case KindSecret:
		secret, err := st.Secrets().Get(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return secret.ApplicationID, nil
	case KindVariable:
		variable, err := st.Variables().Get(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return variable.ApplicationID, nil
	}
	return "", fmt.Errorf("unknown resource kind %q", ref.Kind)
}
