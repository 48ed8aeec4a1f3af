package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/secrets"
	"github.com/narvanalabs/envkeep/internal/store"
)

// Default paging limits for application listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Options tunes the managers.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Service bundles the resource managers over one store.
type Service struct {
	Applications *ApplicationManager
	Members      *MemberManager
	Environments *EnvironmentManager
	Secrets      *SecretManager
	Variables    *VariableManager
}

// New creates the resource managers. codec encrypts secret values and must
// not be nil.
func New(st store.Store, codec *secrets.Codec, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}

	b := base{store: st}
	return &Service{
		Applications: &ApplicationManager{base: b, opts: opts, logger: logger.With("component", "applications")},
		Members:      &MemberManager{base: b, logger: logger.With("component", "members")},
		Environments: &EnvironmentManager{base: b, logger: logger.With("component", "environments")},
		Secrets:      &SecretManager{base: b, codec: codec, logger: logger.With("component", "secrets")},
		Variables:    &VariableManager{base: b, logger: logger.With("component", "variables")},
	}
}

// base holds what every manager needs to gate and run an operation.
type base struct {
	store store.Store
}

// authorize resolves principalID against ref on st and checks action.
// An absent role reports the resource as not found, whether the resource
// is missing or the principal has no membership.
func authorize(ctx context.Context, st store.Store, principalID string, ref auth.ResourceRef, action auth.Action) (auth.Resolution, error) {
	if principalID == "" {
		return auth.Resolution{}, unauthenticated()
	}

	res, err := auth.NewResolver(st).Resolve(ctx, principalID, ref)
	if err != nil {
		return auth.Resolution{}, storageFailure("resolving role", err)
	}
	if !res.Found() {
		return auth.Resolution{}, notFound(displayName(ref.Kind))
	}
	if !auth.Allow(res.Role, action) {
		return res, forbidden(fmt.Sprintf("%s role or higher required", auth.MinimumRole(action)))
	}
	return res, nil
}

func displayName(kind auth.ResourceKind) string {
	switch kind {
	case auth.KindApplication:
		return "Application"
	case auth.KindEnvironment:
		return "Environment"
	case auth.KindSecret:
		return "Secret"
	case auth.KindVariable:
		return "Variable"
	}
	return "Resource"
}

func newID() string {
	return uuid.New().String()
}

// Page is a window of applications plus the cursor for the next one.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ListOptions selects a page. Cursor is the opaque value returned as NextCursor.
type ListOptions struct {
	Limit  int
	Cursor string
}

func (o Options) page(in ListOptions) (store.Page, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = o.DefaultPageSize
	}
	if limit > o.MaxPageSize {
		limit = o.MaxPageSize
	}

	offset := 0
	if in.Cursor != "" {
		v, err := strconv.Atoi(in.Cursor)
		if err != nil || v < 0 {
			return store.Page{}, validationf("invalid cursor")
		}
		offset = v
	}
	return store.Page{Limit: limit, Offset: offset}, nil
}

// dedupe returns ids with duplicates and empty entries removed, order kept.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// checkEnvironments verifies every id names an environment of applicationID.
func checkEnvironments(ctx context.Context, st store.Store, applicationID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	owned, err := st.Environments().FilterOwned(ctx, applicationID, ids)
	if err != nil {
		return storageFailure("checking environments", err)
	}
	if len(owned) != len(ids) {
		return validationf("environment_ids must reference environments of this application")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
