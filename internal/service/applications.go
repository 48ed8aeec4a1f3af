package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// ApplicationManager manages applications and their cascade deletion.
type ApplicationManager struct {
	base
	opts   Options
	logger *slog.Logger
}

// CreateApplicationInput is the payload for creating an application.
type CreateApplicationInput struct {
	Name        string
	Description *string
}

// UpdateApplicationInput patches an application. Nil fields are left unchanged.
type UpdateApplicationInput struct {
	Name        *string
	Description *string
}

// Create creates an application and makes principalID its OWNER.
func (m *ApplicationManager) Create(ctx context.Context, principalID string, in CreateApplicationInput) (*models.ApplicationSummary, error) {
	if principalID == "" {
		return nil, unauthenticated()
	}

	name := strings.TrimSpace(in.Name)
	if err := models.ValidateApplicationName(name); err != nil {
		return nil, validation(err)
	}

	app := &models.Application{
		ID:          newID(),
		Name:        name,
		Description: normalizeDescription(in.Description),
	}

	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Applications().Create(ctx, app); err != nil {
			return storageFailure("creating application", err)
		}
		owner := &models.Membership{ApplicationID: app.ID, PrincipalID: principalID, Role: models.RoleOwner}
		if err := tx.Memberships().Upsert(ctx, owner); err != nil {
			return storageFailure("creating owner membership", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("application created", "application_id", app.ID, "principal_id", principalID)
	return &models.ApplicationSummary{Application: *app, Role: models.RoleOwner}, nil
}

// List returns the applications principalID is a member of, most recently
// updated first.
func (m *ApplicationManager) List(ctx context.Context, principalID string, in ListOptions) (*Page[*models.ApplicationSummary], error) {
	if principalID == "" {
		return nil, unauthenticated()
	}

	page, err := m.opts.page(in)
	if err != nil {
		return nil, err
	}

	// One extra row tells whether another page exists.
	items, err := m.store.Applications().ListForPrincipal(ctx, principalID, store.Page{Limit: page.Limit + 1, Offset: page.Offset})
	if err != nil {
		return nil, storageFailure("listing applications", err)
	}

	out := &Page[*models.ApplicationSummary]{Items: items}
	if len(items) > page.Limit {
		out.Items = items[:page.Limit]
		out.NextCursor = itoa(page.Offset + page.Limit)
	}
	if out.Items == nil {
		out.Items = []*models.ApplicationSummary{}
	}
	return out, nil
}

// Get returns an application with the caller's role, its members,
// environments and resource counts.
func (m *ApplicationManager) Get(ctx context.Context, principalID, id string) (*models.ApplicationDetail, error) {
	res, err := authorize(ctx, m.store, principalID, auth.Application(id), auth.ActionRead)
	if err != nil {
		return nil, err
	}

	app, err := m.store.Applications().Get(ctx, id)
	if err != nil {
		return nil, lookupErr("Application", "loading application", err)
	}
	counts, err := m.store.Applications().Counts(ctx, id)
	if err != nil {
		return nil, storageFailure("counting application resources", err)
	}
	members, err := m.store.Memberships().List(ctx, id)
	if err != nil {
		return nil, storageFailure("listing members", err)
	}
	envs, err := m.store.Environments().List(ctx, id)
	if err != nil {
		return nil, storageFailure("listing environments", err)
	}
	if envs == nil {
		envs = []*models.Environment{}
	}

	return &models.ApplicationDetail{
		ApplicationSummary: models.ApplicationSummary{Application: *app, Role: res.Role, Counts: counts},
		Members:            members,
		Environments:       envs,
	}, nil
}

// Update patches name and/or description. EDITOR or higher.
func (m *ApplicationManager) Update(ctx context.Context, principalID, id string, in UpdateApplicationInput) (*models.ApplicationSummary, error) {
	var summary *models.ApplicationSummary
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		res, err := authorize(ctx, tx, principalID, auth.Application(id), auth.ActionUpdateApplication)
		if err != nil {
			return err
		}

		var name string
		if in.Name != nil {
			name = strings.TrimSpace(*in.Name)
			if err := models.ValidateApplicationName(name); err != nil {
				return validation(err)
			}
		}

		app, err := tx.Applications().Get(ctx, id)
		if err != nil {
			return lookupErr("Application", "loading application", err)
		}
		if in.Name != nil {
			app.Name = name
		}
		if in.Description != nil {
			app.Description = normalizeDescription(in.Description)
		}
		if err := tx.Applications().Update(ctx, app); err != nil {
			return lookupErr("Application", "updating application", err)
		}

		counts, err := tx.Applications().Counts(ctx, id)
		if err != nil {
			return storageFailure("counting application resources", err)
		}
		summary = &models.ApplicationSummary{Application: *app, Role: res.Role, Counts: counts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Delete removes an application and everything it owns. OWNER only.
func (m *ApplicationManager) Delete(ctx context.Context, principalID, id string) error {
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Application(id), auth.ActionDeleteApplication); err != nil {
			return err
		}
		if err := tx.Applications().Lock(ctx, id); err != nil {
			return lookupErr("Application", "locking application", err)
		}

		// Children first: links go with their secrets and variables, then
		// environments, memberships and finally the application row.
		if err := tx.Secrets().DeleteByApplication(ctx, id); err != nil {
			return storageFailure("deleting secrets", err)
		}
		if err := tx.Variables().DeleteByApplication(ctx, id); err != nil {
			return storageFailure("deleting variables", err)
		}
		if err := tx.Environments().DeleteByApplication(ctx, id); err != nil {
			return storageFailure("deleting environments", err)
		}
		if err := tx.Memberships().DeleteByApplication(ctx, id); err != nil {
			return storageFailure("deleting memberships", err)
		}
		if err := tx.Applications().Delete(ctx, id); err != nil {
			return lookupErr("Application", "deleting application", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("application deleted", "application_id", id, "principal_id", principalID)
	return nil
}

func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	v := strings.TrimSpace(*d)
	if v == "" {
		return nil
	}
	return &v
}
