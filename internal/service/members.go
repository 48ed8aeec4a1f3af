package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/models"
	"github.com/narvanalabs/envkeep/internal/store"
)

// MemberManager manages who holds which role on an application.
type MemberManager struct {
	base
	logger *slog.Logger
}

// List returns the members of an application. VIEWER or higher.
func (m *MemberManager) List(ctx context.Context, principalID, applicationID string) ([]*models.Membership, error) {
	if _, err := authorize(ctx, m.store, principalID, auth.Application(applicationID), auth.ActionRead); err != nil {
		return nil, err
	}

	members, err := m.store.Memberships().List(ctx, applicationID)
	if err != nil {
		return nil, storageFailure("listing members", err)
	}
	if members == nil {
		members = []*models.Membership{}
	}
	return members, nil
}

// Set grants memberID the given role, adding the membership if needed.
// OWNER only. The last OWNER cannot be demoted.
func (m *MemberManager) Set(ctx context.Context, principalID, applicationID, memberID, role string) (*models.Membership, error) {
	memberID = strings.TrimSpace(memberID)
	var membership *models.Membership
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Application(applicationID), auth.ActionManageMembers); err != nil {
			return err
		}
		if memberID == "" {
			return validationf("principal id is required")
		}
		parsed, err := models.ParseRole(role)
		if err != nil {
			return validation(err)
		}
		membership = &models.Membership{ApplicationID: applicationID, PrincipalID: memberID, Role: parsed}

		if err := tx.Applications().Lock(ctx, applicationID); err != nil {
			return storageFailure("locking application", err)
		}

		if parsed != models.RoleOwner {
			if err := m.keepAnOwner(ctx, tx, applicationID, memberID); err != nil {
				return err
			}
		}

		if err := tx.Memberships().Upsert(ctx, membership); err != nil {
			return storageFailure("saving membership", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("membership set",
		"application_id", applicationID,
		"principal_id", principalID,
		"member_id", memberID,
		"role", membership.Role,
	)
	return membership, nil
}

// Remove deletes memberID's membership. OWNER only. The last OWNER cannot
// be removed.
func (m *MemberManager) Remove(ctx context.Context, principalID, applicationID, memberID string) error {
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := authorize(ctx, tx, principalID, auth.Application(applicationID), auth.ActionManageMembers); err != nil {
			return err
		}
		if err := tx.Applications().Lock(ctx, applicationID); err != nil {
			return storageFailure("locking application", err)
		}

		if _, err := tx.Memberships().Get(ctx, applicationID, memberID); err != nil {
			if isNotFound(err) {
				return notFound("Member")
			}
			return storageFailure("loading membership", err)
		}
		if err := m.keepAnOwner(ctx, tx, applicationID, memberID); err != nil {
			return err
		}
		if err := tx.Memberships().Delete(ctx, applicationID, memberID); err != nil {
			return storageFailure("deleting membership", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("membership removed", "application_id", applicationID, "principal_id", principalID, "member_id", memberID)
	return nil
}

// keepAnOwner fails when memberID is currently the only OWNER.
func (m *MemberManager) keepAnOwner(ctx context.Context, tx store.Store, applicationID, memberID string) error {
	current, err := tx.Memberships().Get(ctx, applicationID, memberID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return storageFailure("loading membership", err)
	}
	if current.Role != models.RoleOwner {
		return nil
	}

	owners, err := tx.Memberships().CountByRole(ctx, applicationID, models.RoleOwner)
	if err != nil {
		return storageFailure("counting owners", err)
	}
	if owners <= 1 {
		return conflict("Application must keep at least one owner", nil)
	}
	return nil
}
