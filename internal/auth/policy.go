package auth

import "github.com/narvanalabs/envkeep/internal/models"

// Action is an operation gated by the access policy.
type Action string

const (
	ActionRead              Action = "read"
	ActionUpdateApplication Action = "update_application"
	ActionDeleteApplication Action = "delete_application"
	ActionManageMembers     Action = "manage_members"
	ActionWrite             Action = "write" // create/update/delete environments, secrets, variables
)

// minimumRoles is the decision table. Creating an application needs no
// membership and is not listed.
var minimumRoles = map[Action]models.Role{
	ActionRead:              models.RoleViewer,
	ActionWrite:             models.RoleEditor,
	ActionUpdateApplication: models.RoleEditor,
	ActionDeleteApplication: models.RoleOwner,
	ActionManageMembers:     models.RoleOwner,
}

// MinimumRole returns the least privileged role allowed to perform action.
// Unknown actions require OWNER.
func MinimumRole(action Action) models.Role {
	if role, ok := minimumRoles[action]; ok {
		return role
	}
	return models.RoleOwner
}

// Allow reports whether role may perform action.
func Allow(role models.Role, action Action) bool {
	return role.AtLeast(MinimumRole(action))
}
