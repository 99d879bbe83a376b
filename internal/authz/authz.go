// Package authz holds the static role-to-permission policy and the
// request guard built on top of it. The policy is compiled in; roles
// come from stored user profiles and unresolvable callers degrade to
// the read-only viewer role.
package authz

import (
	"zonewatch/internal/domain"
)

// Action is one CRUD verb a caller may attempt.
// Params: create/read/update/delete constants.
// Returns: verb half of one permission.
type Action string

const (
	// ActionCreate covers resource creation.
	ActionCreate Action = "create"
	// ActionRead covers listing and retrieval.
	ActionRead Action = "read"
	// ActionUpdate covers mutation of existing records.
	ActionUpdate Action = "update"
	// ActionDelete covers removal.
	ActionDelete Action = "delete"
)

// Resource is one protected resource class.
// Params: alerts/zones/users/analytics constants.
// Returns: object half of one permission.
type Resource string

const (
	// ResourceAlerts covers live and scheduled alerts.
	ResourceAlerts Resource = "alerts"
	// ResourceZones covers geographic zones.
	ResourceZones Resource = "zones"
	// ResourceUsers covers user profiles and role assignment.
	ResourceUsers Resource = "users"
	// ResourceAnalytics covers aggregated reporting reads.
	ResourceAnalytics Resource = "analytics"
)

// Permission pairs one action with one resource.
// Params: action verb and resource class.
// Returns: single grantable capability.
type Permission struct {
	Action   Action
	Resource Resource
}

// rolePermissions is the full static policy. Admin holds every
// alerts/zones/users permission plus analytics read; operator manages
// alerts and updates zones; viewer is read-only.
var rolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		{ActionCreate, ResourceAlerts},
		{ActionRead, ResourceAlerts},
		{ActionUpdate, ResourceAlerts},
		{ActionDelete, ResourceAlerts},
		{ActionCreate, ResourceZones},
		{ActionRead, ResourceZones},
		{ActionUpdate, ResourceZones},
		{ActionDelete, ResourceZones},
		{ActionCreate, ResourceUsers},
		{ActionRead, ResourceUsers},
		{ActionUpdate, ResourceUsers},
		{ActionDelete, ResourceUsers},
		{ActionRead, ResourceAnalytics},
	},
	domain.RoleOperator: {
		{ActionCreate, ResourceAlerts},
		{ActionRead, ResourceAlerts},
		{ActionUpdate, ResourceAlerts},
		{ActionRead, ResourceZones},
		{ActionUpdate, ResourceZones},
		{ActionRead, ResourceAnalytics},
	},
	domain.RoleViewer: {
		{ActionRead, ResourceAlerts},
		{ActionRead, ResourceZones},
		{ActionRead, ResourceAnalytics},
	},
}

// HasPermission reports whether the role grants one action on one resource.
// Params: role, action verb, resource class.
// Returns: true when the static policy contains the pair; unknown roles get nothing.
func HasPermission(role domain.Role, action Action, resource Resource) bool {
	for _, permission := range rolePermissions[role] {
		if permission.Action == action && permission.Resource == resource {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the role's grant list.
// Params: role to look up.
// Returns: granted permissions; empty for unknown roles.
func Permissions(role domain.Role) []Permission {
	grants := rolePermissions[role]
	out := make([]Permission, len(grants))
	copy(out, grants)
	return out
}

// Guard reports whether the role satisfies every required permission.
// Params: role and required permission set.
// Returns: true when the conjunction holds; an empty requirement always passes.
func Guard(role domain.Role, required ...Permission) bool {
	for _, permission := range required {
		if !HasPermission(role, permission.Action, permission.Resource) {
			return false
		}
	}
	return true
}
