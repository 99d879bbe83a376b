package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is one dashboard access level.
// Params: admin/operator/viewer constants.
// Returns: role claim resolved from the user profile.
type Role string

const (
	// RoleAdmin grants full management access.
	RoleAdmin Role = "admin"
	// RoleOperator grants alert/zone maintenance access.
	RoleOperator Role = "operator"
	// RoleViewer grants read-only access and is the safe default.
	RoleViewer Role = "viewer"
)

// ParseRole normalizes and validates role value.
// Params: raw role string.
// Returns: role constant or error for unknown values.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOperator:
		return RoleOperator, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("unsupported role %q", value)
	}
}

// UserProfile binds one authenticated user to one role.
// Params: user identity and role claim.
// Returns: profile record keyed by user id.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
