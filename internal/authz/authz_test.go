package authz

import (
	"context"
	"errors"
	"testing"

	"zonewatch/internal/domain"
)

func TestHasPermissionPolicyTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role     domain.Role
		action   Action
		resource Resource
		want     bool
	}{
		{domain.RoleAdmin, ActionDelete, ResourceAlerts, true},
		{domain.RoleAdmin, ActionCreate, ResourceUsers, true},
		{domain.RoleAdmin, ActionRead, ResourceAnalytics, true},
		{domain.RoleOperator, ActionCreate, ResourceAlerts, true},
		{domain.RoleOperator, ActionUpdate, ResourceZones, true},
		{domain.RoleOperator, ActionDelete, ResourceAlerts, false},
		{domain.RoleOperator, ActionCreate, ResourceZones, false},
		{domain.RoleOperator, ActionRead, ResourceUsers, false},
		{domain.RoleViewer, ActionRead, ResourceAlerts, true},
		{domain.RoleViewer, ActionRead, ResourceAnalytics, true},
		{domain.RoleViewer, ActionCreate, ResourceAlerts, false},
		{domain.RoleViewer, ActionUpdate, ResourceZones, false},
		{domain.Role("ghost"), ActionRead, ResourceAlerts, false},
	}

	for _, tc := range cases {
		got := HasPermission(tc.role, tc.action, tc.resource)
		if got != tc.want {
			t.Fatalf("HasPermission(%s, %s, %s) = %v, want %v",
				tc.role, tc.action, tc.resource, got, tc.want)
		}
	}
}

func TestAdminGrantsSupersetOfEveryRole(t *testing.T) {
	t.Parallel()

	for _, role := range []domain.Role{domain.RoleOperator, domain.RoleViewer} {
		for _, permission := range Permissions(role) {
			if !HasPermission(domain.RoleAdmin, permission.Action, permission.Resource) {
				t.Fatalf("admin misses %s:%s granted to %s",
					permission.Action, permission.Resource, role)
			}
		}
	}
}

func TestOperatorGrantsSupersetOfViewer(t *testing.T) {
	t.Parallel()

	for _, permission := range Permissions(domain.RoleViewer) {
		if !HasPermission(domain.RoleOperator, permission.Action, permission.Resource) {
			t.Fatalf("operator misses viewer grant %s:%s", permission.Action, permission.Resource)
		}
	}
}

func TestGuardConjunction(t *testing.T) {
	t.Parallel()

	if !Guard(domain.RoleViewer) {
		t.Fatalf("empty requirement must pass for any role")
	}
	if !Guard(domain.RoleOperator,
		Permission{ActionRead, ResourceAlerts},
		Permission{ActionCreate, ResourceAlerts}) {
		t.Fatalf("operator should satisfy read+create alerts")
	}
	if Guard(domain.RoleOperator,
		Permission{ActionRead, ResourceAlerts},
		Permission{ActionDelete, ResourceAlerts}) {
		t.Fatalf("one missing permission must fail the whole guard")
	}
}

type stubProfiles struct {
	profile domain.UserProfile
	err     error
}

func (s stubProfiles) GetUserProfile(context.Context, string) (domain.UserProfile, error) {
	return s.profile, s.err
}

func TestResolveRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name     string
		userID   string
		profiles stubProfiles
		want     domain.Role
	}{
		{
			name:     "stored role",
			userID:   "u1",
			profiles: stubProfiles{profile: domain.UserProfile{UserID: "u1", Role: domain.RoleAdmin}},
			want:     domain.RoleAdmin,
		},
		{
			name:     "missing profile falls back to viewer",
			userID:   "u2",
			profiles: stubProfiles{err: errors.New("not found")},
			want:     domain.RoleViewer,
		},
		{
			name:     "invalid stored role falls back to viewer",
			userID:   "u3",
			profiles: stubProfiles{profile: domain.UserProfile{UserID: "u3", Role: "superuser"}},
			want:     domain.RoleViewer,
		},
		{
			name:     "anonymous caller is viewer",
			userID:   "",
			profiles: stubProfiles{profile: domain.UserProfile{UserID: "u4", Role: domain.RoleAdmin}},
			want:     domain.RoleViewer,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resolver := NewResolver(tc.profiles, nil)
			if got := resolver.ResolveRole(ctx, tc.userID); got != tc.want {
				t.Fatalf("ResolveRole = %s, want %s", got, tc.want)
			}
		})
	}
}
