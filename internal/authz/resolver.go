package authz

import (
	"context"
	"log/slog"

	"zonewatch/internal/domain"
)

// ProfileReader exposes the single profile lookup the resolver needs.
// Params: context and user id.
// Returns: stored profile or lookup error.
type ProfileReader interface {
	GetUserProfile(ctx context.Context, userID string) (domain.UserProfile, error)
}

// Resolver maps authenticated user ids to effective roles.
// Params: profile reader and logger.
// Returns: role resolution with viewer fallback.
type Resolver struct {
	profiles ProfileReader
	logger   *slog.Logger
}

// NewResolver creates role resolver over the given profile source.
// Params: profile reader and logger (nil logger uses slog default).
// Returns: initialized resolver.
func NewResolver(profiles ProfileReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: profiles, logger: logger}
}

// ResolveRole returns the effective role for one user id.
// Params: context and user id; empty id means an unauthenticated caller.
// Returns: stored role, or viewer when the profile is absent, invalid, or
// the lookup fails. Resolution never surfaces an error to the caller.
func (r *Resolver) ResolveRole(ctx context.Context, userID string) domain.Role {
	if userID == "" {
		return domain.RoleViewer
	}

	profile, err := r.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		r.logger.Debug("role resolution fell back to viewer", "user_id", userID, "error", err)
		return domain.RoleViewer
	}

	role, err := domain.ParseRole(string(profile.Role))
	if err != nil {
		r.logger.Warn("stored role is invalid, using viewer", "user_id", userID, "role", profile.Role)
		return domain.RoleViewer
	}
	return role
}
