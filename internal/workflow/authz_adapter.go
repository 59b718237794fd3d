package workflow

import (
	"context"

	"github.com/enterprise-bte/bte-engine/internal/authz"
)

// ResolverAdapter wraps internal/authz.Resolver to satisfy the AuthResolver
// port, translating authz's domain-entity return shapes into the engine's
// minimal port types.
type ResolverAdapter struct {
	*authz.Resolver
}

// NewAuthResolver adapts a concrete authz.Resolver into the engine's port.
func NewAuthResolver(r *authz.Resolver) AuthResolver {
	return &ResolverAdapter{Resolver: r}
}

func (a *ResolverAdapter) EligibleUsersForStage(ctx context.Context, requiredRoleID *int, requiredUserLevel *int, transferSecurityGroupID int) ([]AuthzMembership, error) {
	members, err := a.Resolver.EligibleUsersForStage(ctx, requiredRoleID, requiredUserLevel, transferSecurityGroupID)
	if err != nil {
		return nil, err
	}
	out := make([]AuthzMembership, 0, len(members))
	for _, m := range members {
		out = append(out, AuthzMembership{
			UserID:          m.UserID,
			AssignedRoleIDs: m.AssignedRoleIDs,
			UserLevel:       m.UserLevel,
			RoleName:        m.RoleName,
		})
	}
	return out, nil
}
