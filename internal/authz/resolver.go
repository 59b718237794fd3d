// Package authz implements the Authorization Resolver (C1): eligibility and
// visibility queries over security groups, roles, and segment abilities.
package authz

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/enterprise-bte/bte-engine/internal/domain/authz"
	"github.com/enterprise-bte/bte-engine/internal/repository"
)

// AllGroups is the sentinel returned by GroupsWithAbility for a superadmin:
// every group, rather than an enumerated subset.
const AllGroups = -1

// Resolver answers eligibility and visibility questions. Failure modes
// never panic or return an error for absent data; an unknown user or group
// simply resolves to an empty set (spec §4.1).
type Resolver struct {
	membershipRepo *repository.Repository[authz.UserGroupMembership]
	roleRepo       *repository.Repository[authz.SecurityGroupRole]
	abilityRepo    *repository.Repository[authz.UserSegmentAbility]
	db             *gorm.DB
	log            zerolog.Logger
}

// New builds a Resolver over the given database handle.
func New(db *gorm.DB, log zerolog.Logger) *Resolver {
	return &Resolver{
		membershipRepo: repository.NewRepository[authz.UserGroupMembership](db),
		roleRepo:       repository.NewRepository[authz.SecurityGroupRole](db),
		abilityRepo:    repository.NewRepository[authz.UserSegmentAbility](db),
		db:             db,
		log:            log.With().Str("component", "authz.Resolver").Logger(),
	}
}

// EffectiveAbilities returns, for the given user's membership in group, its
// customAbilities when non-empty (they replace the role defaults);
// otherwise the union of defaultAbilities of every active assignedRole.
func (r *Resolver) EffectiveAbilities(ctx context.Context, userID string, groupID int) ([]string, error) {
	m, err := r.membershipRepo.FirstOrDefault(ctx,
		"user_id = ? AND security_group_id = ? AND membership_active = ?", userID, groupID, true)
	if err != nil {
		r.log.Error().Err(err).Str("user", userID).Int("group", groupID).Msg("effective abilities lookup failed")
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if len(m.CustomAbilities) > 0 {
		return dedupe(m.CustomAbilities), nil
	}

	seen := map[string]struct{}{}
	var out []string
	for _, roleID := range m.AssignedRoleIDs {
		role, err := r.roleRepo.GetByID(ctx, roleID)
		if err != nil {
			r.log.Error().Err(err).Int("role", roleID).Msg("role lookup failed")
			return nil, err
		}
		if role == nil || !role.RoleActive {
			continue
		}
		for _, a := range role.DefaultAbilities {
			if _, ok := seen[a]; !ok {
				seen[a] = struct{}{}
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// GroupsWithAbility returns the active memberships whose effective
// abilities include tag. For a superadmin user, it returns AllGroups alone
// as the "all groups" sentinel.
func (r *Resolver) GroupsWithAbility(ctx context.Context, userID string, tag string) ([]int, error) {
	memberships, err := r.membershipRepo.Where(ctx, "user_id = ? AND membership_active = ?", userID, true)
	if err != nil {
		r.log.Error().Err(err).Str("user", userID).Msg("groups-with-ability lookup failed")
		return nil, err
	}
	for _, m := range memberships {
		if m.IsSuperAdmin {
			return []int{AllGroups}, nil
		}
	}

	var out []int
	for _, m := range memberships {
		abilities, err := r.EffectiveAbilities(ctx, userID, m.SecurityGroupID)
		if err != nil {
			return nil, err
		}
		if contains(abilities, tag) {
			out = append(out, m.SecurityGroupID)
		}
	}
	return out, nil
}

// IsSuperAdmin reports whether the user holds the superadmin bypass on any
// of their memberships.
func (r *Resolver) IsSuperAdmin(ctx context.Context, userID string) (bool, error) {
	return r.membershipRepo.Exists(ctx, "user_id = ? AND is_superadmin = ?", userID, true)
}

// EligibleMember pairs a UserGroupMembership with the name of the role that
// made it eligible for the stage, resolved once here so callers never have
// to re-load a SecurityGroupRole just to label an assignment.
type EligibleMember struct {
	authz.UserGroupMembership
	RoleName string
}

// EligibleUsersForStage computes the eligible approver set for a stage
// instance/template snapshot, per spec §4.1:
//  1. requiredRoleID, if set, names a SecurityGroupRole that may belong to a
//     different group than the transfer's; that role's group is used instead.
//  2. Collect active members of that group.
//  3. If requiredRoleID is set, keep only members whose assignedRoles
//     contains that role.
//  4. If requiredUserLevel is set, filter by level.
//  5. Return the distinct list.
//
// When requiredRoleID is set, that role is the single unambiguous reason a
// member is eligible, so its RoleName is resolved onto every returned
// EligibleMember. When it is nil, eligibility came from group membership
// alone and a member may hold several AssignedRoleIDs, so no single role
// name is attributed.
func (r *Resolver) EligibleUsersForStage(ctx context.Context, requiredRoleID *int, requiredUserLevel *int, transferSecurityGroupID int) ([]EligibleMember, error) {
	groupID := transferSecurityGroupID
	var roleName string
	if requiredRoleID != nil {
		role, err := r.roleRepo.GetByID(ctx, *requiredRoleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			return nil, nil
		}
		groupID = role.SecurityGroupID
		roleName = role.RoleName
	}

	members, err := r.membershipRepo.Where(ctx, "security_group_id = ? AND membership_active = ?", groupID, true)
	if err != nil {
		return nil, err
	}

	filtered := members[:0:0]
	for _, m := range members {
		if requiredRoleID != nil && !containsInt(m.AssignedRoleIDs, *requiredRoleID) {
			continue
		}
		filtered = append(filtered, m)
	}

	if requiredUserLevel != nil {
		byLevel := filtered[:0:0]
		for _, m := range filtered {
			if m.UserLevel >= *requiredUserLevel {
				byLevel = append(byLevel, m)
			}
		}
		filtered = byLevel
	}

	distinct := distinctByUser(filtered)
	out := make([]EligibleMember, 0, len(distinct))
	for _, m := range distinct {
		out = append(out, EligibleMember{UserGroupMembership: m, RoleName: roleName})
	}
	return out, nil
}

// HasAbilityOverSegments reports whether any active UserSegmentAbility for
// user with ability tag tag has a combination matching segmentCombination.
func (r *Resolver) HasAbilityOverSegments(ctx context.Context, userID string, tag string, segmentCombination map[string]string) (bool, error) {
	abilities, err := r.abilityRepo.Where(ctx, "user_id = ? AND ability_tag = ? AND ability_active = ?", userID, tag, true)
	if err != nil {
		r.log.Error().Err(err).Str("user", userID).Str("tag", tag).Msg("segment ability lookup failed")
		return false, err
	}
	for _, a := range abilities {
		if a.Matches(segmentCombination) {
			return true, nil
		}
	}
	return false, nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func contains(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(in []int, n int) bool {
	for _, v := range in {
		if v == n {
			return true
		}
	}
	return false
}

func distinctByUser(in []authz.UserGroupMembership) []authz.UserGroupMembership {
	seen := map[string]struct{}{}
	out := make([]authz.UserGroupMembership, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m)
	}
	return out
}
