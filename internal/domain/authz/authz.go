package authz

import "github.com/enterprise-bte/bte-engine/internal/domain"

// SecurityGroup is a named container of users sharing permissions over a
// scope of transfers (spec §3.2).
type SecurityGroup struct {
	domain.BaseEntity
	Name           string `json:"name"             gorm:"column:name;size:255;not null;uniqueIndex"`
	GroupActive    bool   `json:"is_active"        gorm:"column:group_active;default:true"`
}

func (SecurityGroup) TableName() string { return "bte.security_groups" }

// SecurityGroupRole associates a role definition with a SecurityGroup and
// carries the set of abilities granted by default to members holding it.
type SecurityGroupRole struct {
	domain.BaseEntity
	SecurityGroupID  int      `json:"security_group_id" gorm:"column:security_group_id;not null;index"`
	RoleName         string   `json:"role_name"         gorm:"column:role_name;size:128;not null"`
	DefaultAbilities []string `json:"default_abilities" gorm:"column:default_abilities;serializer:json"`
	RoleActive       bool     `json:"is_active"         gorm:"column:role_active;default:true"`
}

func (SecurityGroupRole) TableName() string { return "bte.security_group_roles" }

// UserGroupMembership binds a user to a SecurityGroup with 1-2 assigned
// roles and an optional set of custom abilities overriding the roles'
// defaults entirely (spec §3.2, §4.1 effectiveAbilities).
type UserGroupMembership struct {
	domain.BaseEntity
	UserID            string `json:"user_id"            gorm:"column:user_id;not null;size:64;uniqueIndex:idx_user_group"`
	SecurityGroupID   int    `json:"security_group_id"  gorm:"column:security_group_id;not null;uniqueIndex:idx_user_group"`
	AssignedRoleIDs   []int  `json:"assigned_role_ids"  gorm:"column:assigned_role_ids;serializer:json"`
	CustomAbilities   []string `json:"custom_abilities,omitempty" gorm:"column:custom_abilities;serializer:json"`
	UserLevel         int    `json:"user_level"          gorm:"column:user_level;default:0"`
	MembershipActive  bool   `json:"is_active"          gorm:"column:membership_active;default:true"`

	// Superadmin bypasses all group/ability filters. It is a property of
	// the user record per spec, not of the membership, but is denormalized
	// here for cheap lookup since no separate user master table is owned
	// by this engine.
	IsSuperAdmin bool `json:"is_superadmin" gorm:"column:is_superadmin;default:false"`
}

func (UserGroupMembership) TableName() string { return "bte.user_group_memberships" }

// SegmentType is a hierarchical coding dimension (e.g. cost center,
// account, project). Owned by external master data; read-only here.
type SegmentType struct {
	domain.BaseEntity
	Code string `json:"code" gorm:"column:code;size:64;not null;uniqueIndex"`
	Name string `json:"name" gorm:"column:name;size:255"`
}

func (SegmentType) TableName() string { return "bte.segment_types" }

// Segment is a value within a SegmentType's hierarchy.
type Segment struct {
	domain.BaseEntity
	SegmentTypeID int    `json:"segment_type_id" gorm:"column:segment_type_id;not null;index"`
	Code          string `json:"code"            gorm:"column:code;size:64;not null"`
	ParentCode    string `json:"parent_code,omitempty" gorm:"column:parent_code;size:64"`
	Level         int    `json:"level"           gorm:"column:level"`
}

func (Segment) TableName() string { return "bte.segments" }

// UserSegmentAbility grants a user an ability over a combination of segment
// values (e.g. "approve over cost-center X and account Y"). A stored
// combination matches an input iff every (segmentType, segmentCode) entry
// it names is present with an equal value in the input (spec §4.1).
type UserSegmentAbility struct {
	domain.BaseEntity
	UserID             string            `json:"user_id"             gorm:"column:user_id;not null;size:64;index"`
	AbilityTag         string            `json:"ability_tag"         gorm:"column:ability_tag;size:32;not null"`
	SegmentCombination map[string]string `json:"segment_combination" gorm:"column:segment_combination;serializer:json"`
	AbilityActive      bool              `json:"is_active"           gorm:"column:ability_active;default:true"`
}

func (UserSegmentAbility) TableName() string { return "bte.user_segment_abilities" }

// Matches reports whether this stored combination is satisfied by input:
// every key/value this record names must be present with an equal value
// in input. Extra keys in input that this record does not name are
// irrelevant.
func (u UserSegmentAbility) Matches(input map[string]string) bool {
	for k, v := range u.SegmentCombination {
		if input[k] != v {
			return false
		}
	}
	return true
}
