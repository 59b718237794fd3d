package workflow

import (
	"context"

	"github.com/enterprise-bte/bte-engine/internal/domain/transfer"
	"github.com/enterprise-bte/bte-engine/internal/domain/workflow"
)

// TransferStore is the engine's read/write port onto the owning system's
// transfer records (§6.2). The engine never owns transfers; it reads them
// to route and requests status updates via terminal events.
type TransferStore interface {
	GetTransfer(ctx context.Context, transferID string) (*transfer.BudgetTransfer, error)
	// ChildrenOf returns every transfer whose LinkedTransferID equals
	// holdTransferID, for hold-release accounting (§4.4.7).
	ChildrenOf(ctx context.Context, holdTransferID string) ([]transfer.BudgetTransfer, error)
	// SetStatus requests the store apply a terminal status transition. The
	// engine does not itself own transfer state; this is advisory and is
	// expected to be idempotent on (transferID, status).
	SetStatus(ctx context.Context, transferID string, status string, statusLevel int) error
}

// AuthResolver is the engine's port onto C1 (internal/authz.Resolver
// satisfies it through ResolverAdapter in authz_adapter.go).
type AuthResolver interface {
	EffectiveAbilities(ctx context.Context, userID string, groupID int) ([]string, error)
	GroupsWithAbility(ctx context.Context, userID string, tag string) ([]int, error)
	IsSuperAdmin(ctx context.Context, userID string) (bool, error)
	EligibleUsersForStage(ctx context.Context, requiredRoleID *int, requiredUserLevel *int, transferSecurityGroupID int) ([]AuthzMembership, error)
	HasAbilityOverSegments(ctx context.Context, userID string, tag string, segmentCombination map[string]string) (bool, error)
}

// AuthzMembership is the subset of authz.UserGroupMembership the engine
// needs when materializing assignments. Declared here (rather than
// importing internal/domain/authz) to keep the port's surface minimal;
// internal/authz.Resolver's EligibleUsersForStage return type satisfies
// this via the adapter in internal/workflow/authz_adapter.go.
//
// RoleName is the resolved name of the role that made the member eligible
// for the stage (empty when eligibility came from group membership alone,
// with no specific role required) and is carried onto the Assignment as
// RoleSnapshot at creation time (§3.1/§9).
type AuthzMembership struct {
	UserID          string
	AssignedRoleIDs []int
	UserLevel       int
	RoleName        string
}

// EventSink is the engine's port onto C6 (§4.6). Implementations must be
// idempotent by (transferID, workflowInstanceID, stageInstanceID, actionID).
type EventSink interface {
	StageActivated(ctx context.Context, stage workflow.StageInstance)
	StageSkipped(ctx context.Context, stage workflow.StageInstance)
	StageCompleted(ctx context.Context, stage workflow.StageInstance, outcome string)
	WorkflowApproved(ctx context.Context, instance workflow.Instance)
	WorkflowRejected(ctx context.Context, instance workflow.Instance)
	WorkflowCancelled(ctx context.Context, instance workflow.Instance)
	ChainCompleted(ctx context.Context, transferID string, outcome string)
	TransferTerminal(ctx context.Context, transferID string, outcome string)
	SLABreached(ctx context.Context, stage workflow.StageInstance)
	OperationalWarning(ctx context.Context, transferID string, reason string)
}

// Locker is the engine's serialization boundary for workflow instances
// (§5): operations on the same instance are serialized, operations on
// different instances proceed in parallel.
type Locker interface {
	// Lock blocks until the named resource is acquired, returning a
	// release function. The context bounds the wait, not the hold.
	Lock(ctx context.Context, key string) (release func(), err error)
}
