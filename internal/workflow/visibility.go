package workflow

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/enterprise-bte/bte-engine/internal/authz"
	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	"github.com/enterprise-bte/bte-engine/internal/repository"
)

// Visibility is C5 (§4.5): the two read-side queries callers use to build
// approval inboxes and audit history. Candidate transfer ids are found with
// a Dapper-style raw query (repository.RawQuery) over the workflow tables,
// then narrowed against the caller's visible security groups through the
// TransferStore/AuthResolver ports — the engine doesn't own enough of the
// transfer shape to push the group filter into SQL.
type Visibility struct {
	db        *sqlx.DB
	auth      AuthResolver
	transfers TransferStore
	log       zerolog.Logger
}

// NewVisibility builds C5 over a raw-SQL connection to the workflow tables.
func NewVisibility(db *sqlx.DB, auth AuthResolver, transfers TransferStore, log zerolog.Logger) *Visibility {
	return &Visibility{
		db:        db,
		auth:      auth,
		transfers: transfers,
		log:       log.With().Str("component", "workflow.Visibility").Logger(),
	}
}

const anyPendingQuery = `
SELECT DISTINCT wi.transfer_id
FROM bte.workflow_assignments wa
JOIN bte.workflow_stage_instances wsi ON wsi.id = wa.stage_instance_id AND wsi.soft_deleted = false
JOIN bte.workflow_instances wi ON wi.id = wsi.instance_id AND wi.soft_deleted = false
WHERE wa.soft_deleted = false
  AND wa.assignment_status = $1
  AND wsi.stage_status = $2
  AND wi.workflow_status IN ($3, $4)
`

const pendingForUserQuery = anyPendingQuery + `
  AND wa.user_id = $5
`

const historyAnyAssignmentQuery = `
SELECT DISTINCT wi.transfer_id
FROM bte.workflow_assignments wa
JOIN bte.workflow_stage_instances wsi ON wsi.id = wa.stage_instance_id AND wsi.soft_deleted = false
JOIN bte.workflow_instances wi ON wi.id = wsi.instance_id AND wi.soft_deleted = false
WHERE wa.soft_deleted = false
  AND wa.user_id = $1
  AND wi.workflow_status IN ($2, $3, $4)
`

const historyNonPendingQuery = historyAnyAssignmentQuery + `
  AND wa.assignment_status != $5
`

// PendingForUser is listPendingForUser (§4.5).
func (v *Visibility) PendingForUser(ctx context.Context, userID string) ([]string, error) {
	isSuper, err := v.auth.IsSuperAdmin(ctx, userID)
	if err != nil {
		return nil, wrapErr(KindInternalError, "superadmin-check-failed", err)
	}

	if isSuper {
		return repository.RawQuery[string](v.db, ctx, anyPendingQuery,
			enums.AssignmentStatusPending, enums.StageStatusActive,
			enums.WorkflowStatusPending, enums.WorkflowStatusInProgress)
	}

	groups, err := v.auth.GroupsWithAbility(ctx, userID, string(enums.AbilityApprove))
	if err != nil {
		return nil, wrapErr(KindInternalError, "groups-lookup-failed", err)
	}
	if len(groups) == 0 {
		return nil, newErr(KindAccessDenied, ReasonAbilityMissing, "user has no approve ability in any security group")
	}

	candidates, err := repository.RawQuery[string](v.db, ctx, pendingForUserQuery,
		enums.AssignmentStatusPending, enums.StageStatusActive,
		enums.WorkflowStatusPending, enums.WorkflowStatusInProgress, userID)
	if err != nil {
		return nil, err
	}

	return v.filterByGroups(ctx, candidates, groups)
}

// HistoryForUser is listHistoryForUser (§4.5).
func (v *Visibility) HistoryForUser(ctx context.Context, userID string) ([]string, error) {
	isSuper, err := v.auth.IsSuperAdmin(ctx, userID)
	if err != nil {
		return nil, wrapErr(KindInternalError, "superadmin-check-failed", err)
	}

	terminal := []enums.WorkflowInstanceStatus{
		enums.WorkflowStatusApproved, enums.WorkflowStatusRejected, enums.WorkflowStatusCancelled,
	}

	if isSuper {
		return repository.RawQuery[string](v.db, ctx, historyAnyAssignmentQuery, userID, terminal[0], terminal[1], terminal[2])
	}

	groups, err := v.auth.GroupsWithAbility(ctx, userID, string(enums.AbilityApprove))
	if err != nil {
		return nil, wrapErr(KindInternalError, "groups-lookup-failed", err)
	}
	if len(groups) == 0 {
		return nil, newErr(KindAccessDenied, ReasonAbilityMissing, "user has no approve ability in any security group")
	}

	candidates, err := repository.RawQuery[string](v.db, ctx, historyNonPendingQuery,
		userID, terminal[0], terminal[1], terminal[2], enums.AssignmentStatusPending)
	if err != nil {
		return nil, err
	}

	return v.filterByGroups(ctx, candidates, groups)
}

// filterByGroups keeps candidates whose transfer has no security group, or
// whose security group is in groups (or the caller holds the superadmin
// AllGroups sentinel).
func (v *Visibility) filterByGroups(ctx context.Context, candidates []string, groups []int) ([]string, error) {
	unrestricted := false
	groupSet := make(map[int]bool, len(groups))
	for _, g := range groups {
		if g == authz.AllGroups {
			unrestricted = true
		}
		groupSet[g] = true
	}

	var result []string
	for _, tid := range candidates {
		if unrestricted {
			result = append(result, tid)
			continue
		}
		tr, err := v.transfers.GetTransfer(ctx, tid)
		if err != nil {
			return nil, wrapErr(KindInternalError, "transfer-lookup-failed", err)
		}
		if tr == nil {
			continue
		}
		if tr.SecurityGroupID == 0 || groupSet[tr.SecurityGroupID] {
			result = append(result, tid)
		}
	}
	return result, nil
}
