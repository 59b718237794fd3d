package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/metrics"
	"github.com/enterprise-bte/bte-engine/internal/repository"
)

// Engine is C4, the hard kernel (§4.4): it creates instances, activates
// stages, materializes assignments via C1, processes actions, evaluates
// stage-group completion, and chains workflows.
type Engine struct {
	db         *gorm.DB
	templates  *TemplateStore
	registry   *Registry
	auth       AuthResolver
	transfers  TransferStore
	sink       EventSink
	locker     Locker
	log        zerolog.Logger
}

// NewEngine wires C4 over its collaborators.
func NewEngine(db *gorm.DB, templates *TemplateStore, registry *Registry, auth AuthResolver, transfers TransferStore, sink EventSink, locker Locker, log zerolog.Logger) *Engine {
	return &Engine{
		db:        db,
		templates: templates,
		registry:  registry,
		auth:      auth,
		transfers: transfers,
		sink:      sink,
		locker:    locker,
		log:       log.With().Str("component", "workflow.Engine").Logger(),
	}
}

func lockKey(transferID string) string { return "workflow-instance:" + transferID }

func transactionCodePrefix(code string) string {
	if len(code) >= 3 {
		return code[:3]
	}
	return ""
}

func (e *Engine) fireAll(ctx context.Context, calls []func(context.Context)) {
	for _, c := range calls {
		c(ctx)
	}
}

func (e *Engine) activeInstance(ctx context.Context, db *gorm.DB, transferID string) (*domainworkflow.Instance, error) {
	repo := repository.NewRepository[domainworkflow.Instance](db)
	rows, err := repo.Where(ctx, "transfer_id = ? AND workflow_status IN ?", transferID,
		[]enums.WorkflowInstanceStatus{enums.WorkflowStatusPending, enums.WorkflowStatusInProgress})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExecutionOrder < rows[j].ExecutionOrder })
	return &rows[0], nil
}

// StartWorkflow is 4.4.1.
func (e *Engine) StartWorkflow(ctx context.Context, transferID string) (*domainworkflow.Instance, error) {
	release, err := e.locker.Lock(ctx, lockKey(transferID))
	if err != nil {
		return nil, wrapErr(KindInternalError, "lock-acquire-failed", err)
	}
	defer release()

	tr, err := e.transfers.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, wrapErr(KindInternalError, "transfer-lookup-failed", err)
	}
	if tr == nil {
		return nil, newErr(KindNotFound, ReasonUnknownTransfer, "transfer not found")
	}
	if tr.SecurityGroupID == 0 {
		return nil, newErr(KindInvalidInput, "missing-security-group", "transfer has no security group")
	}

	existing, err := e.activeInstance(ctx, e.db, transferID)
	if err != nil {
		return nil, wrapErr(KindInternalError, "active-instance-lookup-failed", err)
	}
	if existing != nil {
		return nil, newErr(KindStateConflict, ReasonActiveWorkflowExists, "an active workflow already exists for this transfer")
	}

	prefix := transactionCodePrefix(tr.Code)
	assignments, err := e.registry.OrderedAssignments(ctx, tr.SecurityGroupID, prefix)
	if err != nil {
		return nil, wrapErr(KindInternalError, "assignment-lookup-failed", err)
	}
	if len(assignments) == 0 {
		e.sink.OperationalWarning(ctx, transferID, "no workflow assignments configured for this security group/transaction prefix")
		return nil, nil
	}
	dense := DenseExecutionOrder(assignments)

	var first *domainworkflow.Instance
	var pendingCalls []func(context.Context)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instanceRepo := repository.NewRepository[domainworkflow.Instance](tx)
		stageRepo := repository.NewRepository[domainworkflow.StageTemplate](tx)

		for _, a := range dense {
			stages, err := stageRepo.Where(ctx, "template_id = ? AND order_index < ?", a.TemplateID, domainworkflow.ArchivedThreshold)
			if err != nil {
				return err
			}
			for _, st := range stages {
				if err := validateQuorum(st); err != nil {
					return err
				}
			}
			inst := &domainworkflow.Instance{
				TransferID:     transferID,
				TemplateID:     a.TemplateID,
				ExecutionOrder: a.ExecutionOrder,
				WorkflowStatus: enums.WorkflowStatusPending,
			}
			if err := instanceRepo.Create(ctx, inst); err != nil {
				return err
			}
			if first == nil {
				first = inst
			}
		}

		if err := e.activateNext(ctx, tx, first, tr.SecurityGroupID, &pendingCalls); err != nil {
			return err
		}
		if first.WorkflowStatus == enums.WorkflowStatusApproved {
			return e.advanceChain(ctx, tx, first, &pendingCalls)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.fireAll(ctx, pendingCalls)
	metrics.WorkflowsStarted.Inc()
	return first, nil
}

// activateNext is 4.4.2. It loops rather than recurses when an entire
// order group is skipped, advancing straight to the next one.
func (e *Engine) activateNext(ctx context.Context, tx *gorm.DB, instance *domainworkflow.Instance, transferSecurityGroupID int, pending *[]func(context.Context)) error {
	if instance.WorkflowStatus.IsTerminal() {
		return nil
	}
	start := time.Now()
	defer func() { metrics.StageActivationDuration.Observe(time.Since(start).Seconds()) }()

	stageRepo := repository.NewRepository[domainworkflow.StageTemplate](tx)
	stageInstRepo := repository.NewRepository[domainworkflow.StageInstance](tx)
	assignmentRepo := repository.NewRepository[domainworkflow.Assignment](tx)
	actionRepo := repository.NewRepository[domainworkflow.Action](tx)
	instanceRepo := repository.NewRepository[domainworkflow.Instance](tx)

	for {
		templateStages, err := stageRepo.Where(ctx, "template_id = ? AND order_index < ?", instance.TemplateID, domainworkflow.ArchivedThreshold)
		if err != nil {
			return err
		}
		sort.Slice(templateStages, func(i, j int) bool { return templateStages[i].OrderIndex < templateStages[j].OrderIndex })

		existing, err := stageInstRepo.Where(ctx, "instance_id = ?", instance.ID)
		if err != nil {
			return err
		}

		nextIndex, found := determineNextOrderIndex(templateStages, existing)
		if !found {
			now := time.Now()
			instance.WorkflowStatus = enums.WorkflowStatusApproved
			instance.FinishedAt = &now
			if err := instanceRepo.Update(ctx, instance); err != nil {
				return err
			}
			instCopy := *instance
			*pending = append(*pending, func(ctx context.Context) { e.sink.WorkflowApproved(ctx, instCopy) })
			return nil
		}

		var group []domainworkflow.StageTemplate
		for _, st := range templateStages {
			if st.OrderIndex == nextIndex {
				group = append(group, st)
			}
		}

		now := time.Now()
		var firstActivatedTemplateID *int
		allSkipped := true

		for _, st := range group {
			si := &domainworkflow.StageInstance{
				InstanceID:             instance.ID,
				StageTemplateID:        st.ID,
				StageStatus:            enums.StageStatusActive,
				ActivatedAt:            &now,
				OrderIndexSnapshot:     st.OrderIndex,
				DecisionPolicySnapshot: st.DecisionPolicy,
				QuorumCountSnapshot:    st.QuorumCount,
				AllowRejectSnapshot:    st.AllowReject,
				AllowDelegateSnapshot:  st.AllowDelegate,
			}
			if err := stageInstRepo.Create(ctx, si); err != nil {
				return err
			}

			members, err := e.auth.EligibleUsersForStage(ctx, st.RequiredRoleID, st.RequiredUserLevel, transferSecurityGroupID)
			if err != nil {
				return err
			}

			if len(members) == 0 {
				completedAt := now
				si.StageStatus = enums.StageStatusSkipped
				si.CompletedAt = &completedAt
				if err := stageInstRepo.Update(ctx, si); err != nil {
					return err
				}
				sysAction := &domainworkflow.Action{
					StageInstanceID:         si.ID,
					ActionType:              enums.ActionApprove,
					Comment:                 "auto-skipped: no eligible approvers",
					ActionAt:                now,
					TriggersStageCompletion: true,
				}
				if err := actionRepo.Create(ctx, sysAction); err != nil {
					return err
				}
				siCopy := *si
				*pending = append(*pending, func(ctx context.Context) { e.sink.StageSkipped(ctx, siCopy) })
				continue
			}

			allSkipped = false
			stageTemplateCopy := st
			si.StageTemplate = &stageTemplateCopy
			for _, m := range members {
				assignment := &domainworkflow.Assignment{
					StageInstanceID:  si.ID,
					UserID:           m.UserID,
					RoleSnapshot:     m.RoleName,
					LevelSnapshot:    m.UserLevel,
					IsMandatory:      true,
					AssignmentStatus: enums.AssignmentStatusPending,
					AssignedAt:       now,
				}
				if err := assignmentRepo.Create(ctx, assignment); err != nil {
					return err
				}
				si.Assignments = append(si.Assignments, *assignment)
			}
			if firstActivatedTemplateID == nil {
				id := st.ID
				firstActivatedTemplateID = &id
			}
			siCopy := *si
			*pending = append(*pending, func(ctx context.Context) { e.sink.StageActivated(ctx, siCopy) })
		}

		instance.WorkflowStatus = enums.WorkflowStatusInProgress
		if instance.StartedAt == nil {
			instance.StartedAt = &now
		}
		if firstActivatedTemplateID != nil {
			instance.CurrentStageTemplateID = firstActivatedTemplateID
		}
		if err := instanceRepo.Update(ctx, instance); err != nil {
			return err
		}

		if allSkipped {
			continue
		}
		return nil
	}
}

// determineNextOrderIndex implements 4.4.2 step 2.
func determineNextOrderIndex(templateStages []domainworkflow.StageTemplate, existing []domainworkflow.StageInstance) (int, bool) {
	if len(existing) == 0 {
		found := false
		min := 0
		for _, st := range templateStages {
			if !found || st.OrderIndex < min {
				min = st.OrderIndex
				found = true
			}
		}
		return min, found
	}

	lastCompleted := -1
	for _, si := range existing {
		if si.StageStatus == enums.StageStatusCompleted || si.StageStatus == enums.StageStatusSkipped {
			if si.OrderIndexSnapshot > lastCompleted {
				lastCompleted = si.OrderIndexSnapshot
			}
		}
	}

	found := false
	next := 0
	for _, st := range templateStages {
		if st.OrderIndex > lastCompleted {
			if !found || st.OrderIndex < next {
				next = st.OrderIndex
				found = true
			}
		}
	}
	return next, found
}

// ProcessAction is 4.4.3.
func (e *Engine) ProcessAction(ctx context.Context, transferID, userID string, action enums.ActionType, comment string, delegateTo *string) (*domainworkflow.Instance, error) {
	release, err := e.locker.Lock(ctx, lockKey(transferID))
	if err != nil {
		return nil, wrapErr(KindInternalError, "lock-acquire-failed", err)
	}
	defer release()

	var result *domainworkflow.Instance
	var pendingCalls []func(context.Context)

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stageInstRepo := repository.NewRepository[domainworkflow.StageInstance](tx)
		assignmentRepo := repository.NewRepository[domainworkflow.Assignment](tx)
		actionRepo := repository.NewRepository[domainworkflow.Action](tx)
		delegationRepo := repository.NewRepository[domainworkflow.Delegation](tx)

		inst, err := e.activeInstance(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if inst == nil {
			return newErr(KindNotFound, ReasonInstanceNotFound, "no active workflow instance for transfer")
		}

		activeStages, err := stageInstRepo.Where(ctx, "instance_id = ? AND stage_status = ?", inst.ID, enums.StageStatusActive)
		if err != nil {
			return err
		}

		var targetStage *domainworkflow.StageInstance
		var myAssignment *domainworkflow.Assignment
		for i := range activeStages {
			assigns, err := assignmentRepo.Where(ctx, "stage_instance_id = ? AND user_id = ? AND assignment_status = ?",
				activeStages[i].ID, userID, enums.AssignmentStatusPending)
			if err != nil {
				return err
			}
			if len(assigns) > 0 {
				targetStage = &activeStages[i]
				myAssignment = &assigns[0]
				break
			}
		}
		if targetStage == nil {
			return newErr(KindStateConflict, "no-assignment", "user has no pending assignment on an active stage of this workflow")
		}

		if action == enums.ActionApprove || action == enums.ActionReject {
			dupe, err := actionRepo.Exists(ctx, "stage_instance_id = ? AND user_id = ? AND action_type = ? AND comment = ?",
				targetStage.ID, userID, action, comment)
			if err != nil {
				return err
			}
			if dupe {
				return newErr(KindPolicyViolation, ReasonDuplicateAction, "duplicate terminal action for this user/stage/comment")
			}
		}

		now := time.Now()
		switch action {
		case enums.ActionApprove:
			myAssignment.AssignmentStatus = enums.AssignmentStatusApproved
			if err := assignmentRepo.Update(ctx, myAssignment); err != nil {
				return err
			}
			if err := actionRepo.Create(ctx, &domainworkflow.Action{
				StageInstanceID: targetStage.ID, UserID: &userID, AssignmentID: &myAssignment.ID,
				ActionType: enums.ActionApprove, Comment: comment, ActionAt: now,
			}); err != nil {
				return err
			}
			metrics.ActionsProcessed.WithLabelValues("approve", "ok").Inc()

		case enums.ActionReject:
			if !targetStage.AllowRejectSnapshot {
				return newErr(KindPolicyViolation, ReasonRejectNotAllowed, "stage does not allow rejection")
			}
			if comment == "" {
				return newErr(KindPolicyViolation, ReasonReasonRequired, "a rejection comment is required")
			}
			myAssignment.AssignmentStatus = enums.AssignmentStatusRejected
			if err := assignmentRepo.Update(ctx, myAssignment); err != nil {
				return err
			}
			if err := actionRepo.Create(ctx, &domainworkflow.Action{
				StageInstanceID: targetStage.ID, UserID: &userID, AssignmentID: &myAssignment.ID,
				ActionType: enums.ActionReject, Comment: comment, ActionAt: now,
			}); err != nil {
				return err
			}
			metrics.ActionsProcessed.WithLabelValues("reject", "ok").Inc()

		case enums.ActionDelegate:
			if !targetStage.AllowDelegateSnapshot {
				return newErr(KindPolicyViolation, ReasonDelegateNotAllowed, "stage does not allow delegation")
			}
			if delegateTo == nil || *delegateTo == "" {
				return newErr(KindInvalidInput, ReasonInvalidTargetUser, "delegate target user is required")
			}
			if *delegateTo == userID {
				return newErr(KindPolicyViolation, ReasonInvalidTargetUser, "cannot delegate to self")
			}
			hasAssignment, err := assignmentRepo.Exists(ctx, "stage_instance_id = ? AND user_id = ?", targetStage.ID, *delegateTo)
			if err != nil {
				return err
			}
			if hasAssignment {
				return newErr(KindPolicyViolation, ReasonInvalidTargetUser, "delegate target already has an assignment on this stage")
			}
			hasActiveDelegation, err := delegationRepo.Exists(ctx, "stage_instance_id = ? AND to_user_id = ? AND active = ?", targetStage.ID, *delegateTo, true)
			if err != nil {
				return err
			}
			if hasActiveDelegation {
				return newErr(KindPolicyViolation, ReasonInvalidTargetUser, "delegate target already has an active delegation on this stage")
			}

			if err := delegationRepo.Create(ctx, &domainworkflow.Delegation{
				FromUserID: userID, ToUserID: *delegateTo, StageInstanceID: targetStage.ID, Active: true,
			}); err != nil {
				return err
			}
			if err := assignmentRepo.Create(ctx, &domainworkflow.Assignment{
				StageInstanceID: targetStage.ID, UserID: *delegateTo,
				RoleSnapshot: myAssignment.RoleSnapshot, LevelSnapshot: myAssignment.LevelSnapshot,
				IsMandatory: myAssignment.IsMandatory, AssignmentStatus: enums.AssignmentStatusPending, AssignedAt: now,
			}); err != nil {
				return err
			}
			myAssignment.AssignmentStatus = enums.AssignmentStatusDelegated
			if err := assignmentRepo.Update(ctx, myAssignment); err != nil {
				return err
			}
			if err := actionRepo.Create(ctx, &domainworkflow.Action{
				StageInstanceID: targetStage.ID, UserID: &userID, AssignmentID: &myAssignment.ID,
				ActionType: enums.ActionDelegate, Comment: comment, ActionAt: now,
			}); err != nil {
				return err
			}
			metrics.ActionsProcessed.WithLabelValues("delegate", "ok").Inc()

			// Delegation triggers no stage-group evaluation (§4.4.3).
			result = inst
			return nil

		default:
			return newErr(KindInvalidInput, ReasonMalformedAction, "unknown action type")
		}

		tr, err := e.transfers.GetTransfer(ctx, transferID)
		if err != nil {
			return wrapErr(KindInternalError, "transfer-lookup-failed", err)
		}
		if tr == nil {
			return newErr(KindNotFound, ReasonUnknownTransfer, "transfer not found")
		}
		if err := e.evaluateStageGroup(ctx, tx, inst, tr.SecurityGroupID, &pendingCalls); err != nil {
			return err
		}
		result = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.fireAll(ctx, pendingCalls)
	return result, nil
}

// evaluateStageGroup is 4.4.4.
func (e *Engine) evaluateStageGroup(ctx context.Context, tx *gorm.DB, inst *domainworkflow.Instance, transferSecurityGroupID int, pending *[]func(context.Context)) error {
	stageInstRepo := repository.NewRepository[domainworkflow.StageInstance](tx)
	assignmentRepo := repository.NewRepository[domainworkflow.Assignment](tx)
	actionRepo := repository.NewRepository[domainworkflow.Action](tx)
	delegationRepo := repository.NewRepository[domainworkflow.Delegation](tx)
	instanceRepo := repository.NewRepository[domainworkflow.Instance](tx)

	activeStages, err := stageInstRepo.Where(ctx, "instance_id = ? AND stage_status = ?", inst.ID, enums.StageStatusActive)
	if err != nil {
		return err
	}
	if len(activeStages) == 0 {
		return nil
	}

	outcomes := make([]enums.StageOutcome, len(activeStages))
	for i := range activeStages {
		outcome, err := evaluateStage(ctx, assignmentRepo, actionRepo, &activeStages[i])
		if err != nil {
			return err
		}
		outcomes[i] = outcome
		if outcome == enums.StageOutcomeUnsatisfiable {
			transferID := inst.TransferID
			stageInstanceID := activeStages[i].ID
			*pending = append(*pending, func(ctx context.Context) {
				e.sink.OperationalWarning(ctx, transferID, fmt.Sprintf("quorum unsatisfiable for stage instance %d", stageInstanceID))
			})
		}
	}

	groupOutcome := enums.StageOutcomeApproved
	for _, o := range outcomes {
		if o == enums.StageOutcomeRejected {
			groupOutcome = enums.StageOutcomeRejected
			break
		}
		if o != enums.StageOutcomeApproved {
			groupOutcome = enums.StageOutcomePending
		}
	}
	if groupOutcome == enums.StageOutcomePending {
		return nil
	}

	now := time.Now()
	for i := range activeStages {
		st := &activeStages[i]
		st.StageStatus = enums.StageStatusCompleted
		st.CompletedAt = &now
		if err := stageInstRepo.Update(ctx, st); err != nil {
			return err
		}
		if err := deactivateDelegations(ctx, delegationRepo, st.ID, now); err != nil {
			return err
		}
		if err := deletePendingAssignments(ctx, assignmentRepo, st.ID); err != nil {
			return err
		}

		outcomeStr := "approved"
		if groupOutcome == enums.StageOutcomeRejected {
			outcomeStr = "rejected"
		}
		stCopy := *st
		*pending = append(*pending, func(ctx context.Context) { e.sink.StageCompleted(ctx, stCopy, outcomeStr) })
	}

	if groupOutcome == enums.StageOutcomeRejected {
		inst.WorkflowStatus = enums.WorkflowStatusRejected
		inst.FinishedAt = &now
		if err := instanceRepo.Update(ctx, inst); err != nil {
			return err
		}
		instCopy := *inst
		transferID := inst.TransferID
		templateID := inst.TemplateID
		*pending = append(*pending, func(ctx context.Context) { e.sink.WorkflowRejected(ctx, instCopy) })
		*pending = append(*pending, func(ctx context.Context) {
			if err := e.transfers.SetStatus(ctx, transferID, "rejected", int(enums.TransferStatusLevelSubmitted)); err != nil {
				e.log.Error().Err(err).Str("transfer_id", transferID).Msg("failed to notify transfer store of rejection")
			}
		})
		*pending = append(*pending, func(ctx context.Context) {
			tpl, err := e.templates.GetTemplate(ctx, templateID)
			if err != nil || tpl == nil || tpl.TransferType != enums.TransferTypeHoldRelease {
				return
			}
			if err := e.ReleaseHoldIfRejected(ctx, transferID); err != nil {
				e.log.Error().Err(err).Str("transfer_id", transferID).Msg("failed to evaluate hold release on rejection")
			}
		})
		metrics.WorkflowsTerminal.WithLabelValues("rejected").Inc()
		return nil
	}

	if err := e.activateNext(ctx, tx, inst, transferSecurityGroupID, pending); err != nil {
		return err
	}
	if inst.WorkflowStatus == enums.WorkflowStatusApproved {
		metrics.WorkflowsTerminal.WithLabelValues("approved").Inc()
		return e.advanceChain(ctx, tx, inst, pending)
	}
	return nil
}

func evaluateStage(ctx context.Context, assignmentRepo *repository.Repository[domainworkflow.Assignment], actionRepo *repository.Repository[domainworkflow.Action], st *domainworkflow.StageInstance) (enums.StageOutcome, error) {
	assignments, err := assignmentRepo.Where(ctx, "stage_instance_id = ?", st.ID)
	if err != nil {
		return enums.StageOutcomePending, err
	}

	rejectExists, err := actionRepo.Exists(ctx, "stage_instance_id = ? AND action_type = ?", st.ID, enums.ActionReject)
	if err != nil {
		return enums.StageOutcomePending, err
	}
	if rejectExists && st.AllowRejectSnapshot {
		return enums.StageOutcomeRejected, nil
	}

	return decidePolicyOutcome(st.DecisionPolicySnapshot, assignments, st.QuorumCountSnapshot), nil
}

// decidePolicyOutcome is evaluateStage's pure decision-policy logic (the
// part that doesn't need the reject-lookup/DB round trip).
func decidePolicyOutcome(policy enums.DecisionPolicy, assignments []domainworkflow.Assignment, quorumCount *int) enums.StageOutcome {
	switch policy {
	case enums.DecisionPolicyAll:
		any := false
		allApproved := true
		for _, a := range assignments {
			if a.AssignmentStatus == enums.AssignmentStatusDelegated {
				continue
			}
			any = true
			if a.AssignmentStatus != enums.AssignmentStatusApproved {
				allApproved = false
			}
		}
		if any && allApproved {
			return enums.StageOutcomeApproved
		}
		return enums.StageOutcomePending

	case enums.DecisionPolicyAny:
		for _, a := range assignments {
			if a.AssignmentStatus == enums.AssignmentStatusApproved {
				return enums.StageOutcomeApproved
			}
		}
		return enums.StageOutcomePending

	case enums.DecisionPolicyQuorum:
		approved := 0
		for _, a := range assignments {
			if a.AssignmentStatus == enums.AssignmentStatusApproved {
				approved++
			}
		}
		quorum := 0
		if quorumCount != nil {
			quorum = *quorumCount
		}
		if quorum > len(assignments) {
			return enums.StageOutcomeUnsatisfiable
		}
		if approved >= quorum {
			return enums.StageOutcomeApproved
		}
		return enums.StageOutcomePending

	default:
		return enums.StageOutcomePending
	}
}

func deactivateDelegations(ctx context.Context, repo *repository.Repository[domainworkflow.Delegation], stageInstanceID int, now time.Time) error {
	rows, err := repo.Where(ctx, "stage_instance_id = ? AND active = ?", stageInstanceID, true)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i].Active = false
		deactivatedAt := now
		rows[i].DeactivatedAt = &deactivatedAt
		if err := repo.Update(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func deletePendingAssignments(ctx context.Context, repo *repository.Repository[domainworkflow.Assignment], stageInstanceID int) error {
	rows, err := repo.Where(ctx, "stage_instance_id = ? AND assignment_status = ?", stageInstanceID, enums.AssignmentStatusPending)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := repo.Delete(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// advanceChain is 4.4.5. completed is the instance that just turned
// approved; it looks up the next instance in the chain and activates it,
// looping through any instance that completes instantly (an empty
// template), until one remains in-progress or the chain is exhausted.
func (e *Engine) advanceChain(ctx context.Context, tx *gorm.DB, completed *domainworkflow.Instance, pending *[]func(context.Context)) error {
	instanceRepo := repository.NewRepository[domainworkflow.Instance](tx)

	for {
		nextRows, err := instanceRepo.Where(ctx, "transfer_id = ? AND execution_order > ? AND workflow_status IN ?",
			completed.TransferID, completed.ExecutionOrder,
			[]enums.WorkflowInstanceStatus{enums.WorkflowStatusPending, enums.WorkflowStatusInProgress})
		if err != nil {
			return err
		}
		if len(nextRows) == 0 {
			break
		}
		sort.Slice(nextRows, func(i, j int) bool { return nextRows[i].ExecutionOrder < nextRows[j].ExecutionOrder })
		next := &nextRows[0]

		tr, err := e.transfers.GetTransfer(ctx, completed.TransferID)
		if err != nil {
			return wrapErr(KindInternalError, "transfer-lookup-failed", err)
		}
		if tr == nil {
			return newErr(KindNotFound, ReasonUnknownTransfer, "transfer not found during chain advance")
		}
		if err := e.activateNext(ctx, tx, next, tr.SecurityGroupID, pending); err != nil {
			return err
		}
		if next.WorkflowStatus != enums.WorkflowStatusApproved {
			return nil
		}
		completed = next
	}

	transferID := completed.TransferID
	*pending = append(*pending, func(ctx context.Context) { e.sink.ChainCompleted(ctx, transferID, "approved") })
	*pending = append(*pending, func(ctx context.Context) {
		if err := e.transfers.SetStatus(ctx, transferID, "approved", int(enums.TransferStatusLevelApproved)); err != nil {
			e.log.Error().Err(err).Str("transfer_id", transferID).Msg("failed to notify transfer store of approval")
		}
	})
	*pending = append(*pending, func(ctx context.Context) { e.sink.TransferTerminal(ctx, transferID, "approved") })
	return nil
}

// CancelWorkflow is 4.4.6.
func (e *Engine) CancelWorkflow(ctx context.Context, transferID string, reason string) error {
	release, err := e.locker.Lock(ctx, lockKey(transferID))
	if err != nil {
		return wrapErr(KindInternalError, "lock-acquire-failed", err)
	}
	defer release()

	var pendingCalls []func(context.Context)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := e.activeInstance(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if inst == nil {
			return newErr(KindStateConflict, "already-terminal", "no active workflow exists for this transfer")
		}

		stageInstRepo := repository.NewRepository[domainworkflow.StageInstance](tx)
		delegationRepo := repository.NewRepository[domainworkflow.Delegation](tx)
		actionRepo := repository.NewRepository[domainworkflow.Action](tx)
		instanceRepo := repository.NewRepository[domainworkflow.Instance](tx)

		activeStages, err := stageInstRepo.Where(ctx, "instance_id = ? AND stage_status = ?", inst.ID, enums.StageStatusActive)
		if err != nil {
			return err
		}

		now := time.Now()
		for i := range activeStages {
			st := &activeStages[i]
			st.StageStatus = enums.StageStatusCancelled
			st.CompletedAt = &now
			if err := stageInstRepo.Update(ctx, st); err != nil {
				return err
			}
			if err := deactivateDelegations(ctx, delegationRepo, st.ID, now); err != nil {
				return err
			}
			if err := actionRepo.Create(ctx, &domainworkflow.Action{
				StageInstanceID: st.ID, ActionType: enums.ActionReject, Comment: reason, ActionAt: now,
			}); err != nil {
				return err
			}
		}

		inst.WorkflowStatus = enums.WorkflowStatusCancelled
		inst.FinishedAt = &now
		if err := instanceRepo.Update(ctx, inst); err != nil {
			return err
		}
		instCopy := *inst
		pendingCalls = append(pendingCalls, func(ctx context.Context) { e.sink.WorkflowCancelled(ctx, instCopy) })
		metrics.WorkflowsTerminal.WithLabelValues("cancelled").Inc()
		return nil
	})
	if err != nil {
		return err
	}

	e.fireAll(ctx, pendingCalls)
	return nil
}

// RestartWorkflow is 4.4.6: cancelWorkflow followed by startWorkflow. A
// transfer with no active workflow to cancel simply proceeds to start.
func (e *Engine) RestartWorkflow(ctx context.Context, transferID string) (*domainworkflow.Instance, error) {
	if err := e.CancelWorkflow(ctx, transferID, "restarted"); err != nil && !IsKind(err, KindStateConflict) {
		return nil, err
	}
	return e.StartWorkflow(ctx, transferID)
}

// GetStatus returns the active workflow instance (or the most recent one,
// if none is active) and its stage instances.
func (e *Engine) GetStatus(ctx context.Context, transferID string) (*domainworkflow.Instance, []domainworkflow.StageInstance, error) {
	inst, err := e.activeInstance(ctx, e.db, transferID)
	if err != nil {
		return nil, nil, wrapErr(KindInternalError, "active-instance-lookup-failed", err)
	}
	if inst == nil {
		repo := repository.NewRepository[domainworkflow.Instance](e.db)
		rows, err := repo.Where(ctx, "transfer_id = ?", transferID)
		if err != nil {
			return nil, nil, err
		}
		if len(rows) == 0 {
			return nil, nil, newErr(KindNotFound, "workflow-not-found", "no workflow instance found for transfer")
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ExecutionOrder > rows[j].ExecutionOrder })
		inst = &rows[0]
	}

	stageRepo := repository.NewRepository[domainworkflow.StageInstance](e.db)
	stages, err := stageRepo.Where(ctx, "instance_id = ?", inst.ID)
	if err != nil {
		return nil, nil, err
	}
	return inst, stages, nil
}

// ScanSLABreaches finds active stage instances whose stage template's
// sla_hours has elapsed since activation and fires SLABreached for each.
// It does not mutate stage state — an SLA breach is advisory (§4.6),
// surfaced to operators rather than auto-escalated.
func (e *Engine) ScanSLABreaches(ctx context.Context) (int, error) {
	stageRepo := repository.NewRepository[domainworkflow.StageInstance](e.db)
	active, err := stageRepo.Where(ctx, "stage_status = ?", int(enums.StageStatusActive))
	if err != nil {
		return 0, wrapErr(KindInternalError, "sla-scan-query-failed", err)
	}

	templateRepo := repository.NewRepository[domainworkflow.StageTemplate](e.db)
	breached := 0
	for i := range active {
		stage := active[i]
		if stage.ActivatedAt == nil {
			continue
		}
		tpl, err := templateRepo.GetByID(ctx, stage.StageTemplateID)
		if err != nil || tpl == nil || tpl.SLAHours == nil {
			continue
		}
		if slaDeadlinePassed(*stage.ActivatedAt, *tpl.SLAHours, time.Now().UTC()) {
			e.sink.SLABreached(ctx, stage)
			metrics.SLABreaches.Inc()
			breached++
		}
	}
	return breached, nil
}

// slaDeadlinePassed reports whether slaHours have elapsed between
// activatedAt and now.
func slaDeadlinePassed(activatedAt time.Time, slaHours int, now time.Time) bool {
	return now.After(activatedAt.Add(time.Duration(slaHours) * time.Hour))
}
