package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/repository"
)

// Registry is C3: given (securityGroup, transactionCodePrefix), returns the
// ordered list of workflow templates a transfer must route through.
type Registry struct {
	assignmentRepo *repository.Repository[domainworkflow.TemplateAssignment]
	db             *gorm.DB
	log            zerolog.Logger
}

// NewRegistry builds a Registry.
func NewRegistry(db *gorm.DB, log zerolog.Logger) *Registry {
	return &Registry{
		assignmentRepo: repository.NewRepository[domainworkflow.TemplateAssignment](db),
		db:             db,
		log:            log.With().Str("component", "workflow.Registry").Logger(),
	}
}

// OrderedAssignments returns the assignments applicable to (securityGroupID,
// transactionCodePrefix), per §4.3: include assignments whose
// transactionCodeFilter is empty or exactly equal to the prefix, sorted by
// executionOrder ascending.
func (r *Registry) OrderedAssignments(ctx context.Context, securityGroupID int, transactionCodePrefix string) ([]domainworkflow.TemplateAssignment, error) {
	all, err := r.assignmentRepo.Where(ctx, "security_group_id = ?", securityGroupID)
	if err != nil {
		return nil, err
	}

	var matched []domainworkflow.TemplateAssignment
	for _, a := range all {
		if a.TransactionCodeFilter == "" || a.TransactionCodeFilter == transactionCodePrefix {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ExecutionOrder < matched[j].ExecutionOrder })
	return matched, nil
}

// DenseExecutionOrder renumbers a selected assignment subset to gapless
// 1..n, preserving relative order, so WorkflowInstance.executionOrder is
// always contiguous regardless of gaps in the stored assignment rows.
func DenseExecutionOrder(assignments []domainworkflow.TemplateAssignment) []domainworkflow.TemplateAssignment {
	out := make([]domainworkflow.TemplateAssignment, len(assignments))
	for i, a := range assignments {
		a.ExecutionOrder = i + 1
		out[i] = a
	}
	return out
}

// BulkReassign atomically replaces every assignment for securityGroupID
// with newAssignments. Duplicate templateIDs or duplicate executionOrders
// in the input are rejected before anything is written.
func (r *Registry) BulkReassign(ctx context.Context, securityGroupID int, newAssignments []domainworkflow.TemplateAssignment) error {
	seenTemplate := map[int]bool{}
	seenOrder := map[int]bool{}
	for _, a := range newAssignments {
		if seenTemplate[a.TemplateID] {
			return newErr(KindInvalidInput, "duplicate-template-assignment", fmt.Sprintf("template %d assigned more than once", a.TemplateID))
		}
		seenTemplate[a.TemplateID] = true
		if seenOrder[a.ExecutionOrder] {
			return newErr(KindInvalidInput, "duplicate-execution-order", fmt.Sprintf("execution order %d used more than once", a.ExecutionOrder))
		}
		seenOrder[a.ExecutionOrder] = true
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("security_group_id = ?", securityGroupID).
			Delete(&domainworkflow.TemplateAssignment{}).Error; err != nil {
			return err
		}
		for i := range newAssignments {
			newAssignments[i].SecurityGroupID = securityGroupID
			newAssignments[i].ID = 0
		}
		if len(newAssignments) == 0 {
			return nil
		}
		return tx.Create(&newAssignments).Error
	})
}
