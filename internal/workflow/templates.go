package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/repository"
)

// TemplateStore is C2: CRUD for templates and their stages, with the
// archive-on-delete and snapshot-only-affects-future-instances rules of
// §4.2.
type TemplateStore struct {
	templateRepo *repository.Repository[domainworkflow.Template]
	stageRepo    *repository.Repository[domainworkflow.StageTemplate]
	instanceRepo *repository.Repository[domainworkflow.Instance]
	stageInstRepo *repository.Repository[domainworkflow.StageInstance]
	db           *gorm.DB
	log          zerolog.Logger
}

// NewTemplateStore builds a TemplateStore.
func NewTemplateStore(db *gorm.DB, log zerolog.Logger) *TemplateStore {
	return &TemplateStore{
		templateRepo:  repository.NewRepository[domainworkflow.Template](db),
		stageRepo:     repository.NewRepository[domainworkflow.StageTemplate](db),
		instanceRepo:  repository.NewRepository[domainworkflow.Instance](db),
		stageInstRepo: repository.NewRepository[domainworkflow.StageInstance](db),
		db:            db,
		log:           log.With().Str("component", "workflow.TemplateStore").Logger(),
	}
}

// CreateTemplate inserts a template along with its stages, validating
// quorum sanity for every stage (when policy=quorum, quorumCount must be
// set and positive).
func (s *TemplateStore) CreateTemplate(ctx context.Context, tpl *domainworkflow.Template) error {
	for i := range tpl.Stages {
		if err := validateQuorum(tpl.Stages[i]); err != nil {
			return err
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(tpl).Error
	})
}

func validateQuorum(stage domainworkflow.StageTemplate) error {
	if stage.DecisionPolicy == enums.DecisionPolicyQuorum {
		if stage.QuorumCount == nil || *stage.QuorumCount <= 0 {
			return newErr(KindConfigurationError, ReasonQuorumExceedsAssignees,
				fmt.Sprintf("stage %q: quorum policy requires a positive quorumCount", stage.Name))
		}
	}
	return nil
}

// GetTemplate fetches a template with its non-archived stages, ordered by
// orderIndex. Archived stages are retained for audit but hidden from
// normal serialization.
func (s *TemplateStore) GetTemplate(ctx context.Context, id int) (*domainworkflow.Template, error) {
	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil || tpl == nil {
		return tpl, err
	}
	stages, err := s.stageRepo.Where(ctx, "template_id = ? AND order_index < ?", id, domainworkflow.ArchivedThreshold)
	if err != nil {
		return nil, err
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].OrderIndex < stages[j].OrderIndex })
	tpl.Stages = stages
	return tpl, nil
}

// AddStage appends a new stage to a template.
func (s *TemplateStore) AddStage(ctx context.Context, stage *domainworkflow.StageTemplate) error {
	if err := validateQuorum(*stage); err != nil {
		return err
	}
	return s.stageRepo.Create(ctx, stage)
}

// UpdateStage persists edits to a stage template. Per §4.2, decisionPolicy
// and quorumCount edits apply only to future instances: live
// StageInstances hold their own snapshot and are untouched by this call.
func (s *TemplateStore) UpdateStage(ctx context.Context, stage *domainworkflow.StageTemplate) error {
	if err := validateQuorum(*stage); err != nil {
		return err
	}
	return s.stageRepo.Update(ctx, stage)
}

// DeleteStage archives a stage if it has any non-terminal StageInstance,
// otherwise soft-deletes it outright.
func (s *TemplateStore) DeleteStage(ctx context.Context, stageID int) error {
	stage, err := s.stageRepo.GetByID(ctx, stageID)
	if err != nil {
		return err
	}
	if stage == nil {
		return newErr(KindNotFound, ReasonStageNotFound, "stage template not found")
	}

	live, err := s.hasLiveInstances(ctx, stageID)
	if err != nil {
		return err
	}
	if live {
		stage.Archive()
		return s.stageRepo.Update(ctx, stage)
	}
	return s.stageRepo.Delete(ctx, stage)
}

func (s *TemplateStore) hasLiveInstances(ctx context.Context, stageTemplateID int) (bool, error) {
	var nonTerminal []enums.StageInstanceStatus
	for st := enums.StageStatusPending; st <= enums.StageStatusCancelled; st++ {
		if !st.IsTerminal() {
			nonTerminal = append(nonTerminal, st)
		}
	}
	return s.stageInstRepo.Exists(ctx, "stage_template_id = ? AND stage_status IN ?", stageTemplateID, nonTerminal)
}

// DeleteTemplate forbids deletion while any instance — live or historical
// — references the template.
func (s *TemplateStore) DeleteTemplate(ctx context.Context, templateID int) error {
	tpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return err
	}
	if tpl == nil {
		return newErr(KindNotFound, "template-not-found", "workflow template not found")
	}

	referenced, err := s.instanceRepo.Exists(ctx, "template_id = ?", templateID)
	if err != nil {
		return err
	}
	if referenced {
		return newErr(KindPolicyViolation, "template-in-use", "template is referenced by at least one workflow instance and cannot be deleted")
	}
	return s.templateRepo.Delete(ctx, tpl)
}
