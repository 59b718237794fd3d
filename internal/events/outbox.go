package events

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	domainevents "github.com/enterprise-bte/bte-engine/internal/domain/events"
	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/repository"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
)

// OutboxSink persists every event as a row rather than delivering it
// in-line. A background job (internal/jobs) later drains undelivered rows
// to a downstream Deliverer, so the network call to the integration worker
// happens out of band. The engine calls its sinks only after the enclosing
// transaction commits, so each row is written in its own statement after
// the workflow mutation, not as part of that transaction.
type OutboxSink struct {
	repo *repository.Repository[domainevents.OutboxEvent]
	log  zerolog.Logger
}

// NewOutboxSink builds an OutboxSink that writes its rows through db.
func NewOutboxSink(db *gorm.DB, log zerolog.Logger) *OutboxSink {
	return &OutboxSink{
		repo: repository.NewRepository[domainevents.OutboxEvent](db),
		log:  log.With().Str("component", "events.OutboxSink").Logger(),
	}
}

func (o *OutboxSink) record(ctx context.Context, eventType, transferID string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		o.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal outbox payload")
		return
	}
	row := &domainevents.OutboxEvent{
		EventType:  eventType,
		TransferID: transferID,
		Payload:    string(body),
	}
	if err := o.repo.Create(ctx, row); err != nil {
		o.log.Error().Err(err).Str("event_type", eventType).Msg("failed to record outbox event")
	}
}

func (o *OutboxSink) StageActivated(ctx context.Context, stage domainworkflow.StageInstance) {
	o.record(ctx, "stage-activated", "", stage)
}
func (o *OutboxSink) StageSkipped(ctx context.Context, stage domainworkflow.StageInstance) {
	o.record(ctx, "stage-skipped", "", stage)
}
func (o *OutboxSink) StageCompleted(ctx context.Context, stage domainworkflow.StageInstance, outcome string) {
	o.record(ctx, "stage-completed", "", map[string]interface{}{"stage": stage, "outcome": outcome})
}
func (o *OutboxSink) WorkflowApproved(ctx context.Context, instance domainworkflow.Instance) {
	o.record(ctx, "workflow-approved", instance.TransferID, instance)
}
func (o *OutboxSink) WorkflowRejected(ctx context.Context, instance domainworkflow.Instance) {
	o.record(ctx, "workflow-rejected", instance.TransferID, instance)
}
func (o *OutboxSink) WorkflowCancelled(ctx context.Context, instance domainworkflow.Instance) {
	o.record(ctx, "workflow-cancelled", instance.TransferID, instance)
}
func (o *OutboxSink) ChainCompleted(ctx context.Context, transferID string, outcome string) {
	o.record(ctx, "chain-completed", transferID, map[string]string{"outcome": outcome})
}
func (o *OutboxSink) TransferTerminal(ctx context.Context, transferID string, outcome string) {
	o.record(ctx, "transfer-terminal", transferID, map[string]string{"outcome": outcome})
}
func (o *OutboxSink) SLABreached(ctx context.Context, stage domainworkflow.StageInstance) {
	o.record(ctx, "sla-breached", "", stage)
}
func (o *OutboxSink) OperationalWarning(ctx context.Context, transferID string, reason string) {
	o.record(ctx, "operational-warning", transferID, map[string]string{"reason": reason})
}

var _ workflow.EventSink = (*OutboxSink)(nil)

// Deliverer hands one drained outbox row to whatever transport the
// integration worker expects (HTTP callback, message broker, etc.). The
// engine ships no concrete implementation; operators supply one.
type Deliverer interface {
	Deliver(ctx context.Context, eventType, transferID, payload string) error
}

// Drainer reads undelivered OutboxEvent rows and hands each to a Deliverer,
// marking it delivered on success and recording the error otherwise. It is
// invoked periodically by internal/jobs.
type Drainer struct {
	repo      *repository.Repository[domainevents.OutboxEvent]
	deliverer Deliverer
	batchSize int
	log       zerolog.Logger
}

// NewDrainer builds a Drainer.
func NewDrainer(db *gorm.DB, deliverer Deliverer, batchSize int, log zerolog.Logger) *Drainer {
	return &Drainer{
		repo:      repository.NewRepository[domainevents.OutboxEvent](db),
		deliverer: deliverer,
		batchSize: batchSize,
		log:       log.With().Str("component", "events.Drainer").Logger(),
	}
}

// Backlog returns the count of undelivered outbox rows.
func (d *Drainer) Backlog(ctx context.Context) (int64, error) {
	return d.repo.CountWhere(ctx, "delivered = ?", false)
}

// DrainOnce delivers up to batchSize undelivered rows, oldest first, and
// returns the number successfully delivered.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	var rows []domainevents.OutboxEvent
	err := d.repo.Query(ctx).Where("delivered = ?", false).Order("id").Limit(d.batchSize).Find(&rows).Error
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range rows {
		row := &rows[i]
		err := d.deliverer.Deliver(ctx, row.EventType, row.TransferID, row.Payload)
		row.Attempts++
		if err != nil {
			row.LastError = err.Error()
			d.log.Warn().Err(err).Int("outbox_id", row.ID).Str("event_type", row.EventType).Msg("outbox delivery failed")
		} else {
			row.Delivered = true
			delivered++
		}
		if uerr := d.repo.Update(ctx, row); uerr != nil {
			d.log.Error().Err(uerr).Int("outbox_id", row.ID).Msg("failed to persist outbox delivery state")
		}
	}
	return delivered, nil
}
