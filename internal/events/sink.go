// Package events implements C6, the event sink consumed by the workflow
// engine (spec §4.6). Sinks are fanned out via CompositeSink; individual
// sink failures are logged and never propagated back to the engine — per
// §7, "after a successful commit, failure to deliver an event is the
// sink's problem; the engine does not retry."
package events

import (
	"context"

	"github.com/rs/zerolog"

	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
)

// LogSink is the always-available sink: it structured-logs every event.
// Every engine deployment should include it, even alongside richer sinks,
// so event history survives a downstream sink outage.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "events.LogSink").Logger()}
}

func (s *LogSink) StageActivated(_ context.Context, stage domainworkflow.StageInstance) {
	s.log.Info().Int("stage_instance_id", stage.ID).Int("stage_template_id", stage.StageTemplateID).Msg("stage-activated")
}

func (s *LogSink) StageSkipped(_ context.Context, stage domainworkflow.StageInstance) {
	s.log.Info().Int("stage_instance_id", stage.ID).Msg("stage-skipped")
}

func (s *LogSink) StageCompleted(_ context.Context, stage domainworkflow.StageInstance, outcome string) {
	s.log.Info().Int("stage_instance_id", stage.ID).Str("outcome", outcome).Msg("stage-completed")
}

func (s *LogSink) WorkflowApproved(_ context.Context, instance domainworkflow.Instance) {
	s.log.Info().Int("workflow_instance_id", instance.ID).Str("transfer_id", instance.TransferID).Msg("workflow-approved")
}

func (s *LogSink) WorkflowRejected(_ context.Context, instance domainworkflow.Instance) {
	s.log.Info().Int("workflow_instance_id", instance.ID).Str("transfer_id", instance.TransferID).Msg("workflow-rejected")
}

func (s *LogSink) WorkflowCancelled(_ context.Context, instance domainworkflow.Instance) {
	s.log.Info().Int("workflow_instance_id", instance.ID).Str("transfer_id", instance.TransferID).Msg("workflow-cancelled")
}

func (s *LogSink) ChainCompleted(_ context.Context, transferID string, outcome string) {
	s.log.Info().Str("transfer_id", transferID).Str("outcome", outcome).Msg("chain-completed")
}

func (s *LogSink) TransferTerminal(_ context.Context, transferID string, outcome string) {
	s.log.Info().Str("transfer_id", transferID).Str("outcome", outcome).Msg("transfer-terminal")
}

func (s *LogSink) SLABreached(_ context.Context, stage domainworkflow.StageInstance) {
	s.log.Warn().Int("stage_instance_id", stage.ID).Msg("sla-breached")
}

func (s *LogSink) OperationalWarning(_ context.Context, transferID string, reason string) {
	s.log.Warn().Str("transfer_id", transferID).Str("reason", reason).Msg("operational-warning")
}

var _ workflow.EventSink = (*LogSink)(nil)

// CompositeSink fans an event out to every member sink, one after another
// in fan-out order. A panicking member is recovered and does not stop the
// others; a slow member delays the members after it.
type CompositeSink struct {
	sinks []workflow.EventSink
	log   zerolog.Logger
}

// NewCompositeSink builds a CompositeSink over the given members, in
// fan-out order.
func NewCompositeSink(log zerolog.Logger, sinks ...workflow.EventSink) *CompositeSink {
	return &CompositeSink{sinks: sinks, log: log.With().Str("component", "events.CompositeSink").Logger()}
}

func (c *CompositeSink) each(fn func(workflow.EventSink)) {
	for _, s := range c.sinks {
		func(s workflow.EventSink) {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error().Interface("panic", r).Msg("event sink panicked")
				}
			}()
			fn(s)
		}(s)
	}
}

func (c *CompositeSink) StageActivated(ctx context.Context, stage domainworkflow.StageInstance) {
	c.each(func(s workflow.EventSink) { s.StageActivated(ctx, stage) })
}
func (c *CompositeSink) StageSkipped(ctx context.Context, stage domainworkflow.StageInstance) {
	c.each(func(s workflow.EventSink) { s.StageSkipped(ctx, stage) })
}
func (c *CompositeSink) StageCompleted(ctx context.Context, stage domainworkflow.StageInstance, outcome string) {
	c.each(func(s workflow.EventSink) { s.StageCompleted(ctx, stage, outcome) })
}
func (c *CompositeSink) WorkflowApproved(ctx context.Context, instance domainworkflow.Instance) {
	c.each(func(s workflow.EventSink) { s.WorkflowApproved(ctx, instance) })
}
func (c *CompositeSink) WorkflowRejected(ctx context.Context, instance domainworkflow.Instance) {
	c.each(func(s workflow.EventSink) { s.WorkflowRejected(ctx, instance) })
}
func (c *CompositeSink) WorkflowCancelled(ctx context.Context, instance domainworkflow.Instance) {
	c.each(func(s workflow.EventSink) { s.WorkflowCancelled(ctx, instance) })
}
func (c *CompositeSink) ChainCompleted(ctx context.Context, transferID string, outcome string) {
	c.each(func(s workflow.EventSink) { s.ChainCompleted(ctx, transferID, outcome) })
}
func (c *CompositeSink) TransferTerminal(ctx context.Context, transferID string, outcome string) {
	c.each(func(s workflow.EventSink) { s.TransferTerminal(ctx, transferID, outcome) })
}
func (c *CompositeSink) SLABreached(ctx context.Context, stage domainworkflow.StageInstance) {
	c.each(func(s workflow.EventSink) { s.SLABreached(ctx, stage) })
}
func (c *CompositeSink) OperationalWarning(ctx context.Context, transferID string, reason string) {
	c.each(func(s workflow.EventSink) { s.OperationalWarning(ctx, transferID, reason) })
}

var _ workflow.EventSink = (*CompositeSink)(nil)
