package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
)

// BreakerSink wraps a delegate sink (typically an outbound integration or
// notification adapter) with a circuit breaker per event channel, so a
// failing downstream (e.g. an unreachable ERP endpoint) cannot pile up
// latency across unrelated event types. Channels trip and recover
// independently. EventSink methods return no error, so a guarded call
// counts as failed only when the delegate panics.
type BreakerSink struct {
	delegate  workflow.EventSink
	log       zerolog.Logger
	threshold uint32
	openFor   time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerSink wraps delegate with a per-channel gobreaker.CircuitBreaker,
// tripping after threshold consecutive failures within a channel and
// probing again after openFor.
func NewBreakerSink(delegate workflow.EventSink, threshold uint32, openFor time.Duration, log zerolog.Logger) *BreakerSink {
	return &BreakerSink{
		delegate:  delegate,
		log:       log.With().Str("component", "events.BreakerSink").Logger(),
		threshold: threshold,
		openFor:   openFor,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *BreakerSink) breakerFor(channel string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[channel]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        channel,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     b.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.threshold
		},
	})
	b.breakers[channel] = cb
	return cb
}

func (b *BreakerSink) guard(channel string, call func() error) {
	cb := b.breakerFor(channel)
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, call()
	})
	if err != nil {
		b.log.Warn().Err(err).Str("channel", channel).Msg("event delivery suppressed by circuit breaker")
	}
}

func (b *BreakerSink) StageActivated(ctx context.Context, stage domainworkflow.StageInstance) {
	b.guard("stage-activated", func() error { b.delegate.StageActivated(ctx, stage); return nil })
}
func (b *BreakerSink) StageSkipped(ctx context.Context, stage domainworkflow.StageInstance) {
	b.guard("stage-skipped", func() error { b.delegate.StageSkipped(ctx, stage); return nil })
}
func (b *BreakerSink) StageCompleted(ctx context.Context, stage domainworkflow.StageInstance, outcome string) {
	b.guard("stage-completed", func() error { b.delegate.StageCompleted(ctx, stage, outcome); return nil })
}
func (b *BreakerSink) WorkflowApproved(ctx context.Context, instance domainworkflow.Instance) {
	b.guard("workflow-approved", func() error { b.delegate.WorkflowApproved(ctx, instance); return nil })
}
func (b *BreakerSink) WorkflowRejected(ctx context.Context, instance domainworkflow.Instance) {
	b.guard("workflow-rejected", func() error { b.delegate.WorkflowRejected(ctx, instance); return nil })
}
func (b *BreakerSink) WorkflowCancelled(ctx context.Context, instance domainworkflow.Instance) {
	b.guard("workflow-cancelled", func() error { b.delegate.WorkflowCancelled(ctx, instance); return nil })
}
func (b *BreakerSink) ChainCompleted(ctx context.Context, transferID string, outcome string) {
	b.guard("chain-completed", func() error { b.delegate.ChainCompleted(ctx, transferID, outcome); return nil })
}
func (b *BreakerSink) TransferTerminal(ctx context.Context, transferID string, outcome string) {
	b.guard("transfer-terminal", func() error { b.delegate.TransferTerminal(ctx, transferID, outcome); return nil })
}
func (b *BreakerSink) SLABreached(ctx context.Context, stage domainworkflow.StageInstance) {
	b.guard("sla-breached", func() error { b.delegate.SLABreached(ctx, stage); return nil })
}
func (b *BreakerSink) OperationalWarning(ctx context.Context, transferID string, reason string) {
	b.guard("operational-warning", func() error { b.delegate.OperationalWarning(ctx, transferID, reason); return nil })
}

var _ workflow.EventSink = (*BreakerSink)(nil)
