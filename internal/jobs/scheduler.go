package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/enterprise-bte/bte-engine/internal/config"
	"github.com/enterprise-bte/bte-engine/internal/events"
	"github.com/enterprise-bte/bte-engine/internal/metrics"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
)

// Scheduler manages background jobs: cron-based recurring tasks and
// on-demand jobs via a worker pool.
//
// Two recurring jobs are registered:
//   - an SLA-breach scan, surfacing stage instances that have overrun their
//     stage template's sla_hours (§4.6)
//   - an outbox drain, handing undelivered events to a Deliverer (§5)
type Scheduler struct {
	cron       *cron.Cron
	workerPool *WorkerPool
	engine     *workflow.Engine
	drainer    *events.Drainer
	cfg        *config.Config
	log        zerolog.Logger
	cancel     context.CancelFunc
}

// NewScheduler creates a job scheduler. drainer may be nil, in which case
// the outbox-drain job is not registered — the engine records outbox rows
// regardless, and they simply accumulate until an operator wires a
// Deliverer and restarts with one.
func NewScheduler(engine *workflow.Engine, drainer *events.Drainer, cfg *config.Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:  engine,
		drainer: drainer,
		cfg:     cfg,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start initializes the worker pool and registers the recurring cron jobs.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	poolSize := s.cfg.Jobs.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	queueSize := s.cfg.Jobs.WorkerQueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	s.workerPool = NewWorkerPool(poolSize, queueSize, s.log)
	s.workerPool.Start()

	cronLogger := newCronLogger(s.log)
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	slaSchedule := s.cfg.Jobs.SLAScanSchedule
	if slaSchedule == "" {
		slaSchedule = "@every 5m"
	}
	if _, err := s.cron.AddFunc(slaSchedule, s.runSLAScan(ctx)); err != nil {
		s.log.Error().Err(err).Msg("failed to register SLA breach scan")
	}

	if s.drainer != nil {
		drainSchedule := s.cfg.Jobs.OutboxDrainSchedule
		if drainSchedule == "" {
			drainSchedule = "@every 10s"
		}
		if _, err := s.cron.AddFunc(drainSchedule, s.runOutboxDrain(ctx)); err != nil {
			s.log.Error().Err(err).Msg("failed to register outbox drain job")
		}
	} else {
		s.log.Warn().Msg("no outbox deliverer configured, outbox drain job not registered")
	}

	s.cron.Start()
	s.log.Info().Str("sla_schedule", slaSchedule).Msg("cron scheduler started")
}

func (s *Scheduler) runSLAScan(ctx context.Context) func() {
	return func() {
		s.workerPool.Enqueue(Job{
			Name: "sla-breach-scan",
			Fn: func(jobCtx context.Context) error {
				breached, err := s.engine.ScanSLABreaches(jobCtx)
				if err != nil {
					return err
				}
				if breached > 0 {
					s.log.Info().Int("breached", breached).Msg("SLA breaches detected")
				}
				return nil
			},
		})
	}
}

func (s *Scheduler) runOutboxDrain(ctx context.Context) func() {
	return func() {
		s.workerPool.Enqueue(Job{
			Name: "outbox-drain",
			Fn: func(jobCtx context.Context) error {
				delivered, err := s.drainer.DrainOnce(jobCtx)
				if err != nil {
					return err
				}
				if backlog, berr := s.drainer.Backlog(jobCtx); berr == nil {
					metrics.OutboxBacklog.Set(float64(backlog))
				}
				if delivered > 0 {
					s.log.Debug().Int("delivered", delivered).Msg("outbox events delivered")
				}
				return nil
			},
		})
	}
}

// Stop gracefully shuts down all background workers.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("stopping scheduler")

	if s.cron != nil {
		cronCtx := s.cron.Stop()
		<-cronCtx.Done()
		s.log.Info().Msg("cron scheduler stopped")
	}

	if s.cancel != nil {
		s.cancel()
	}

	if s.workerPool != nil {
		s.workerPool.Shutdown()
	}

	s.log.Info().Msg("scheduler stopped")
}

// cronLogAdapter adapts zerolog to the cron.Logger interface.
type cronLogAdapter struct {
	log zerolog.Logger
}

func newCronLogger(log zerolog.Logger) cron.Logger {
	return &cronLogAdapter{log: log.With().Str("component", "cron").Logger()}
}

func (l *cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(kvToMap(keysAndValues)).Msg(msg)
}

func (l *cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(kvToMap(keysAndValues)).Msg(msg)
}

func kvToMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			m[key] = keysAndValues[i+1]
		}
	}
	return m
}
