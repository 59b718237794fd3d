package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/enterprise-bte/bte-engine/internal/authz"
	"github.com/enterprise-bte/bte-engine/internal/config"
	"github.com/enterprise-bte/bte-engine/internal/events"
	"github.com/enterprise-bte/bte-engine/internal/handler"
	"github.com/enterprise-bte/bte-engine/internal/jobs"
	"github.com/enterprise-bte/bte-engine/internal/lock"
	"github.com/enterprise-bte/bte-engine/internal/metrics"
	"github.com/enterprise-bte/bte-engine/internal/middleware"
	"github.com/enterprise-bte/bte-engine/internal/repository"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
	"github.com/enterprise-bte/bte-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging)
	log.Info().Msg("starting bte-engine...")

	repos, err := repository.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize repositories")
	}
	defer repos.Close()

	authResolver := authz.New(repos.GormDB, log)
	auth := workflow.NewAuthResolver(authResolver)

	transfers := repository.NewGormTransferStore(repos.GormDB, log)
	templates := workflow.NewTemplateStore(repos.GormDB, log)
	registry := workflow.NewRegistry(repos.GormDB, log)
	visibility := workflow.NewVisibility(repos.CoreSQL, auth, transfers, log)

	var locker workflow.Locker
	if cfg.Redis.Enabled {
		locker = lock.NewRedisLocker(repos.Redis, cfg.Jobs.LockTTL, cfg.Jobs.LockRetryInterval, log)
		log.Info().Msg("using Redis-backed distributed workflow lock")
	} else {
		locker = lock.NewStripedMutex()
		log.Info().Msg("using process-local striped workflow lock")
	}

	sink, drainer := buildEventSink(repos, cfg, log)

	engine := workflow.NewEngine(repos.GormDB, templates, registry, auth, transfers, sink, locker, log)

	scheduler := jobs.NewScheduler(engine, drainer, cfg, log)
	scheduler.Start(context.Background())

	mw := middleware.New(cfg, log)

	deps := handler.Deps{
		Engine:     engine,
		Templates:  templates,
		Registry:   registry,
		Visibility: visibility,
		Auth:       auth,
	}
	router := handler.NewRouter(deps, mw, cfg, log)

	mux := http.NewServeMux()
	mux.Handle("/", mw.SecurityHeaders(mw.CORS(mw.APIKeyAuth(mw.RequestLogger(mw.Recover(router))))))
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server...")

	scheduler.Stop()
	log.Info().Msg("background jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// buildEventSink composes the engine's event sink: structured logging,
// outbox persistence wrapped in a per-channel circuit breaker, and approver
// email notification when SMTP is configured. Its second result is the
// Drainer the scheduler would use to flush the outbox; it is always nil
// here, because no Deliverer is wired.
func buildEventSink(repos *repository.Container, cfg *config.Config, log zerolog.Logger) (workflow.EventSink, *events.Drainer) {
	logSink := events.NewLogSink(log)
	outboxSink := events.NewOutboxSink(repos.GormDB, log)
	breakerSink := events.NewBreakerSink(outboxSink, cfg.Breaker.ConsecutiveFailureThreshold, cfg.Breaker.OpenTimeout, log)

	sinks := []workflow.EventSink{logSink, breakerSink}

	if cfg.Email.SMTPServer != "" {
		mailClient, err := gomail.NewClient(cfg.Email.SMTPServer,
			gomail.WithPort(cfg.Email.SMTPPort),
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Email.SMTPUsername),
			gomail.WithPassword(cfg.Email.SMTPPassword),
			gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		)
		if err != nil {
			log.Error().Err(err).Msg("failed to build SMTP client, approver email notifications disabled")
		} else {
			directory := repository.NewGormUserDirectory(repos.GormDB, log)
			emailSink := events.NewEmailSink(mailClient, cfg.Email.SenderAddress, directory, log)
			sinks = append(sinks, emailSink)
		}
	} else {
		log.Warn().Msg("no SMTP server configured, approver email notifications disabled")
	}

	composite := events.NewCompositeSink(log, sinks...)

	// The outbox records every event row regardless of whether a concrete
	// Deliverer is wired (§1 Non-goals exclude the ERP posting protocol);
	// without one the drain job is simply not registered by the scheduler.
	return composite, nil
}
