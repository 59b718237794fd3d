package events

import (
	"context"
	"bytes"
	"fmt"
	"html/template"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
)

// UserDirectory resolves a user id to a notifiable email address. The
// engine has no user master data of its own; operators wire this to
// whatever directory backs the authorization data store.
type UserDirectory interface {
	Email(ctx context.Context, userID string) (string, bool)
}

const stageActivatedTemplate = `<p>Dear approver,</p>` +
	`<p>A transfer approval stage has been assigned to you and is awaiting your action.</p>` +
	`<p>Stage: <strong>{{.StageName}}</strong></p>` +
	`<p>Please log in to the approval system to review it.</p>` +
	`<p>Thank you.</p>`

var stageActivatedTpl = template.Must(template.New("stage_activated").Parse(stageActivatedTemplate))

// EmailSink notifies newly-assigned approvers by email (§6.2's notification
// sink, draining stage-activated events). Non-activation events are
// no-ops: the engine's other event types are for integration/audit
// consumers, not approver notification.
type EmailSink struct {
	client    *gomail.Client
	fromAddr  string
	directory UserDirectory
	log       zerolog.Logger
}

// NewEmailSink builds an EmailSink over a pre-configured go-mail client.
func NewEmailSink(client *gomail.Client, fromAddr string, directory UserDirectory, log zerolog.Logger) *EmailSink {
	return &EmailSink{
		client:    client,
		fromAddr:  fromAddr,
		directory: directory,
		log:       log.With().Str("component", "events.EmailSink").Logger(),
	}
}

func (e *EmailSink) StageActivated(ctx context.Context, stage domainworkflow.StageInstance) {
	var body bytes.Buffer
	name := stage.StageTemplate
	stageName := "approval stage"
	if name != nil {
		stageName = name.Name
	}
	if err := stageActivatedTpl.Execute(&body, map[string]string{"StageName": stageName}); err != nil {
		e.log.Error().Err(err).Msg("failed to render stage-activated email")
		return
	}

	for _, a := range stage.Assignments {
		addr, ok := e.directory.Email(ctx, a.UserID)
		if !ok || addr == "" {
			continue
		}
		if err := e.send(addr, "Approval required", body.String()); err != nil {
			e.log.Warn().Err(err).Str("user", a.UserID).Msg("failed to send stage-activated email")
		}
	}
}

func (e *EmailSink) send(to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(e.fromAddr); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)
	return e.client.DialAndSend(msg)
}

func (e *EmailSink) StageSkipped(context.Context, domainworkflow.StageInstance)                     {}
func (e *EmailSink) StageCompleted(context.Context, domainworkflow.StageInstance, string)           {}
func (e *EmailSink) WorkflowApproved(context.Context, domainworkflow.Instance)                      {}
func (e *EmailSink) WorkflowRejected(context.Context, domainworkflow.Instance)                      {}
func (e *EmailSink) WorkflowCancelled(context.Context, domainworkflow.Instance)                     {}
func (e *EmailSink) ChainCompleted(context.Context, string, string)                                 {}
func (e *EmailSink) TransferTerminal(context.Context, string, string)                                {}
func (e *EmailSink) SLABreached(context.Context, domainworkflow.StageInstance)                      {}
func (e *EmailSink) OperationalWarning(context.Context, string, string)                              {}

var _ workflow.EventSink = (*EmailSink)(nil)
