package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/application"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/natsclient"
)

// NotificationPublisher publishes application lifecycle events to NATS
// JetStream for the notifications service.
//
// Subject convention: notifications.approval.<event_type>
//
// Publishing is best-effort: callers log returned errors and move on, a
// notification failure never interrupts the operation that triggered it.
type NotificationPublisher struct {
	nats *natsclient.Client
	log  *logger.Logger
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// client. A nil client disables publishing.
func NewNotificationPublisher(nats *natsclient.Client, log *logger.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// applicationEvent is the JSON schema published to NATS.
type applicationEvent struct {
	EventType     string    `json:"event_type"`
	ApplicationID int64     `json:"application_id"`
	IDNumber      string    `json:"id_number"`
	Title         string    `json:"title"`
	ApplicantID   int64     `json:"applicant_id"`
	AssignmentID  int64     `json:"assignment_id"`
	StageID       int64     `json:"stage_id"`
	IsDraft       bool      `json:"is_draft"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PublishApplicationEvent publishes one lifecycle event for an application.
func (p *NotificationPublisher) PublishApplicationEvent(ctx context.Context, event string, app *application.Application) error {
	if p.nats == nil {
		return nil
	}

	data, err := json.Marshal(applicationEvent{
		EventType:     event,
		ApplicationID: app.ID,
		IDNumber:      app.IDNumber,
		Title:         app.Title,
		ApplicantID:   app.UserID,
		AssignmentID:  app.AssignmentID,
		StageID:       app.StageID,
		IsDraft:       app.IsDraft,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal notification event")
	}

	subject := "notifications.approval." + event
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to publish notification event")
	}

	p.log.Debug().
		Str("subject", subject).
		Int64("application_id", app.ID).
		Msg("notification event published")
	return nil
}
