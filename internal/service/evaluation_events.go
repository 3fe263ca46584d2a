package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/noah-isme/gema-evaluation-api/internal/dto"
)

// EvaluationSubmittedEvent is the EvaluationEvent type emitted after a successful submit.
const EvaluationSubmittedEvent = "evaluation.submitted"

// EvaluationEvent is broadcast to downstream consumers such as reporting.
type EvaluationEvent struct {
	Type         string                 `json:"type"`
	DepartmentID string                 `json:"department_id"`
	Resubmission bool                   `json:"resubmission"`
	Evaluation   dto.EvaluationResponse `json:"evaluation"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// EvaluationEventPublisher delivers evaluation events.
type EvaluationEventPublisher interface {
	Publish(ctx context.Context, event EvaluationEvent) error
}

type natsEvaluationPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSEvaluationPublisher publishes events as JSON on subject.
func NewNATSEvaluationPublisher(conn *nats.Conn, subject string) EvaluationEventPublisher {
	if subject == "" {
		subject = "evaluations.events"
	}
	return &natsEvaluationPublisher{conn: conn, subject: subject}
}

func (p *natsEvaluationPublisher) Publish(_ context.Context, event EvaluationEvent) error {
	if p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(p.subject, payload)
}
