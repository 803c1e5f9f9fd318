package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/routewise/backend/internal/models"
)

const (
	TypeDecisionRecorded = "routing.decision.recorded"
	TypeDecisionFeedback = "routing.decision.feedback"
)

type DecisionEvent struct {
	Type       string                   `json:"type"`
	DecisionID string                   `json:"decision_id"`
	Decision   *models.RoutingDecision  `json:"decision,omitempty"`
	Feedback   *models.DecisionFeedback `json:"feedback,omitempty"`
	EmittedAt  time.Time                `json:"emitted_at"`
}

// Producer publishes decision events for downstream analytics. Publishing is
// best-effort; the synchronous durability guarantee lives in Postgres.
type Producer struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

func (p *Producer) PublishDecision(ctx context.Context, eventType string, decisionID string, decision *models.RoutingDecision, feedback *models.DecisionFeedback) error {
	event := DecisionEvent{
		Type:       eventType,
		DecisionID: decisionID,
		Decision:   decision,
		Feedback:   feedback,
		EmittedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(decisionID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug().Str("decision_id", decisionID).Str("event_type", eventType).Msg("decision event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
