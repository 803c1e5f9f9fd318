package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/events"
	"github.com/routewise/backend/internal/models"
)

// DecisionStore is the persistence port for routing decisions.
type DecisionStore interface {
	InsertDecision(ctx context.Context, d *models.RoutingDecision) (string, error)
	UpdateDecisionOutcome(ctx context.Context, decisionID string, fb models.DecisionFeedback) error
}

// DecisionPublisher is the analytics event sink; nil-able in tests.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, eventType string, decisionID string, decision *models.RoutingDecision, feedback *models.DecisionFeedback) error
}

// DecisionRecorder persists routing decisions. The Postgres write is
// synchronous and its failure propagates (an unrecorded decision breaks
// analytics guarantees); the event publish is best-effort.
type DecisionRecorder struct {
	Store     DecisionStore
	Publisher DecisionPublisher
	Logger    zerolog.Logger
}

func (r *DecisionRecorder) Record(ctx context.Context, d *models.RoutingDecision) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	id, err := r.Store.InsertDecision(ctx, d)
	if err != nil {
		return "", err
	}
	d.ID = id

	if r.Publisher != nil {
		if err := r.Publisher.PublishDecision(ctx, events.TypeDecisionRecorded, id, d, nil); err != nil {
			r.Logger.Warn().Err(err).
				Str("decision_id", id).
				Str("organization_id", d.OrganizationID).
				Str("stage", "decision_event").
				Msg("decision event publish failed")
		}
	}
	return id, nil
}

// UpdateOutcome attaches feedback to an existing decision. Repeat calls
// overwrite previous feedback; a new decision is never created here.
func (r *DecisionRecorder) UpdateOutcome(ctx context.Context, decisionID string, fb models.DecisionFeedback) error {
	if err := r.Store.UpdateDecisionOutcome(ctx, decisionID, fb); err != nil {
		return err
	}

	if r.Publisher != nil {
		if err := r.Publisher.PublishDecision(ctx, events.TypeDecisionFeedback, decisionID, nil, &fb); err != nil {
			r.Logger.Warn().Err(err).
				Str("decision_id", decisionID).
				Str("stage", "decision_event").
				Msg("feedback event publish failed")
		}
	}
	return nil
}
