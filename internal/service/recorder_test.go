package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/events"
	"github.com/routewise/backend/internal/models"
)

func TestRecordAssignsIDAndPublishes(t *testing.T) {
	store := &fakeDecisionStore{}
	publisher := &fakePublisher{}
	r := &DecisionRecorder{Store: store, Publisher: publisher, Logger: zerolog.Nop()}

	id, err := r.Record(context.Background(), &models.RoutingDecision{
		OrganizationID: "org1",
		HandlerID:      "p1",
		HandlerType:    models.HandlerPerson,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated decision id")
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.inserted))
	}
	if len(publisher.events) != 1 || publisher.events[0] != events.TypeDecisionRecorded {
		t.Fatalf("unexpected events %v", publisher.events)
	}
}

func TestRecordStoreFailurePropagates(t *testing.T) {
	store := &fakeDecisionStore{insertErr: errors.New("postgres down")}
	publisher := &fakePublisher{}
	r := &DecisionRecorder{Store: store, Publisher: publisher, Logger: zerolog.Nop()}

	if _, err := r.Record(context.Background(), &models.RoutingDecision{OrganizationID: "org1"}); err == nil {
		t.Fatal("expected insert error to propagate")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("no event should publish on failed insert, got %v", publisher.events)
	}
}

func TestRecordPublishFailureIsNonFatal(t *testing.T) {
	store := &fakeDecisionStore{}
	publisher := &fakePublisher{err: errors.New("kafka unreachable")}
	r := &DecisionRecorder{Store: store, Publisher: publisher, Logger: zerolog.Nop()}

	if _, err := r.Record(context.Background(), &models.RoutingDecision{OrganizationID: "org1"}); err != nil {
		t.Fatalf("publish failure must not fail recording: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("decision should still be persisted")
	}
}

func TestUpdateOutcomeOverwritesFeedback(t *testing.T) {
	store := &fakeDecisionStore{}
	r := &DecisionRecorder{Store: store, Logger: zerolog.Nop()}

	score1, score2 := 2, 5
	if err := r.UpdateOutcome(context.Background(), "d1", models.DecisionFeedback{WasSuccessful: false, FeedbackScore: &score1}); err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}
	if err := r.UpdateOutcome(context.Background(), "d1", models.DecisionFeedback{WasSuccessful: true, FeedbackScore: &score2}); err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}

	fb := store.feedback["d1"]
	if !fb.WasSuccessful || fb.FeedbackScore == nil || *fb.FeedbackScore != 5 {
		t.Fatalf("latest feedback should win, got %+v", fb)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("feedback must never create a decision, got %d inserts", len(store.inserted))
	}
}

func TestUpdateOutcomePublishesFeedbackEvent(t *testing.T) {
	store := &fakeDecisionStore{}
	publisher := &fakePublisher{}
	r := &DecisionRecorder{Store: store, Publisher: publisher, Logger: zerolog.Nop()}

	if err := r.UpdateOutcome(context.Background(), "d1", models.DecisionFeedback{WasSuccessful: true}); err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0] != events.TypeDecisionFeedback {
		t.Fatalf("unexpected events %v", publisher.events)
	}
}
