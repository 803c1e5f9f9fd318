package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/models"
)

func escalatorWith(graph *fakeGraph, availability *fakeAvailability, workload *fakeWorkload) *Escalator {
	return &Escalator{
		Graph:        graph,
		Availability: availability,
		Workload:     workload,
		Logger:       zerolog.Nop(),
	}
}

func TestEscalationFallsThroughToQueue(t *testing.T) {
	// Manager relationship missing, no team_lead available: the queue level
	// at position 3 must resolve.
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{
		"p1": {PersonID: "p1"},
	}}
	e := escalatorWith(graph, &fakeAvailability{}, &fakeWorkload{})

	path := []models.EscalationLevel{
		{Level: 1, Type: models.LevelManager, WaitMinutes: 0},
		{Level: 2, Type: models.LevelRole, TargetRole: "team_lead", WaitMinutes: 30},
		{Level: 3, Type: models.LevelQueue, TargetID: "general_queue", WaitMinutes: 120},
	}
	result := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{Path: path})

	if result.HandlerID != "general_queue" {
		t.Fatalf("expected general_queue, got %s", result.HandlerID)
	}
	if result.EscalationLevel != 3 {
		t.Fatalf("expected level 3, got %d", result.EscalationLevel)
	}
	if result.HandlerType != models.HandlerQueue {
		t.Fatalf("expected queue handler type, got %s", result.HandlerType)
	}
}

func TestEscalationManagerResolves(t *testing.T) {
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{
		"p1":  {PersonID: "p1", ManagerID: "mgr"},
		"mgr": {PersonID: "mgr"},
	}}
	availability := &fakeAvailability{status: map[string]models.Availability{
		"mgr": {IsAvailable: true, Score: 1},
	}}
	e := escalatorWith(graph, availability, &fakeWorkload{})

	result := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{})
	if result.HandlerID != "mgr" || result.EscalationLevel != 1 {
		t.Fatalf("expected manager at level 1, got %+v", result)
	}
	if result.OriginalHandlerID != "p1" {
		t.Fatalf("expected original handler recorded, got %s", result.OriginalHandlerID)
	}
}

func TestEscalationRoleRequiresAvailabilityAndCapacity(t *testing.T) {
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{
		"p1":    {PersonID: "p1"},
		"lead1": {PersonID: "lead1", Role: "team_lead"},
		"lead2": {PersonID: "lead2", Role: "team_lead"},
	}}
	availability := &fakeAvailability{status: map[string]models.Availability{
		"lead1": {IsAvailable: true, Score: 1},
		"lead2": {IsAvailable: true, Score: 1},
	}}
	workload := &fakeWorkload{status: map[string]models.WorkloadCapacity{
		"lead1": {HasCapacity: false, CurrentWorkload: 1},
		"lead2": {HasCapacity: true, CurrentWorkload: 0.2},
	}}
	e := escalatorWith(graph, availability, workload)

	result := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{})
	if result.HandlerID != "lead2" || result.EscalationLevel != 2 {
		t.Fatalf("expected lead2 at level 2, got %+v", result)
	}
}

func TestEscalationExhaustedPathUsesDefaultQueue(t *testing.T) {
	// Path with no terminal queue: the synthetic default-queue result must
	// appear at path length + 1.
	e := escalatorWith(&fakeGraph{profiles: map[string]models.ExpertiseProfile{}}, &fakeAvailability{}, &fakeWorkload{})

	path := []models.EscalationLevel{
		{Level: 1, Type: models.LevelManager},
		{Level: 2, Type: models.LevelRole, TargetRole: "team_lead"},
	}
	result := e.HandleEscalation(context.Background(), "ghost", "org1", EscalationOptions{Path: path})

	if result.HandlerID != DefaultQueueID {
		t.Fatalf("expected default queue, got %s", result.HandlerID)
	}
	if result.EscalationLevel != len(path)+1 {
		t.Fatalf("expected level %d, got %d", len(path)+1, result.EscalationLevel)
	}
}

func TestUrgentPathReachesQueueEarlier(t *testing.T) {
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{"p1": {PersonID: "p1"}}}
	e := escalatorWith(graph, &fakeAvailability{}, &fakeWorkload{})

	normal := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{})
	urgent := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{IsUrgent: true})

	if normal.HandlerID != "support_team" || normal.EscalationLevel != 3 {
		t.Fatalf("expected support_team at level 3 on normal path, got %+v", normal)
	}
	if urgent.HandlerID != "urgent_queue" || urgent.EscalationLevel != 3 {
		t.Fatalf("expected urgent_queue at level 3 on urgent path, got %+v", urgent)
	}
}

func TestEscalationStartLevelSkipsEarlierLevels(t *testing.T) {
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{
		"p1":  {PersonID: "p1", ManagerID: "mgr"},
		"mgr": {PersonID: "mgr"},
	}}
	availability := &fakeAvailability{status: map[string]models.Availability{
		"mgr": {IsAvailable: true, Score: 1},
	}}
	e := escalatorWith(graph, availability, &fakeWorkload{})

	result := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{StartLevel: 2})
	if result.EscalationLevel < 2 {
		t.Fatalf("start level ignored, resolved at level %d", result.EscalationLevel)
	}
}

func TestEscalationPersonLevelUsesBackupCascade(t *testing.T) {
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{
		"p1":     {PersonID: "p1"},
		"target": {PersonID: "target", BackupPersonID: "backup"},
		"backup": {PersonID: "backup"},
	}}
	availability := &fakeAvailability{status: map[string]models.Availability{
		"backup": {IsAvailable: true, Score: 0.9},
	}}
	workload := &fakeWorkload{}
	e := escalatorWith(graph, availability, workload)
	e.Backups = &BackupSelector{
		Graph:        graph,
		Availability: availability,
		Workload:     workload,
		Config:       DefaultBackupConfig(),
		Logger:       zerolog.Nop(),
	}

	path := []models.EscalationLevel{
		{Level: 1, Type: models.LevelPerson, TargetID: "target"},
	}
	result := e.HandleEscalation(context.Background(), "p1", "org1", EscalationOptions{Path: path})

	if result.HandlerID != "backup" || result.EscalationLevel != 1 {
		t.Fatalf("expected backup at level 1, got %+v", result)
	}
}

func TestEscalationNeverReturnsEmptyHandler(t *testing.T) {
	// Even a broken graph and empty options must produce a handler.
	e := escalatorWith(&fakeGraph{err: context.DeadlineExceeded}, &fakeAvailability{}, &fakeWorkload{})

	result := e.HandleEscalation(context.Background(), "", "org1", EscalationOptions{})
	if result.HandlerID == "" {
		t.Fatal("escalation returned no handler")
	}
}
