package service

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/models"
)

func expertFixture() (*ExpertFinder, *fakeAvailability) {
	graph := &fakeGraph{profiles: map[string]models.ExpertiseProfile{
		"p1": {PersonID: "p1", Skills: []models.Skill{{Name: "billing", Level: 5}}},
		"p2": {PersonID: "p2", Skills: []models.Skill{{Name: "billing", Level: 3}, {Name: "technical", Level: 4}}},
		"p3": {PersonID: "p3", Skills: []models.Skill{{Name: "technical", Level: 2}}},
	}}
	availability := &fakeAvailability{status: map[string]models.Availability{
		"p1": {IsAvailable: true, Score: 0.9},
		"p2": {IsAvailable: true, Score: 0.8},
		"p3": {IsAvailable: true, Score: 1.0},
	}}
	workload := &fakeWorkload{status: map[string]models.WorkloadCapacity{
		"p1": {HasCapacity: true, CurrentWorkload: 0.5},
		"p2": {HasCapacity: true, CurrentWorkload: 0.1},
		"p3": {HasCapacity: true, CurrentWorkload: 0.9},
	}}
	return &ExpertFinder{Graph: graph, Availability: availability, Workload: workload, Logger: zerolog.Nop()}, availability
}

func TestFindExpertsWeightingInvariant(t *testing.T) {
	finder, _ := expertFixture()

	candidates, err := finder.FindExperts(context.Background(), "org1", []string{"billing", "technical"}, ExpertOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	for _, c := range candidates {
		want := 0.4*c.ExpertiseScore + 0.3*c.AvailabilityScore + 0.3*c.WorkloadScore
		if math.Abs(c.CombinedScore-want) > 1e-9 {
			t.Fatalf("combined score %f does not match weighting, want %f for %s", c.CombinedScore, want, c.PersonID)
		}
	}
}

func TestFindExpertsDeduplicatesAcrossCategories(t *testing.T) {
	finder, _ := expertFixture()

	candidates, err := finder.FindExperts(context.Background(), "org1", []string{"billing", "technical"}, ExpertOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]int{}
	for _, c := range candidates {
		seen[c.PersonID]++
	}
	// p2 has evidence in both categories but must be scored once.
	if seen["p2"] != 1 {
		t.Fatalf("expected p2 exactly once, got %d", seen["p2"])
	}
}

func TestFindExpertsExcludesBeforeScoring(t *testing.T) {
	finder, availability := expertFixture()

	candidates, err := finder.FindExperts(context.Background(), "org1", []string{"billing"}, ExpertOptions{
		ExcludeIDs: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range candidates {
		if c.PersonID == "p1" {
			t.Fatal("excluded candidate was returned")
		}
	}
	for _, checked := range availability.checked {
		if checked == "p1" {
			t.Fatal("excluded candidate was scored: availability was consulted")
		}
	}
}

func TestFindBestExpertNilWhenEmpty(t *testing.T) {
	finder, _ := expertFixture()

	best, err := finder.FindBestExpert(context.Background(), "org1", []string{"nonexistent"}, ExpertOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best != nil {
		t.Fatalf("expected nil, got %+v", best)
	}
}

func TestFindExpertsUnavailableScoresZeroAvailability(t *testing.T) {
	finder, availability := expertFixture()
	availability.status["p1"] = models.Availability{IsAvailable: false, Score: 0.9}

	candidates, err := finder.FindExperts(context.Background(), "org1", []string{"billing"}, ExpertOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range candidates {
		if c.PersonID == "p1" && c.AvailabilityScore != 0 {
			t.Fatalf("expected zero availability score for unavailable person, got %f", c.AvailabilityScore)
		}
	}
}

func TestFindExpertsProviderErrorTreatedAsNegativeSignal(t *testing.T) {
	finder, availability := expertFixture()
	availability.errIDs = map[string]bool{"p1": true}

	candidates, err := finder.FindExperts(context.Background(), "org1", []string{"billing"}, ExpertOptions{})
	if err != nil {
		t.Fatalf("expected no pipeline error, got %v", err)
	}
	for _, c := range candidates {
		if c.PersonID == "p1" {
			if c.AvailabilityScore != 0 {
				t.Fatalf("expected availability 0 after provider failure, got %f", c.AvailabilityScore)
			}
			return
		}
	}
	t.Fatal("p1 missing from candidates")
}
