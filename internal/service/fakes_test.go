package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/models"
)

type fakeGraph struct {
	profiles map[string]models.ExpertiseProfile
	err      error
}

func (g *fakeGraph) GetProfile(ctx context.Context, personID, organizationID string) (models.ExpertiseProfile, error) {
	if g.err != nil {
		return models.ExpertiseProfile{}, g.err
	}
	p, ok := g.profiles[personID]
	if !ok {
		return models.ExpertiseProfile{}, directory.ErrNotFound
	}
	return p, nil
}

func (g *fakeGraph) FindExpertsBySkill(ctx context.Context, organizationID, skill string, minLevel int) ([]models.ExpertiseProfile, error) {
	if g.err != nil {
		return nil, g.err
	}
	var out []models.ExpertiseProfile
	for _, p := range g.sorted() {
		for _, s := range p.Skills {
			if strings.EqualFold(s.Name, skill) && s.Level >= minLevel {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (g *fakeGraph) FindByRole(ctx context.Context, organizationID, role string) ([]models.ExpertiseProfile, error) {
	if g.err != nil {
		return nil, g.err
	}
	var out []models.ExpertiseProfile
	for _, p := range g.sorted() {
		if strings.EqualFold(p.Role, role) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *fakeGraph) ListTeam(ctx context.Context, organizationID, team string) ([]models.ExpertiseProfile, error) {
	if g.err != nil {
		return nil, g.err
	}
	var out []models.ExpertiseProfile
	for _, p := range g.sorted() {
		if p.Team == team && team != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *fakeGraph) ListProfiles(ctx context.Context, organizationID string, limit int) ([]models.ExpertiseProfile, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := g.sorted()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *fakeGraph) sorted() []models.ExpertiseProfile {
	out := make([]models.ExpertiseProfile, 0, len(g.profiles))
	for _, p := range g.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out
}

type fakeAvailability struct {
	mu      sync.Mutex
	status  map[string]models.Availability
	errIDs  map[string]bool
	checked []string
}

func (a *fakeAvailability) CheckAvailability(ctx context.Context, personID, organizationID string) (models.Availability, error) {
	a.mu.Lock()
	a.checked = append(a.checked, personID)
	a.mu.Unlock()
	if a.errIDs[personID] {
		return models.Availability{}, errors.New("availability provider down")
	}
	if s, ok := a.status[personID]; ok {
		return s, nil
	}
	return models.Availability{IsAvailable: false, Score: 0}, nil
}

type fakeWorkload struct {
	status map[string]models.WorkloadCapacity
	errIDs map[string]bool
}

func (w *fakeWorkload) CheckWorkloadCapacity(ctx context.Context, personID, organizationID string) (models.WorkloadCapacity, error) {
	if w.errIDs[personID] {
		return models.WorkloadCapacity{}, errors.New("workload provider down")
	}
	if s, ok := w.status[personID]; ok {
		return s, nil
	}
	return models.WorkloadCapacity{HasCapacity: true, CurrentWorkload: 0}, nil
}

type fakeRuleSource struct {
	rules []models.RoutingRule
	err   error
}

func (s *fakeRuleSource) ListActiveRules(ctx context.Context, organizationID string) ([]models.RoutingRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rules, nil
}

type fakeDecisionStore struct {
	mu        sync.Mutex
	inserted  []models.RoutingDecision
	feedback  map[string]models.DecisionFeedback
	insertErr error
	updateErr error
}

func (s *fakeDecisionStore) InsertDecision(ctx context.Context, d *models.RoutingDecision) (string, error) {
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, *d)
	return d.ID, nil
}

func (s *fakeDecisionStore) UpdateDecisionOutcome(ctx context.Context, decisionID string, fb models.DecisionFeedback) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedback == nil {
		s.feedback = map[string]models.DecisionFeedback{}
	}
	s.feedback[decisionID] = fb
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *fakePublisher) PublishDecision(ctx context.Context, eventType, decisionID string, decision *models.RoutingDecision, feedback *models.DecisionFeedback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}
