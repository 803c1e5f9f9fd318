package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/models"
)

const (
	defaultMinSkillLevel = 2
	maxSkillLevel        = 5
)

type ExpertOptions struct {
	MinSkillLevel int
	Limit         int
	ExcludeIDs    []string
}

type ExpertFinder struct {
	Graph        directory.ExpertiseGraph
	Availability directory.AvailabilityProvider
	Workload     directory.WorkloadProvider
	Logger       zerolog.Logger
}

// FindExperts queries the expertise graph per category concurrently, merges
// and de-duplicates the candidates, and scores each one. Excluded IDs are
// dropped before any availability or workload lookup happens.
func (f *ExpertFinder) FindExperts(ctx context.Context, organizationID string, categories []string, opts ExpertOptions) ([]models.HandlerCandidate, error) {
	minLevel := opts.MinSkillLevel
	if minLevel <= 0 {
		minLevel = defaultMinSkillLevel
	}

	var (
		mu       sync.Mutex
		profiles []models.ExpertiseProfile
		wg       sync.WaitGroup
	)
	for _, category := range categories {
		wg.Add(1)
		go func(category string) {
			defer wg.Done()
			found, err := f.Graph.FindExpertsBySkill(ctx, organizationID, category, minLevel)
			if err != nil {
				f.Logger.Warn().Err(err).
					Str("organization_id", organizationID).
					Str("category", category).
					Str("stage", "expert_search").
					Msg("expertise lookup failed")
				return
			}
			mu.Lock()
			profiles = append(profiles, found...)
			mu.Unlock()
		}(category)
	}
	wg.Wait()

	excluded := make(map[string]bool, len(opts.ExcludeIDs))
	for _, id := range opts.ExcludeIDs {
		excluded[id] = true
	}

	seen := map[string]bool{}
	var candidates []models.HandlerCandidate
	for _, p := range profiles {
		if seen[p.PersonID] || excluded[p.PersonID] {
			continue
		}
		seen[p.PersonID] = true
		candidates = append(candidates, f.score(ctx, organizationID, p, categories))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		// Equal combined score: prefer the less-loaded candidate.
		if candidates[i].WorkloadScore != candidates[j].WorkloadScore {
			return candidates[i].WorkloadScore > candidates[j].WorkloadScore
		}
		return candidates[i].PersonID < candidates[j].PersonID
	})

	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	return candidates, nil
}

// FindBestExpert returns the top-ranked candidate or nil when the graph has
// nobody for these categories.
func (f *ExpertFinder) FindBestExpert(ctx context.Context, organizationID string, categories []string, opts ExpertOptions) (*models.HandlerCandidate, error) {
	opts.Limit = 1
	candidates, err := f.FindExperts(ctx, organizationID, categories, opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (f *ExpertFinder) score(ctx context.Context, organizationID string, p models.ExpertiseProfile, categories []string) models.HandlerCandidate {
	candidate := models.HandlerCandidate{
		PersonID:       p.PersonID,
		ExpertiseScore: expertiseScore(p, categories),
	}

	availability, err := f.Availability.CheckAvailability(ctx, p.PersonID, organizationID)
	if err != nil {
		f.Logger.Warn().Err(err).
			Str("person_id", p.PersonID).
			Str("organization_id", organizationID).
			Str("stage", "availability").
			Msg("availability check failed, treating as unavailable")
		availability = models.Availability{}
	}
	candidate.AvailabilityScore = clamp01(availability.Score)
	if !availability.IsAvailable {
		candidate.AvailabilityScore = 0
	}

	workload, err := f.Workload.CheckWorkloadCapacity(ctx, p.PersonID, organizationID)
	if err != nil {
		f.Logger.Warn().Err(err).
			Str("person_id", p.PersonID).
			Str("organization_id", organizationID).
			Str("stage", "workload").
			Msg("workload check failed, treating as saturated")
		workload = models.WorkloadCapacity{CurrentWorkload: 1}
	}
	candidate.WorkloadScore = clamp01(1 - workload.CurrentWorkload)

	candidate.CombinedScore = combineScores(candidate.ExpertiseScore, candidate.AvailabilityScore, candidate.WorkloadScore)
	return candidate
}

// expertiseScore blends the candidate's best matching skill level with how
// many of the requested categories their skills cover.
func expertiseScore(p models.ExpertiseProfile, categories []string) float64 {
	if len(categories) == 0 {
		return 0
	}

	bestLevel := 0
	covered := 0
	for _, category := range categories {
		levelForCategory := 0
		for _, skill := range p.Skills {
			if strings.EqualFold(strings.TrimSpace(skill.Name), strings.TrimSpace(category)) && skill.Level > levelForCategory {
				levelForCategory = skill.Level
			}
		}
		if levelForCategory > 0 {
			covered++
			if levelForCategory > bestLevel {
				bestLevel = levelForCategory
			}
		}
	}
	if covered == 0 {
		return 0
	}

	levelPart := float64(bestLevel) / maxSkillLevel
	overlapPart := float64(covered) / float64(len(categories))
	return clamp01(0.7*levelPart + 0.3*overlapPart)
}
