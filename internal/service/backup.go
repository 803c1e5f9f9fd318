package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/models"
)

const (
	StrategyDesignated     = "designated"
	StrategyTeam           = "team"
	StrategySkillMatch     = "skill_match"
	StrategyLowestWorkload = "lowest_workload"
)

// BackupConfig carries the trust scores assigned to structurally-inferred
// backups. These are assumed defaults, not values calibrated against outcome
// data, so they stay configurable.
type BackupConfig struct {
	DesignatedScore float64
	TeamScore       float64
	ScanLimit       int
}

func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		DesignatedScore: 0.8,
		TeamScore:       0.7,
		ScanLimit:       50,
	}
}

type BackupOptions struct {
	ExcludeIDs      []string
	RequireCapacity bool
}

type BackupSelector struct {
	Graph        directory.ExpertiseGraph
	Availability directory.AvailabilityProvider
	Workload     directory.WorkloadProvider
	Config       BackupConfig
	Logger       zerolog.Logger
}

type backupContext struct {
	organizationID string
	primary        models.ExpertiseProfile
	excluded       map[string]bool
	requireCap     bool
}

type backupStrategy func(ctx context.Context, bc *backupContext) (*models.BackupResult, error)

// SelectBackup walks the strategy cascade in fixed order and returns the
// first hit. A nil result with nil error means every strategy exhausted;
// manual lookups surface that as "none found" rather than an error.
func (s *BackupSelector) SelectBackup(ctx context.Context, primaryID, organizationID string, opts BackupOptions) (*models.BackupResult, error) {
	bc, err := s.buildContext(ctx, primaryID, organizationID, opts)
	if err != nil {
		return nil, err
	}

	strategies := []backupStrategy{
		s.designatedBackup,
		s.teamBackup,
		s.skillMatchedBackup,
		s.lowestWorkloadBackup,
	}
	for _, strategy := range strategies {
		result, err := strategy(ctx, bc)
		if err != nil {
			s.Logger.Warn().Err(err).
				Str("person_id", primaryID).
				Str("organization_id", organizationID).
				Str("stage", "backup_selection").
				Msg("backup strategy failed, trying next")
			continue
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// GetBackupCandidates runs the designated, team, and skill strategies without
// short-circuiting, merges by person, and ranks by combined score. Used by
// the human-facing suggestion surface, not automatic routing.
func (s *BackupSelector) GetBackupCandidates(ctx context.Context, primaryID, organizationID string, limit int) ([]models.BackupResult, error) {
	bc, err := s.buildContext(ctx, primaryID, organizationID, BackupOptions{})
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	var merged []models.BackupResult
	seen := map[string]bool{}
	add := func(results []models.BackupResult) {
		for _, r := range results {
			if seen[r.PersonID] {
				continue
			}
			seen[r.PersonID] = true
			merged = append(merged, r)
		}
	}

	if designated, err := s.designatedBackup(ctx, bc); err == nil && designated != nil {
		add([]models.BackupResult{*designated})
	}

	teammates, err := s.teamCandidates(ctx, bc, false)
	if err == nil {
		add(teammates)
	}

	skillMatched, err := s.skillCandidates(ctx, bc, false)
	if err == nil {
		add(skillMatched)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CombinedScore != merged[j].CombinedScore {
			return merged[i].CombinedScore > merged[j].CombinedScore
		}
		return merged[i].PersonID < merged[j].PersonID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (s *BackupSelector) buildContext(ctx context.Context, primaryID, organizationID string, opts BackupOptions) (*backupContext, error) {
	primary, err := s.Graph.GetProfile(ctx, primaryID, organizationID)
	if err != nil {
		return nil, err
	}

	excluded := map[string]bool{primaryID: true}
	for _, id := range opts.ExcludeIDs {
		excluded[id] = true
	}
	return &backupContext{
		organizationID: organizationID,
		primary:        primary,
		excluded:       excluded,
		requireCap:     opts.RequireCapacity,
	}, nil
}

// Strategy 1: the profile's designated backup person.
func (s *BackupSelector) designatedBackup(ctx context.Context, bc *backupContext) (*models.BackupResult, error) {
	backupID := bc.primary.BackupPersonID
	if backupID == "" || bc.excluded[backupID] {
		return nil, nil
	}

	result, ok := s.checkCandidate(ctx, bc, backupID, s.Config.DesignatedScore)
	if !ok {
		return nil, nil
	}
	result.Strategy = StrategyDesignated
	result.Reason = fmt.Sprintf("Designated backup for %s", bc.primary.PersonID)
	return result, nil
}

// Strategy 2: first available member of the primary's team.
func (s *BackupSelector) teamBackup(ctx context.Context, bc *backupContext) (*models.BackupResult, error) {
	candidates, err := s.teamCandidates(ctx, bc, true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (s *BackupSelector) teamCandidates(ctx context.Context, bc *backupContext, firstOnly bool) ([]models.BackupResult, error) {
	if bc.primary.Team == "" {
		return nil, nil
	}
	teammates, err := s.Graph.ListTeam(ctx, bc.organizationID, bc.primary.Team)
	if err != nil {
		return nil, err
	}

	var out []models.BackupResult
	for _, mate := range teammates {
		if bc.excluded[mate.PersonID] {
			continue
		}
		result, ok := s.checkCandidate(ctx, bc, mate.PersonID, s.Config.TeamScore)
		if !ok {
			continue
		}
		result.Strategy = StrategyTeam
		result.Reason = fmt.Sprintf("Same team (%s) as %s", bc.primary.Team, bc.primary.PersonID)
		out = append(out, *result)
		if firstOnly {
			return out, nil
		}
	}
	return out, nil
}

// Strategy 3: experts sharing the primary's strongest skills.
func (s *BackupSelector) skillMatchedBackup(ctx context.Context, bc *backupContext) (*models.BackupResult, error) {
	candidates, err := s.skillCandidates(ctx, bc, true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (s *BackupSelector) skillCandidates(ctx context.Context, bc *backupContext, firstOnly bool) ([]models.BackupResult, error) {
	topSkills := topSkillsByLevel(bc.primary.Skills, 3)

	var out []models.BackupResult
	seen := map[string]bool{}
	for _, skill := range topSkills {
		minLevel := skill.Level - 1
		if minLevel < 1 {
			minLevel = 1
		}
		experts, err := s.Graph.FindExpertsBySkill(ctx, bc.organizationID, skill.Name, minLevel)
		if err != nil {
			s.Logger.Warn().Err(err).
				Str("organization_id", bc.organizationID).
				Str("skill", skill.Name).
				Str("stage", "backup_selection").
				Msg("skill lookup failed")
			continue
		}
		for _, expert := range experts {
			if bc.excluded[expert.PersonID] || seen[expert.PersonID] {
				continue
			}
			seen[expert.PersonID] = true

			overlap := skillOverlap(bc.primary.Skills, expert.Skills)
			result, ok := s.checkCandidate(ctx, bc, expert.PersonID, overlap)
			if !ok {
				continue
			}
			result.Strategy = StrategySkillMatch
			result.Reason = fmt.Sprintf("Expert in %s", skill.Name)
			out = append(out, *result)
			if firstOnly {
				return out, nil
			}
		}
	}
	return out, nil
}

// Strategy 4: bounded organization-wide scan, lowest current workload wins.
func (s *BackupSelector) lowestWorkloadBackup(ctx context.Context, bc *backupContext) (*models.BackupResult, error) {
	limit := s.Config.ScanLimit
	if limit <= 0 {
		limit = 50
	}
	profiles, err := s.Graph.ListProfiles(ctx, bc.organizationID, limit)
	if err != nil {
		return nil, err
	}

	type loaded struct {
		result   models.BackupResult
		workload float64
	}
	var candidates []loaded
	for _, p := range profiles {
		if bc.excluded[p.PersonID] {
			continue
		}
		result, ok := s.checkCandidate(ctx, bc, p.PersonID, skillOverlap(bc.primary.Skills, p.Skills))
		if !ok {
			continue
		}
		result.Strategy = StrategyLowestWorkload
		result.Reason = "Lowest current workload in organization"
		candidates = append(candidates, loaded{result: *result, workload: 1 - result.WorkloadScore})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].workload != candidates[j].workload {
			return candidates[i].workload < candidates[j].workload
		}
		return candidates[i].result.PersonID < candidates[j].result.PersonID
	})
	return &candidates[0].result, nil
}

// checkCandidate applies the availability and capacity constraints and fills
// in the scored result. ok=false means the candidate is rejected.
func (s *BackupSelector) checkCandidate(ctx context.Context, bc *backupContext, personID string, expertise float64) (*models.BackupResult, bool) {
	availability, err := s.Availability.CheckAvailability(ctx, personID, bc.organizationID)
	if err != nil {
		s.Logger.Warn().Err(err).
			Str("person_id", personID).
			Str("organization_id", bc.organizationID).
			Str("stage", "availability").
			Msg("availability check failed, treating as unavailable")
		return nil, false
	}
	if !availability.IsAvailable {
		return nil, false
	}

	workload, err := s.Workload.CheckWorkloadCapacity(ctx, personID, bc.organizationID)
	if err != nil {
		s.Logger.Warn().Err(err).
			Str("person_id", personID).
			Str("organization_id", bc.organizationID).
			Str("stage", "workload").
			Msg("workload check failed, treating as saturated")
		workload = models.WorkloadCapacity{HasCapacity: false, CurrentWorkload: 1}
	}
	if bc.requireCap && !workload.HasCapacity {
		return nil, false
	}

	result := models.BackupResult{
		PersonID:          personID,
		ExpertiseScore:    clamp01(expertise),
		AvailabilityScore: clamp01(availability.Score),
		WorkloadScore:     clamp01(1 - workload.CurrentWorkload),
	}
	result.CombinedScore = combineScores(result.ExpertiseScore, result.AvailabilityScore, result.WorkloadScore)
	return &result, true
}

func topSkillsByLevel(skills []models.Skill, n int) []models.Skill {
	sorted := make([]models.Skill, len(skills))
	copy(sorted, skills)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level > sorted[j].Level
		}
		return sorted[i].Name < sorted[j].Name
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// skillOverlap measures how much of the primary's skill set a candidate
// covers, matching on skill-name substrings in either direction.
func skillOverlap(primary, candidate []models.Skill) float64 {
	if len(primary) == 0 {
		return 0
	}
	matched := 0
	for _, p := range primary {
		pName := strings.ToLower(strings.TrimSpace(p.Name))
		for _, c := range candidate {
			cName := strings.ToLower(strings.TrimSpace(c.Name))
			if pName == "" || cName == "" {
				continue
			}
			if strings.Contains(cName, pName) || strings.Contains(pName, cName) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(primary))
}
