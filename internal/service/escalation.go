package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/models"
)

const DefaultQueueID = "default_queue"

// DefaultEscalationPath is walked for normal requests. The urgent path skips
// the team stop and reaches its queue one level earlier, with shorter waits.
var DefaultEscalationPath = []models.EscalationLevel{
	{Level: 1, Type: models.LevelManager, WaitMinutes: 0},
	{Level: 2, Type: models.LevelRole, TargetRole: "team_lead", WaitMinutes: 30},
	{Level: 3, Type: models.LevelTeam, TargetID: "support_team", WaitMinutes: 60},
	{Level: 4, Type: models.LevelQueue, TargetID: "general_queue", WaitMinutes: 120},
}

var UrgentEscalationPath = []models.EscalationLevel{
	{Level: 1, Type: models.LevelManager, WaitMinutes: 0},
	{Level: 2, Type: models.LevelRole, TargetRole: "team_lead", WaitMinutes: 10},
	{Level: 3, Type: models.LevelQueue, TargetID: "urgent_queue", WaitMinutes: 30},
}

type EscalationOptions struct {
	Path       []models.EscalationLevel
	IsUrgent   bool
	StartLevel int
}

// Escalator walks an escalation path one level at a time. Every failure mode
// resolves to a later level; the synthetic default-queue result at the end
// performs no I/O, so escalation as a whole can never fail.
type Escalator struct {
	Graph        directory.ExpertiseGraph
	Availability directory.AvailabilityProvider
	Workload     directory.WorkloadProvider
	Backups      *BackupSelector
	Logger       zerolog.Logger
}

func (e *Escalator) HandleEscalation(ctx context.Context, originalHandlerID, organizationID string, opts EscalationOptions) models.EscalationResult {
	path := opts.Path
	if len(path) == 0 {
		if opts.IsUrgent {
			path = UrgentEscalationPath
		} else {
			path = DefaultEscalationPath
		}
	}

	start := opts.StartLevel
	if start < 1 {
		start = 1
	}

	for i, level := range path {
		if i+1 < start {
			continue
		}
		handlerID, handlerType, reason := e.resolveLevel(ctx, level, originalHandlerID, organizationID)
		if handlerID == "" {
			e.Logger.Debug().
				Str("person_id", originalHandlerID).
				Str("organization_id", organizationID).
				Int("level", i+1).
				Str("level_type", string(level.Type)).
				Msg("escalation level failed")
			continue
		}
		return models.EscalationResult{
			HandlerID:         handlerID,
			HandlerType:       handlerType,
			EscalationLevel:   i + 1,
			Reason:            reason,
			OriginalHandlerID: originalHandlerID,
		}
	}

	// Every level exhausted: the guaranteed terminal path.
	return models.EscalationResult{
		HandlerID:         DefaultQueueID,
		HandlerType:       models.HandlerQueue,
		EscalationLevel:   len(path) + 1,
		Reason:            "Escalation path exhausted, routed to default queue",
		OriginalHandlerID: originalHandlerID,
	}
}

// resolveLevel runs the type-specific resolution. An empty handler ID means
// the level failed and the machine moves on.
func (e *Escalator) resolveLevel(ctx context.Context, level models.EscalationLevel, originalHandlerID, organizationID string) (string, models.HandlerType, string) {
	switch level.Type {
	case models.LevelManager:
		return e.resolveManager(ctx, originalHandlerID, organizationID)
	case models.LevelRole:
		return e.resolveRole(ctx, level.TargetRole, originalHandlerID, organizationID)
	case models.LevelPerson:
		return e.resolvePerson(ctx, level.TargetID, originalHandlerID, organizationID)
	case models.LevelTeam:
		if level.TargetID == "" {
			return "", "", ""
		}
		return level.TargetID, models.HandlerTeam, fmt.Sprintf("Escalated to team %s", level.TargetID)
	case models.LevelQueue:
		target := level.TargetID
		if target == "" {
			target = DefaultQueueID
		}
		return target, models.HandlerQueue, fmt.Sprintf("Escalated to queue %s", target)
	default:
		return "", "", ""
	}
}

// resolveManager follows the reporting line on the escalating person's
// profile. A missing relationship is a failed level, not an error.
func (e *Escalator) resolveManager(ctx context.Context, originalHandlerID, organizationID string) (string, models.HandlerType, string) {
	if originalHandlerID == "" {
		return "", "", ""
	}
	profile, err := e.Graph.GetProfile(ctx, originalHandlerID, organizationID)
	if err != nil {
		if err != directory.ErrNotFound {
			e.Logger.Warn().Err(err).
				Str("person_id", originalHandlerID).
				Str("organization_id", organizationID).
				Str("stage", "escalation_manager").
				Msg("profile lookup failed")
		}
		return "", "", ""
	}
	if profile.ManagerID == "" {
		return "", "", ""
	}

	availability, err := e.Availability.CheckAvailability(ctx, profile.ManagerID, organizationID)
	if err != nil || !availability.IsAvailable {
		return "", "", ""
	}
	return profile.ManagerID, models.HandlerPerson, fmt.Sprintf("Escalated to manager of %s", originalHandlerID)
}

// resolveRole picks the first person holding the role who is available and
// has capacity.
func (e *Escalator) resolveRole(ctx context.Context, role, originalHandlerID, organizationID string) (string, models.HandlerType, string) {
	if role == "" {
		return "", "", ""
	}
	holders, err := e.Graph.FindByRole(ctx, organizationID, role)
	if err != nil {
		e.Logger.Warn().Err(err).
			Str("organization_id", organizationID).
			Str("role", role).
			Str("stage", "escalation_role").
			Msg("role lookup failed")
		return "", "", ""
	}

	for _, holder := range holders {
		if holder.PersonID == originalHandlerID {
			continue
		}
		availability, err := e.Availability.CheckAvailability(ctx, holder.PersonID, organizationID)
		if err != nil || !availability.IsAvailable {
			continue
		}
		workload, err := e.Workload.CheckWorkloadCapacity(ctx, holder.PersonID, organizationID)
		if err != nil || !workload.HasCapacity {
			continue
		}
		return holder.PersonID, models.HandlerPerson, fmt.Sprintf("Escalated to %s role", role)
	}
	return "", "", ""
}

// resolvePerson checks the named person directly, then falls back to their
// backup cascade before giving up on the level.
func (e *Escalator) resolvePerson(ctx context.Context, targetID, originalHandlerID, organizationID string) (string, models.HandlerType, string) {
	if targetID == "" {
		return "", "", ""
	}

	availability, err := e.Availability.CheckAvailability(ctx, targetID, organizationID)
	if err == nil && availability.IsAvailable {
		return targetID, models.HandlerPerson, fmt.Sprintf("Escalated to %s", targetID)
	}

	if e.Backups == nil {
		return "", "", ""
	}
	backup, err := e.Backups.SelectBackup(ctx, targetID, organizationID, BackupOptions{
		ExcludeIDs: []string{originalHandlerID},
	})
	if err != nil || backup == nil {
		return "", "", ""
	}
	return backup.PersonID, models.HandlerPerson, fmt.Sprintf("Escalated to backup of %s: %s", targetID, backup.Reason)
}
