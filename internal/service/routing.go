package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/models"
	"github.com/routewise/backend/internal/utils"
)

var (
	ErrEmptyContent        = errors.New("request content is required")
	ErrMissingOrganization = errors.New("organization id is required")
)

// RoutingService runs the full pipeline: categorize, match rules, score
// experts, check the chosen handler, escalate if unreachable, record. A
// routing response always carries a concrete handler or the default queue.
type RoutingService struct {
	Categorizer  *Categorizer
	Rules        *RuleMatcher
	Experts      *ExpertFinder
	Escalator    *Escalator
	Recorder     *DecisionRecorder
	Availability directory.AvailabilityProvider
	Logger       zerolog.Logger
}

func (s *RoutingService) Route(ctx context.Context, req models.IncomingRequest, useAI bool) (*models.RoutingDecision, error) {
	if req.Content == "" {
		return nil, ErrEmptyContent
	}
	if req.OrganizationID == "" {
		return nil, ErrMissingOrganization
	}

	cat := s.Categorizer.Categorize(ctx, req, useAI)

	decision := &models.RoutingDecision{
		OrganizationID: req.OrganizationID,
		RequestID:      requestID(req),
		Categories:     cat.Categories,
		Urgency:        cat.Urgency,
		CreatedAt:      time.Now().UTC(),
	}

	mc := MatchContext{
		Content:     req.Content,
		Subject:     req.Subject,
		SenderEmail: req.Metadata["sender_email"],
	}
	matches, err := s.Rules.MatchRules(ctx, req.OrganizationID, cat, mc)
	if err != nil {
		// Rule store trouble is a degraded signal, not a pipeline failure.
		s.Logger.Warn().Err(err).
			Str("organization_id", req.OrganizationID).
			Str("stage", "rule_match").
			Msg("rule matching failed, continuing with expert search")
		matches = nil
	}

	var unreachablePerson string
	var rulePath []models.EscalationLevel
	var pathRuleID string
	resolved := false

	for _, rule := range matches {
		if len(rule.Handler.EscalationPath) > 0 && rulePath == nil {
			rulePath = rule.Handler.EscalationPath
			pathRuleID = rule.ID
		}
		switch rule.Handler.Type {
		case models.HandlerTeam, models.HandlerQueue:
			s.applyRule(decision, rule, rule.Handler.TargetID, rule.Handler.Type, len(matches))
			resolved = true
		case models.HandlerPerson:
			if s.personReachable(ctx, rule.Handler.TargetID, req.OrganizationID) {
				s.applyRule(decision, rule, rule.Handler.TargetID, models.HandlerPerson, len(matches))
				resolved = true
				break
			}
			if unreachablePerson == "" {
				unreachablePerson = rule.Handler.TargetID
			}
			if rule.Handler.FallbackTargetID != "" && s.personReachable(ctx, rule.Handler.FallbackTargetID, req.OrganizationID) {
				s.applyRule(decision, rule, rule.Handler.FallbackTargetID, models.HandlerPerson, len(matches))
				resolved = true
			}
		case models.HandlerAuto:
			// Defer to the candidate scorer below but remember the rule.
			id := rule.ID
			decision.MatchedRuleID = &id
		}
		if resolved {
			break
		}
	}

	var candidates []models.HandlerCandidate
	if !resolved {
		excludes := []string{}
		if unreachablePerson != "" {
			excludes = append(excludes, unreachablePerson)
		}
		candidates, err = s.Experts.FindExperts(ctx, req.OrganizationID, cat.Categories, ExpertOptions{
			Limit:      5,
			ExcludeIDs: excludes,
		})
		if err != nil {
			s.Logger.Warn().Err(err).
				Str("organization_id", req.OrganizationID).
				Str("stage", "expert_search").
				Msg("expert search failed, escalating")
		}

		for _, candidate := range candidates {
			if candidate.AvailabilityScore > 0 {
				decision.HandlerID = candidate.PersonID
				decision.HandlerType = models.HandlerPerson
				decision.Confidence = candidate.CombinedScore
				resolved = true
				break
			}
		}
	}

	if !resolved {
		origin := unreachablePerson
		if origin == "" && len(candidates) > 0 {
			origin = candidates[0].PersonID
		}
		result := s.Escalator.HandleEscalation(ctx, origin, req.OrganizationID, EscalationOptions{
			Path:     rulePath,
			IsUrgent: cat.Urgency.Rank() >= models.UrgencyHigh.Rank(),
		})
		// Escalation driven by a rule's path is still attributable to that rule.
		if pathRuleID != "" && decision.MatchedRuleID == nil {
			id := pathRuleID
			decision.MatchedRuleID = &id
		}
		decision.HandlerID = result.HandlerID
		decision.HandlerType = result.HandlerType
		decision.WasEscalated = true
		decision.EscalationLevel = result.EscalationLevel
		decision.Confidence = 0.5
	}

	decision.Alternatives = alternativesFor(candidates, decision.HandlerID, 3)

	// Persist even if the caller has gone away; an unrecorded decision is
	// invisible to analytics.
	recordCtx := ctx
	if ctx.Err() != nil {
		recordCtx = context.WithoutCancel(ctx)
	}
	if _, err := s.Recorder.Record(recordCtx, decision); err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}
	return decision, nil
}

func (s *RoutingService) applyRule(d *models.RoutingDecision, rule models.RoutingRule, handlerID string, handlerType models.HandlerType, matchCount int) {
	id := rule.ID
	d.MatchedRuleID = &id
	d.HandlerID = handlerID
	d.HandlerType = handlerType
	if matchCount == 1 {
		d.Confidence = 0.9
	} else {
		d.Confidence = 0.8
	}
}

func (s *RoutingService) personReachable(ctx context.Context, personID, organizationID string) bool {
	if personID == "" {
		return false
	}
	availability, err := s.Availability.CheckAvailability(ctx, personID, organizationID)
	if err != nil {
		s.Logger.Warn().Err(err).
			Str("person_id", personID).
			Str("organization_id", organizationID).
			Str("stage", "availability").
			Msg("availability check failed, treating as unavailable")
		return false
	}
	return availability.IsAvailable
}

func alternativesFor(candidates []models.HandlerCandidate, chosenID string, limit int) []models.HandlerCandidate {
	var out []models.HandlerCandidate
	for _, c := range candidates {
		if c.PersonID == chosenID {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// requestID prefers a caller-supplied id and otherwise fingerprints the
// request content so repeated submissions are correlatable.
func requestID(req models.IncomingRequest) string {
	if id := req.Metadata["request_id"]; id != "" {
		return id
	}
	return fmt.Sprintf("req_%016x", utils.HashStringToUint64(req.Content+"\x00"+req.Subject))
}
