package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/models"
)

// RuleSource abstracts where the active rule set comes from (cached or
// direct store reads).
type RuleSource interface {
	ListActiveRules(ctx context.Context, organizationID string) ([]models.RoutingRule, error)
}

// MatchContext carries the request facts evaluated against rule criteria
// beyond the category set.
type MatchContext struct {
	Content     string
	Subject     string
	SenderEmail string
}

type RuleMatcher struct {
	Source RuleSource
	Now    func() time.Time
	Logger zerolog.Logger
}

// MatchRules returns every active, in-schedule rule whose non-empty criteria
// all hold, sorted by priority descending with creation order breaking ties.
// Callers walk the list and pick the first rule whose target checks out.
func (m *RuleMatcher) MatchRules(ctx context.Context, organizationID string, cat models.CategorizationResult, mc MatchContext) ([]models.RoutingRule, error) {
	rules, err := m.Source.ListActiveRules(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now()
	}

	matched := make([]models.RoutingRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if !scheduleAllows(rule.Schedule, now) {
			continue
		}
		if ruleMatches(rule.Criteria, cat, mc) {
			matched = append(matched, rule)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// ruleMatches requires every specified, non-empty criteria field to hold.
func ruleMatches(c models.RuleCriteria, cat models.CategorizationResult, mc MatchContext) bool {
	if len(c.Categories) > 0 && !categoriesOverlap(c.Categories, cat.Categories) {
		return false
	}
	if len(c.Keywords) > 0 && !keywordHit(c.Keywords, mc.Content, mc.Subject) {
		return false
	}
	if len(c.SenderDomains) > 0 && !senderDomainMatches(c.SenderDomains, mc.SenderEmail) {
		return false
	}
	if c.UrgencyAtLeast != "" && cat.Urgency.Rank() < c.UrgencyAtLeast.Rank() {
		return false
	}
	return true
}

func categoriesOverlap(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(w), h) {
				return true
			}
		}
	}
	return false
}

func keywordHit(keywords []string, content, subject string) bool {
	text := strings.ToLower(content + " " + subject)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func senderDomainMatches(domains []string, senderEmail string) bool {
	at := strings.LastIndex(senderEmail, "@")
	if at < 0 {
		return false
	}
	sender := strings.ToLower(senderEmail[at+1:])
	for _, d := range domains {
		if strings.EqualFold(strings.TrimSpace(d), sender) {
			return true
		}
	}
	return false
}

// scheduleAllows reports whether now falls inside the rule's active window.
// No schedule means always eligible; a malformed timezone or hour falls back
// to UTC / open-ended rather than dropping the rule.
func scheduleAllows(s *models.RuleSchedule, now time.Time) bool {
	if s == nil {
		return true
	}

	loc := time.UTC
	if s.Timezone != "" {
		if parsed, err := time.LoadLocation(s.Timezone); err == nil {
			loc = parsed
		}
	}
	local := now.In(loc)

	if len(s.ActiveDays) > 0 {
		dayOK := false
		for _, d := range s.ActiveDays {
			if int(local.Weekday()) == d {
				dayOK = true
				break
			}
		}
		if !dayOK {
			return false
		}
	}

	if s.ActiveStart != "" && s.ActiveEnd != "" {
		start, okStart := parseClock(s.ActiveStart)
		end, okEnd := parseClock(s.ActiveEnd)
		if okStart && okEnd {
			minutes := local.Hour()*60 + local.Minute()
			if start <= end {
				if minutes < start || minutes >= end {
					return false
				}
			} else {
				// Window crosses midnight.
				if minutes < start && minutes >= end {
					return false
				}
			}
		}
	}
	return true
}

func parseClock(v string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
