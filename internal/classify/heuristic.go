package classify

import (
	"sort"
	"strings"

	"github.com/routewise/backend/internal/models"
)

// categoryKeywords drives the deterministic path. Matching is plain
// substring containment over the lower-cased content and subject.
var categoryKeywords = map[string][]string{
	"billing":   {"invoice", "billing", "payment", "refund", "charge", "subscription"},
	"technical": {"error", "bug", "crash", "broken", "not working", "fails", "exception", "timeout"},
	"account":   {"password", "login", "account", "sign in", "access", "locked out"},
	"security":  {"security", "breach", "phishing", "vulnerability", "suspicious", "fraud"},
	"sales":     {"pricing", "quote", "upgrade", "plan", "purchase", "demo"},
	"hr":        {"vacation", "leave", "payroll", "benefits", "onboarding"},
	"legal":     {"contract", "gdpr", "compliance", "terms", "privacy"},
}

var criticalKeywords = []string{"outage", "down", "data loss", "cannot access production", "all users"}
var highKeywords = []string{"urgent", "asap", "immediately", "critical", "blocking", "severe"}
var lowKeywords = []string{"whenever", "no rush", "low priority", "minor", "someday"}

// QuickCategorize is the fast deterministic path: no I/O, never fails.
// Categories come out lower-cased, de-duplicated and sorted; urgency defaults
// to normal when nothing in the text signals otherwise.
func QuickCategorize(content, subject string) models.CategorizationResult {
	text := strings.ToLower(content + " " + subject)

	seen := map[string]bool{}
	hits := 0
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				if !seen[category] {
					seen[category] = true
				}
				hits++
			}
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	if len(categories) == 0 {
		categories = []string{"general"}
	}

	urgency := models.UrgencyNormal
	switch {
	case containsAny(text, criticalKeywords):
		urgency = models.UrgencyCritical
	case containsAny(text, highKeywords):
		urgency = models.UrgencyHigh
	case containsAny(text, lowKeywords):
		urgency = models.UrgencyLow
	}

	confidence := 0.3
	if hits > 0 {
		confidence = 0.5 + 0.1*float64(hits)
		if confidence > 0.8 {
			confidence = 0.8
		}
	}

	return models.CategorizationResult{
		Categories: categories,
		Urgency:    urgency,
		Confidence: confidence,
		Source:     "heuristic",
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
