package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/classify"
	"github.com/routewise/backend/internal/models"
)

// Categorizer combines the external classifier with the deterministic
// heuristic path. Classifier failures and timeouts degrade to the heuristic;
// categorization never blocks routing.
type Categorizer struct {
	Classifier classify.Adapter
	Timeout    time.Duration
	Logger     zerolog.Logger
}

func (c *Categorizer) Categorize(ctx context.Context, req models.IncomingRequest, useAI bool) models.CategorizationResult {
	if useAI && c.Classifier != nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		aiCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, latencyMs, err := c.Classifier.Classify(aiCtx, req)
		if err == nil {
			return normalizeCategorization(result)
		}
		c.Logger.Warn().Err(err).
			Str("organization_id", req.OrganizationID).
			Int64("latency_ms", latencyMs).
			Str("stage", "categorize").
			Msg("classifier failed, using heuristic")
	}

	return normalizeCategorization(classify.QuickCategorize(req.Content, req.Subject))
}

func normalizeCategorization(r models.CategorizationResult) models.CategorizationResult {
	seen := map[string]bool{}
	categories := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		categories = append(categories, c)
	}
	if len(categories) == 0 {
		categories = []string{"general"}
	}
	r.Categories = categories

	switch r.Urgency {
	case models.UrgencyLow, models.UrgencyNormal, models.UrgencyHigh, models.UrgencyCritical:
	default:
		r.Urgency = models.UrgencyNormal
	}

	r.Confidence = clamp01(r.Confidence)
	return r
}
