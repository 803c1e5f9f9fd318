package classify

import (
	"context"
	"time"

	"github.com/routewise/backend/internal/models"
	"github.com/routewise/backend/internal/utils"
)

type MockAdapter struct {
	ModelVersion string
}

func (m MockAdapter) Classify(ctx context.Context, r models.IncomingRequest) (models.CategorizationResult, int64, error) {
	start := time.Now()
	h := utils.HashStringToUint64(r.Content + r.Subject)

	categorySets := [][]string{
		{"billing"},
		{"technical", "infrastructure"},
		{"account"},
		{"security"},
		{"sales", "general"},
	}
	urgencies := []models.Urgency{
		models.UrgencyLow,
		models.UrgencyNormal,
		models.UrgencyNormal,
		models.UrgencyHigh,
		models.UrgencyCritical,
	}

	// Reduce before converting: int(h) is negative when the hash's top bit
	// is set, and a negative index panics.
	result := models.CategorizationResult{
		Categories: categorySets[h%uint64(len(categorySets))],
		Urgency:    urgencies[(h/7)%uint64(len(urgencies))],
		Confidence: 0.85,
		Source:     "classifier",
	}
	if h%5 == 0 {
		result.Confidence = 0.65
	}

	return result, time.Since(start).Milliseconds(), nil
}
