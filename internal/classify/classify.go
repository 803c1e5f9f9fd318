package classify

import (
	"context"

	"github.com/routewise/backend/internal/models"
)

// Adapter is the external classification collaborator. It returns the
// result, the call latency in milliseconds, and any transport error. Callers
// fall back to the heuristic path on error; the adapter never blocks routing.
type Adapter interface {
	Classify(ctx context.Context, req models.IncomingRequest) (models.CategorizationResult, int64, error)
}
