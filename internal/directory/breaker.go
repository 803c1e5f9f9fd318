package directory

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/routewise/backend/internal/models"
)

// BreakerSignals wraps the availability and workload collaborators with
// circuit breakers. When a breaker is open the wrapped call still returns an
// error; callers treat any error as "unavailable" / "no capacity", so an open
// breaker fails safe toward escalation rather than toward selecting an
// unreachable handler.
type BreakerSignals struct {
	availability AvailabilityProvider
	workload     WorkloadProvider
	availBreaker *gobreaker.CircuitBreaker
	loadBreaker  *gobreaker.CircuitBreaker
}

func NewBreakerSignals(availability AvailabilityProvider, workload WorkloadProvider) *BreakerSignals {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}
	}
	return &BreakerSignals{
		availability: availability,
		workload:     workload,
		availBreaker: gobreaker.NewCircuitBreaker(settings("availability")),
		loadBreaker:  gobreaker.NewCircuitBreaker(settings("workload")),
	}
}

func (b *BreakerSignals) CheckAvailability(ctx context.Context, personID, organizationID string) (models.Availability, error) {
	out, err := b.availBreaker.Execute(func() (any, error) {
		return b.availability.CheckAvailability(ctx, personID, organizationID)
	})
	if err != nil {
		return models.Availability{}, err
	}
	return out.(models.Availability), nil
}

func (b *BreakerSignals) CheckWorkloadCapacity(ctx context.Context, personID, organizationID string) (models.WorkloadCapacity, error) {
	out, err := b.loadBreaker.Execute(func() (any, error) {
		return b.workload.CheckWorkloadCapacity(ctx, personID, organizationID)
	})
	if err != nil {
		return models.WorkloadCapacity{}, err
	}
	return out.(models.WorkloadCapacity), nil
}
