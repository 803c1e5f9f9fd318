package directory

import (
	"context"
	"errors"

	"github.com/routewise/backend/internal/models"
)

var ErrNotFound = errors.New("profile not found")

// ExpertiseGraph is the expertise-graph collaborator. Implementations are
// expected to scope every lookup to a single organization.
type ExpertiseGraph interface {
	GetProfile(ctx context.Context, personID, organizationID string) (models.ExpertiseProfile, error)
	FindExpertsBySkill(ctx context.Context, organizationID, skill string, minLevel int) ([]models.ExpertiseProfile, error)
	FindByRole(ctx context.Context, organizationID, role string) ([]models.ExpertiseProfile, error)
	ListTeam(ctx context.Context, organizationID, team string) ([]models.ExpertiseProfile, error)
	ListProfiles(ctx context.Context, organizationID string, limit int) ([]models.ExpertiseProfile, error)
}

type AvailabilityProvider interface {
	CheckAvailability(ctx context.Context, personID, organizationID string) (models.Availability, error)
}

type WorkloadProvider interface {
	CheckWorkloadCapacity(ctx context.Context, personID, organizationID string) (models.WorkloadCapacity, error)
}
