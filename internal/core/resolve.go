package core

import (
	"fmt"

	"github.com/kilupskalvis/bibsync/internal/models"
)

// ConflictResolver turns conflicts into resolutions, e.g. by asking a user
type ConflictResolver interface {
	Resolve(conflicts []*models.ThreeWayEntryConflict) ([]models.Resolution, error)
}

// StrategyResolver resolves every conflict to the same side
type StrategyResolver struct {
	Strategy models.ConflictStrategy
}

// Resolve implements ConflictResolver
func (r StrategyResolver) Resolve(conflicts []*models.ThreeWayEntryConflict) ([]models.Resolution, error) {
	var choice models.ResolutionChoice
	switch r.Strategy {
	case models.ConflictOurs:
		choice = models.ResolveLocal
	case models.ConflictTheirs:
		choice = models.ResolveRemote
	default:
		return nil, fmt.Errorf("strategy '%s' does not resolve conflicts", r.Strategy)
	}

	resolutions := make([]models.Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		resolutions = append(resolutions, models.Resolution{Key: c.Key, Choice: choice})
	}
	return resolutions, nil
}
