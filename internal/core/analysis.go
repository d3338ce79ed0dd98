package core

import (
	"github.com/kilupskalvis/bibsync/internal/models"
)

// Analyze runs the three-way comparison over the union of citation keys and
// collects one MergePlan and one conflict list. Keys are processed in sorted
// order, so equal inputs always produce equal results.
func Analyze(base, local, remote *models.Database) *models.MergeAnalysis {
	analysis := &models.MergeAnalysis{
		AutoPlan:  models.NewMergePlan(),
		Conflicts: []*models.ThreeWayEntryConflict{},
	}

	for _, o := range classifyAll(base, local, remote) {
		switch {
		case o.conflict != nil:
			analysis.Conflicts = append(analysis.Conflicts, o.conflict)
		case o.newEntry != nil:
			analysis.AutoPlan.NewEntries = append(analysis.AutoPlan.NewEntries, o.newEntry.Clone())
		case o.patch != nil:
			analysis.AutoPlan.FieldPatches[o.key] = o.patch
		case o.deleted:
			analysis.AutoPlan.DeletedEntryKeys = append(analysis.AutoPlan.DeletedEntryKeys, o.key)
		}
	}

	return analysis
}
