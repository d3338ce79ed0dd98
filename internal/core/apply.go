package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kilupskalvis/bibsync/internal/models"
)

// ErrUnresolvedConflicts is returned when conflicts remain without a resolution
var ErrUnresolvedConflicts = errors.New("unresolved conflicts")

// ApplyPlan applies an auto-merge plan on top of the local database and
// returns the result. The local database is not modified.
func ApplyPlan(local *models.Database, plan *models.MergePlan) *models.Database {
	merged := local.Clone()

	for _, key := range plan.DeletedEntryKeys {
		merged.Remove(key)
	}

	keys := make([]string, 0, len(plan.FieldPatches))
	for key := range plan.FieldPatches {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if e := merged.Lookup(key); e != nil {
			applyPatch(e, plan.FieldPatches[key])
		}
	}

	for _, e := range plan.NewEntries {
		if merged.Lookup(e.Key) == nil {
			merged.Add(e.Clone())
		}
	}

	return merged
}

func applyPatch(e *models.Entry, patch models.FieldPatch) {
	for name, value := range patch {
		if name == models.TypeField {
			if value != nil {
				e.Type = strings.ToLower(*value)
			}
			continue
		}
		if value == nil {
			delete(e.Fields, name)
		} else {
			e.Set(name, *value)
		}
	}
}

// ApplyResolutions folds conflict resolutions into db. Every conflict must
// have a resolution; otherwise ErrUnresolvedConflicts is returned and db is
// left untouched.
func ApplyResolutions(db *models.Database, conflicts []*models.ThreeWayEntryConflict, resolutions []models.Resolution) error {
	byKey := make(map[string]models.Resolution, len(resolutions))
	for _, r := range resolutions {
		byKey[r.Key] = r
	}

	var unresolved []string
	for _, c := range conflicts {
		r, ok := byKey[c.Key]
		if !ok {
			unresolved = append(unresolved, c.Key)
			continue
		}
		switch r.Choice {
		case models.ResolveLocal, models.ResolveRemote, models.ResolveManual:
		default:
			return fmt.Errorf("invalid resolution '%s' for '%s'", r.Choice, c.Key)
		}
	}
	if len(unresolved) > 0 {
		return fmt.Errorf("%w: %s", ErrUnresolvedConflicts, strings.Join(unresolved, ", "))
	}

	for _, c := range conflicts {
		r := byKey[c.Key]
		var chosen *models.Entry
		switch r.Choice {
		case models.ResolveLocal:
			chosen = c.Local
		case models.ResolveRemote:
			chosen = c.Remote
		case models.ResolveManual:
			chosen = r.Entry
		}

		if chosen == nil {
			db.Remove(c.Key)
			continue
		}
		entry := chosen.Clone()
		entry.Key = c.Key
		db.Replace(entry)
	}
	return nil
}

// MergeDatabaseHeader merges preamble, @string constants and metadata.
// Remote changes are taken wherever local still matches base.
func MergeDatabaseHeader(base, local, remote *models.Database) (preamble string, strs, meta map[string]string) {
	if base == nil {
		base = models.NewDatabase()
	}

	preamble = local.Preamble
	if local.Preamble == base.Preamble {
		preamble = remote.Preamble
	}
	return preamble,
		mergeStringMaps(base.Strings, local.Strings, remote.Strings),
		mergeStringMaps(base.Metadata, local.Metadata, remote.Metadata)
}

// MergeComments keeps local comments in order, drops those the remote removed
// and appends those the remote added
func MergeComments(base, local, remote *models.Database) []string {
	if base == nil {
		base = models.NewDatabase()
	}

	var out []string
	for _, c := range local.Comments {
		if slices.Contains(base.Comments, c) && !slices.Contains(remote.Comments, c) {
			continue
		}
		out = append(out, c)
	}
	for _, c := range remote.Comments {
		if !slices.Contains(base.Comments, c) && !slices.Contains(local.Comments, c) {
			out = append(out, c)
		}
	}
	return out
}

func mergeStringMaps(base, local, remote map[string]string) map[string]string {
	out := make(map[string]string)
	names := make(map[string]bool)
	for _, m := range []map[string]string{base, local, remote} {
		for k := range m {
			names[k] = true
		}
	}

	for name := range names {
		b, inBase := base[name]
		l, inLocal := local[name]
		r, inRemote := remote[name]

		if inLocal == inBase && l == b {
			if inRemote {
				out[name] = r
			}
			continue
		}
		if inLocal {
			out[name] = l
		}
	}
	return out
}

// BuildMergedDatabase produces the final merged database: header merge,
// auto plan on top of local, then the conflict resolutions.
func BuildMergedDatabase(base, local, remote *models.Database, analysis *models.MergeAnalysis, resolutions []models.Resolution) (*models.Database, error) {
	merged := ApplyPlan(local, analysis.AutoPlan)
	merged.Preamble, merged.Strings, merged.Metadata = MergeDatabaseHeader(base, local, remote)
	merged.Comments = MergeComments(base, local, remote)

	if err := ApplyResolutions(merged, analysis.Conflicts, resolutions); err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("merged database: %w", err)
	}
	return merged, nil
}
