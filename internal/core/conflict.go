package core

import (
	"slices"

	"github.com/kilupskalvis/bibsync/internal/models"
)

// keyOutcome is the fate of one citation key in a three-way comparison.
// At most one of its fields is set.
type keyOutcome struct {
	key      string
	conflict *models.ThreeWayEntryConflict
	newEntry *models.Entry
	patch    models.FieldPatch
	deleted  bool
}

// DetectConflicts returns the entries that base, local and remote disagree on irreconcilably
func DetectConflicts(base, local, remote *models.Database) []*models.ThreeWayEntryConflict {
	return Analyze(base, local, remote).Conflicts
}

// ExtractMergePlan returns the automatically applicable changes from remote
func ExtractMergePlan(base, local, remote *models.Database) *models.MergePlan {
	return Analyze(base, local, remote).AutoPlan
}

// classifyAll classifies every keyed entry of the three databases, in key order
func classifyAll(base, local, remote *models.Database) []keyOutcome {
	baseMap := base.ByKey()
	localMap := local.ByKey()
	remoteMap := remote.ByKey()

	// Collect all unique keys
	allKeys := make(map[string]bool)
	for k := range baseMap {
		allKeys[k] = true
	}
	for k := range localMap {
		allKeys[k] = true
	}
	for k := range remoteMap {
		allKeys[k] = true
	}

	keys := make([]string, 0, len(allKeys))
	for k := range allKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	outcomes := make([]keyOutcome, 0, len(keys))
	for _, key := range keys {
		outcomes = append(outcomes, classifyKey(key, baseMap[key], localMap[key], remoteMap[key]))
	}
	return outcomes
}

// classifyKey applies the three-way decision table to one citation key
func classifyKey(key string, base, local, remote *models.Entry) keyOutcome {
	out := keyOutcome{key: key}

	switch {
	case base == nil && local == nil && remote == nil:
		return out

	case base == nil && local == nil:
		// Added only by remote
		out.newEntry = remote
		return out

	case base == nil && remote == nil:
		// Added only locally; already in the local database
		return out

	case base == nil:
		// Added on both sides
		if EntriesEqual(local, remote) {
			return out
		}
		return resolveFields(out, nil, local, remote, models.ConflictAddAdd)

	case local == nil && remote == nil:
		out.deleted = true
		return out

	case local == nil:
		if EntriesEqual(base, remote) {
			out.deleted = true
			return out
		}
		out.conflict = newConflict(key, models.ConflictDeleteModify, base, local, remote, nil)
		return out

	case remote == nil:
		if EntriesEqual(base, local) {
			out.deleted = true
			return out
		}
		out.conflict = newConflict(key, models.ConflictModifyDelete, base, local, remote, nil)
		return out
	}

	// Present everywhere
	if EntriesEqual(base, remote) {
		// Remote unchanged; whatever local did stands
		return out
	}
	if EntriesEqual(base, local) {
		out.patch = DiffEntries(base, remote)
		return out
	}
	return resolveFields(out, base, local, remote, models.ConflictModifyModify)
}

// resolveFields merges field-level changes of local and remote against base.
// Fields changed only by remote are patched; fields changed by both sides to
// different values escalate the whole entry to a conflict.
func resolveFields(out keyOutcome, base, local, remote *models.Entry, conflictType models.MergeConflictType) keyOutcome {
	patchL := DiffEntries(base, local)
	patchR := DiffEntries(base, remote)

	patch := make(models.FieldPatch)
	var collided []string

	for _, name := range patchR.Names() {
		remoteValue := patchR[name]
		localValue, changedLocally := patchL[name]
		if !changedLocally {
			patch[name] = remoteValue
			continue
		}
		if !patchValuesEqual(localValue, remoteValue) {
			collided = append(collided, name)
		}
	}

	if len(collided) > 0 {
		out.conflict = newConflict(out.key, conflictType, base, local, remote, collided)
		return out
	}
	if len(patch) > 0 {
		out.patch = patch
	}
	return out
}

func newConflict(key string, conflictType models.MergeConflictType, base, local, remote *models.Entry, fields []string) *models.ThreeWayEntryConflict {
	if fields == nil {
		fields = []string{}
	}
	return &models.ThreeWayEntryConflict{
		Key:    key,
		Type:   conflictType,
		Base:   base,
		Local:  local,
		Remote: remote,
		Fields: fields,
	}
}
