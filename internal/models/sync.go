package models

import "time"

// SyncStatus describes how the local branch relates to its remote-tracking branch
type SyncStatus string

const (
	SyncUpToDate SyncStatus = "up-to-date"
	SyncAhead    SyncStatus = "ahead"
	SyncBehind   SyncStatus = "behind"
	SyncDiverged SyncStatus = "diverged"
)

// BookkeepingKind tags how a merge result was recorded in git
type BookkeepingKind string

const (
	FastForward BookkeepingKind = "fast-forward"
	NewCommit   BookkeepingKind = "new-commit"
)

// PendingMerge is a prepared pull waiting for manual conflict resolution
type PendingMerge struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"` // repo-relative tracked file
	Status    SyncStatus `json:"status"`
	Branch    string     `json:"branch"`
	RemoteRef string     `json:"remote_ref"`
	Base      string     `json:"base"`
	Local     string     `json:"local"`
	Remote    string     `json:"remote"`
	Conflicts []string   `json:"conflicts,omitempty"` // citation keys
	CreatedAt time.Time  `json:"created_at"`
}

// SyncRecord is one entry in the sync history
type SyncRecord struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Status    SyncStatus      `json:"status"`
	Result    BookkeepingKind `json:"result"`
	Commit    string          `json:"commit"`
	Parents   []string        `json:"parents,omitempty"`
	Conflicts int             `json:"conflicts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ShortCommit returns a shortened commit hash (first 7 characters)
func (r *SyncRecord) ShortCommit() string {
	if len(r.Commit) > 7 {
		return r.Commit[:7]
	}
	return r.Commit
}

// IsMergeCommit returns true if the recorded commit has two parents
func (r *SyncRecord) IsMergeCommit() bool {
	return len(r.Parents) > 1
}
