package domain

import "time"

// ArtifactScope identifies the storage namespace an artifact lives in.
type ArtifactScope string

const (
	// ScopeTemporary objects are auto-expired by the store's TTL policy.
	ScopeTemporary ArtifactScope = "TEMPORARY"
	// ScopePermanent objects are never auto-expired.
	ScopePermanent ArtifactScope = "PERMANENT"
)

// StoredArtifact describes one object held by the artifact store.
// SourceJobID is a back-reference only, never an ownership edge: deleting
// a job record does not touch its artifacts.
type StoredArtifact struct {
	Key         string        `json:"key"`
	Scope       ArtifactScope `json:"scope"`
	SourceJobID string        `json:"source_job_id"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

// PromotionOutcome reports the per-artifact result of a promotion call.
// Exactly one of Locator or Error is set.
type PromotionOutcome struct {
	ArtifactName string `json:"artifact_name"`
	Locator      string `json:"locator,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	AlreadyThere bool   `json:"already_promoted,omitempty"`
}
