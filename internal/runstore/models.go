// Package runstore persists the history of walk runs to SQLite: one
// row per recorded walk run (the mirror command records one per
// invocation; the validate command records none), plus per-document
// outcome rows for callers that record them (no command records
// them). It is entirely separate from the
// on-disk mirror the Store visitor writes (internal/walker) — losing
// this database never loses mirrored content, only the audit trail of
// how it got there.
package runstore

import "time"

// WalkRun records a single walk invocation against one provider.
type WalkRun struct {
	ID               int64
	RunUUID          string // opaque external identifier, stable across status lookups
	Provider         string
	Mode             string // "mirror" or "validate"
	StartTime        time.Time
	EndTime          time.Time
	DocsDiscovered   int
	DocsRetrieved    int
	DocsStored       int
	DocsSkipped      int
	DocsFailed       int
	Status           string // "running", "success", "failed"
	ErrorMessage     string
}

// DocumentOutcome records the final outcome of a single document
// within a WalkRun: whether it validated, and why if it didn't.
type DocumentOutcome struct {
	ID               int64
	RunID            int64
	URL              string
	ValidationResult string // "" (not checked), "ok", or a ValidationOutcome string
	Stored           bool
	LastModified      time.Time
}
