package rowguard

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a point-get resolves to no live row.
// Tombstone-exclusive reads return it for tombstoned rows too, so a caller
// cannot distinguish "never existed" from "soft-deleted".
var ErrNotFound = errors.New("rowguard: not found")

// ErrHardDeleteForbidden is returned for physical-delete attempts on
// soft-delete-only entities (interactions).
var ErrHardDeleteForbidden = errors.New("rowguard: hard delete forbidden")

// ErrPolicyDenied is the base error for visible-but-forbidden rows. The
// wrapped Decision carries the machine-readable reason.
var ErrPolicyDenied = errors.New("rowguard: policy denied")

// ErrNoExportStager is returned when staging an export without a configured
// staging backend.
var ErrNoExportStager = errors.New("rowguard: no export stager configured")

// ConstraintViolationError reports an enum, range, or cross-field invariant
// failure detected at the policy layer rather than in storage.
type ConstraintViolationError struct {
	Entity EntityType
	Field  string
	Detail string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("rowguard: constraint violation on %s.%s: %s", e.Entity, e.Field, e.Detail)
}

// ReferentialIntegrityError reports a write that references a dead or
// non-existent row, or a hard delete of a row that live rows still depend on.
// Recoverable by the caller: fix the reference (or remove the dependents) and
// resubmit.
type ReferentialIntegrityError struct {
	Entity     EntityType
	Field      string
	TargetID   string
	Tombstone  bool
	Referenced bool
}

func (e *ReferentialIntegrityError) Error() string {
	if e.Referenced {
		return fmt.Sprintf("rowguard: referential integrity: %s %s is still referenced by live rows", e.Entity, e.TargetID)
	}
	state := "missing"
	if e.Tombstone {
		state = "tombstoned"
	}
	return fmt.Sprintf("rowguard: referential integrity: %s.%s references %s row %s", e.Entity, e.Field, state, e.TargetID)
}

// ComplianceStateError reports an invalid compliance-workflow transition,
// e.g. notifying authorities for a breach that has not been assessed.
type ComplianceStateError struct {
	IncidentID string
	From       BreachState
	To         BreachState
}

func (e *ComplianceStateError) Error() string {
	return fmt.Sprintf("rowguard: invalid breach transition %s -> %s for incident %s", e.From, e.To, e.IncidentID)
}

// PolicyDeniedError wraps a deny decision so write helpers can surface it as
// an error while callers keep access to the structured reason.
type PolicyDeniedError struct {
	Decision *Decision
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("rowguard: denied (%s)", e.Decision.Reason)
}

func (e *PolicyDeniedError) Unwrap() error { return ErrPolicyDenied }
