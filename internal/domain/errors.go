package domain

import (
	"errors"
	"fmt"
)

// Reason classifies why a lifecycle or orchestration step was refused.
// Resolution failures are not part of this taxonomy: enrichment is
// best-effort and degrades to absent fields instead of erroring.
type Reason string

const (
	ReasonIllegalTransition       Reason = "illegal_transition"
	ReasonExpired                 Reason = "expired"
	ReasonDuplicateSideEffect     Reason = "duplicate_side_effect"
	ReasonUnsatisfiedPrecondition Reason = "unsatisfied_precondition"
	ReasonConcurrentModification  Reason = "concurrent_modification"
	ReasonNotFound                Reason = "not_found"
	ReasonUpstreamUnavailable     Reason = "upstream_unavailable"
)

// Rejection is a refused transition or command, with enough context for the
// caller to display a specific remediation.
type Rejection struct {
	Reason     Reason
	Entity     EntityType
	ID         string
	Transition string
	State      string
	Detail     string
}

func (e *Rejection) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Reason, e.Entity)
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Transition != "" {
		msg += fmt.Sprintf(": transition %q", e.Transition)
	}
	if e.State != "" {
		msg += fmt.Sprintf(" from state %q", e.State)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// NotFound builds the rejection for a missing entity or dangling reference.
func NotFound(t EntityType, id string) *Rejection {
	return &Rejection{Reason: ReasonNotFound, Entity: t, ID: id}
}

// Unavailable builds the rejection for a Fetch Port failure. The caller may
// retry manually; the orchestrator never retries on its own.
func Unavailable(t EntityType, cause error) *Rejection {
	r := &Rejection{Reason: ReasonUpstreamUnavailable, Entity: t}
	if cause != nil {
		r.Detail = cause.Error()
	}
	return r
}

// AsRejection extracts a *Rejection from an error chain, wrapping anything
// else as upstream unavailability.
func AsRejection(t EntityType, err error) *Rejection {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	return Unavailable(t, err)
}

// ErrNotPermitted is returned when an anonymous caller invokes a command
// outside the public allow-list. Deliberately outside the Rejection taxonomy,
// which is reserved for lifecycle failures.
var ErrNotPermitted = errors.New("operation not permitted for caller role")
