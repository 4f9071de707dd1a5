package errors

import (
	"fmt"
	"time"

	"github.com/shopbridge/syncengine/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict is returned when there's a conflict (e.g., idempotency)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when an invalid state
// transition is attempted on a mapping or a connection
type ErrInvalidStateTransition struct {
	From string
	To   string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrLimitExceeded is returned when a tier cap denies an operation.
// It is an expected control-flow outcome, not a fault.
type ErrLimitExceeded struct {
	Resource      domain.UsageResource
	CurrentUsage  int
	Limit         int
	SuggestedTier domain.Tier
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("%s limit reached (%d/%d), upgrade to %s", e.Resource, e.CurrentUsage, e.Limit, e.SuggestedTier)
}

// ErrFeatureGated is returned when a workflow requires a feature the
// shop's tier does not include.
type ErrFeatureGated struct {
	Feature domain.Feature
	Tier    domain.Tier
}

func (e *ErrFeatureGated) Error() string {
	return fmt.Sprintf("feature %s is not available on tier %s", e.Feature, e.Tier)
}

// ErrRateLimited is returned when the external platform throttles us
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited by external API, retry after %s", e.RetryAfter)
}

// ErrBulkJob is returned when a bulk operation ends in a non-success
// terminal state. Timeout is distinct from an external failure.
type ErrBulkJob struct {
	JobID     string
	Status    domain.BulkJobStatus
	ErrorCode string
	Timeout   bool
}

func (e *ErrBulkJob) Error() string {
	if e.Timeout {
		return fmt.Sprintf("bulk job %s timed out waiting for completion", e.JobID)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("bulk job %s ended %s: %s", e.JobID, e.Status, e.ErrorCode)
	}
	return fmt.Sprintf("bulk job %s ended %s", e.JobID, e.Status)
}
