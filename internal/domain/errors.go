package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotVoteable        = errors.New("votee type is not voteable")
	ErrPreconditionFailed = errors.New("vote precondition failed")
	ErrVoteeNotFound      = errors.New("votee not found")
	ErrVoteeExists        = errors.New("votee already exists")
	ErrInvalidVote        = errors.New("invalid vote")
	ErrPropagationFailed  = errors.New("vote propagation failed")
	// ErrStoreUnavailable marks calls rejected by a store's circuit breaker.
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// PropagationError reports a parent increment that failed after the votee's own
// mutation committed. The votee and parent aggregates diverge until reconciled.
type PropagationError struct {
	RelatedType string
	ParentID    uuid.UUID
	Err         error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagate vote to %s %s: %v", e.RelatedType, e.ParentID, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// Is matches ErrPropagationFailed so callers can test the category without a type assertion.
func (e *PropagationError) Is(target error) bool {
	return target == ErrPropagationFailed
}

// Timeout reports whether the increment was abandoned because its deadline expired.
func (e *PropagationError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
