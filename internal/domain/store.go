package domain

import (
	"context"

	"github.com/google/uuid"
)

// Precondition is the membership filter a conditional update is gated on.
// MemberOf (if set) must contain the voter; none of NotMemberOf may contain it.
type Precondition struct {
	MemberOf    VoteValue
	NotMemberOf []VoteValue
}

// ConditionalUpdate encodes one vote transition as a filter plus a compound
// mutation. Stores must apply it atomically or not at all.
type ConditionalUpdate struct {
	VoteeID   uuid.UUID
	VoteeType string
	VoterID   uuid.UUID
	Require   Precondition
	Pull      VoteValue // remove voter from this set
	Push      VoteValue // add voter to this set
	Inc       Delta
}

// VoteStore is the subset of store operations the voting engine needs.
type VoteStore interface {
	GetVotee(ctx context.Context, id uuid.UUID) (*Votee, error)
	// ApplyConditional returns false (and no error) when nothing matched the filter.
	ApplyConditional(ctx context.Context, u ConditionalUpdate) (bool, error)
	// Increment unconditionally adds d to the parent's counters.
	Increment(ctx context.Context, parent ParentRef, d Delta) error
}

// VoteeRepository covers votee lifecycle and the read-side voter filters.
type VoteeRepository interface {
	CreateVotee(ctx context.Context, v *Votee) error
	GetVotee(ctx context.Context, id uuid.UUID) (*Votee, error)
	DeleteVotee(ctx context.Context, id uuid.UUID) error
	// VotedBy lists votees of voteeType the voter voted on; VoteNone means either direction.
	VotedBy(ctx context.Context, voteeType string, voterID uuid.UUID, value VoteValue) ([]uuid.UUID, error)
}

// Store is implemented by every backend.
type Store interface {
	VoteStore
	VoteeRepository
	Ping(ctx context.Context) error
}
