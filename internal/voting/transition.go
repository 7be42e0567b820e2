package voting

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/shunguan/voteable/internal/domain"
)

// Kind is the class of state transition a vote performs.
type Kind int

const (
	KindNew Kind = iota
	KindRevote
	KindUnvote
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindRevote:
		return "revote"
	case KindUnvote:
		return "unvote"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Request is a vote as submitted by a caller. Revote and Unvote are nil when the
// caller did not pass them; the defaults are then derived from the voter's current vote.
type Request struct {
	VoteeID uuid.UUID
	VoterID uuid.UUID
	Value   domain.VoteValue
	Revote  *bool
	Unvote  *bool
}

// Transition is a resolved vote. Value is the target direction for new votes and
// revotes, and the direction being withdrawn for unvotes.
type Transition struct {
	Kind  Kind             `json:"kind"`
	Value domain.VoteValue `json:"value"`
}

// Resolve picks the transition for req given the voter's current vote. current comes
// from an advisory read and may be stale: the returned transition only decides which
// conditional mutation is attempted, never whether it is safe.
func Resolve(req Request, current domain.VoteValue) (Transition, error) {
	unvote := req.Unvote != nil && *req.Unvote

	var revote bool
	switch {
	case req.Revote != nil:
		revote = *req.Revote
	case !unvote:
		revote = current != domain.VoteNone && current != req.Value
	}

	if revote {
		if !req.Value.Valid() {
			return Transition{}, fmt.Errorf("%w: revote requires a value", domain.ErrInvalidVote)
		}
		return Transition{Kind: KindRevote, Value: req.Value}, nil
	}

	if unvote {
		value := req.Value
		if value == domain.VoteNone {
			value = current
		}
		if value == domain.VoteNone {
			return Transition{}, fmt.Errorf("%w: voter has no vote to withdraw", domain.ErrPreconditionFailed)
		}
		if !value.Valid() {
			return Transition{}, fmt.Errorf("%w: unknown value %q", domain.ErrInvalidVote, value)
		}
		return Transition{Kind: KindUnvote, Value: value}, nil
	}

	if !req.Value.Valid() {
		return Transition{}, fmt.Errorf("%w: vote requires a value", domain.ErrInvalidVote)
	}
	return Transition{Kind: KindNew, Value: req.Value}, nil
}

// Precondition is the membership state the transition requires.
func (t Transition) Precondition() domain.Precondition {
	switch t.Kind {
	case KindRevote:
		return domain.Precondition{
			MemberOf:    t.Value.Opposite(),
			NotMemberOf: []domain.VoteValue{t.Value},
		}
	case KindUnvote:
		return domain.Precondition{
			MemberOf:    t.Value,
			NotMemberOf: []domain.VoteValue{t.Value.Opposite()},
		}
	default:
		return domain.Precondition{
			NotMemberOf: []domain.VoteValue{domain.VoteUp, domain.VoteDown},
		}
	}
}

// Effect is the numeric change the transition makes to an aggregate weighted by w.
// With counters false only Point changes.
func (t Transition) Effect(w domain.Weights, counters bool) domain.Delta {
	var d domain.Delta

	switch t.Kind {
	case KindNew:
		d.Point = w.Of(t.Value)
		if counters {
			d.Count = 1
			addCount(&d, t.Value, 1)
		}
	case KindRevote:
		d.Point = w.Of(t.Value) - w.Of(t.Value.Opposite())
		if counters {
			addCount(&d, t.Value, 1)
			addCount(&d, t.Value.Opposite(), -1)
		}
	case KindUnvote:
		d.Point = -w.Of(t.Value)
		if counters {
			d.Count = -1
			addCount(&d, t.Value, -1)
		}
	}

	return d
}

func addCount(d *domain.Delta, v domain.VoteValue, n int64) {
	switch v {
	case domain.VoteUp:
		d.UpCount += n
	case domain.VoteDown:
		d.DownCount += n
	}
}

// Update builds the conditional mutation applying t to the votee's own aggregate.
func (t Transition) Update(votee *domain.Votee, voterID uuid.UUID, w domain.Weights) domain.ConditionalUpdate {
	u := domain.ConditionalUpdate{
		VoteeID:   votee.ID,
		VoteeType: votee.Type,
		VoterID:   voterID,
		Require:   t.Precondition(),
		Inc:       t.Effect(w, true),
	}

	switch t.Kind {
	case KindNew:
		u.Push = t.Value
	case KindRevote:
		u.Pull = t.Value.Opposite()
		u.Push = t.Value
	case KindUnvote:
		u.Pull = t.Value
	}

	return u
}
