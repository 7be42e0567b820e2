package domain

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// VoteValue is the direction of a vote. The zero value means "no vote".
type VoteValue string

const (
	VoteNone VoteValue = ""
	VoteUp   VoteValue = "up"
	VoteDown VoteValue = "down"
)

// ParseVoteValue converts user input to a VoteValue. The empty string parses to VoteNone.
func ParseVoteValue(s string) (VoteValue, error) {
	switch s {
	case "":
		return VoteNone, nil
	case "up":
		return VoteUp, nil
	case "down":
		return VoteDown, nil
	default:
		return VoteNone, fmt.Errorf("%w: unknown vote value %q", ErrInvalidVote, s)
	}
}

// Opposite returns the other direction. VoteNone has no opposite.
func (v VoteValue) Opposite() VoteValue {
	switch v {
	case VoteUp:
		return VoteDown
	case VoteDown:
		return VoteUp
	default:
		return VoteNone
	}
}

func (v VoteValue) Valid() bool {
	return v == VoteUp || v == VoteDown
}

func (v VoteValue) String() string {
	if v == VoteNone {
		return "none"
	}
	return string(v)
}

// Weights is the point contribution of a single up or down vote.
type Weights struct {
	Up   int64 `json:"up" yaml:"up"`
	Down int64 `json:"down" yaml:"down"`
}

// Of returns the weight for the given direction.
func (w Weights) Of(v VoteValue) int64 {
	switch v {
	case VoteUp:
		return w.Up
	case VoteDown:
		return w.Down
	default:
		return 0
	}
}

// VoteAggregate is the persisted vote state embedded in every votee.
type VoteAggregate struct {
	UpVoterIDs   []uuid.UUID `json:"up_voter_ids"`
	DownVoterIDs []uuid.UUID `json:"down_voter_ids"`
	UpCount      int64       `json:"up_count"`
	DownCount    int64       `json:"down_count"`
	Count        int64       `json:"count"`
	Point        int64       `json:"point"`
}

// ValueOf derives the voter's current vote from set membership.
func (a VoteAggregate) ValueOf(voterID uuid.UUID) VoteValue {
	if slices.Contains(a.UpVoterIDs, voterID) {
		return VoteUp
	}
	if slices.Contains(a.DownVoterIDs, voterID) {
		return VoteDown
	}
	return VoteNone
}

// VoterIDs returns the set for a direction.
func (a VoteAggregate) VoterIDs(v VoteValue) []uuid.UUID {
	switch v {
	case VoteUp:
		return a.UpVoterIDs
	case VoteDown:
		return a.DownVoterIDs
	default:
		return nil
	}
}

// Validate checks the aggregate invariants: counters match set sizes, count is
// their sum, and no voter is in both sets.
func (a VoteAggregate) Validate() error {
	if a.UpCount != int64(len(a.UpVoterIDs)) {
		return fmt.Errorf("up_count %d does not match %d up voters", a.UpCount, len(a.UpVoterIDs))
	}
	if a.DownCount != int64(len(a.DownVoterIDs)) {
		return fmt.Errorf("down_count %d does not match %d down voters", a.DownCount, len(a.DownVoterIDs))
	}
	if a.Count != a.UpCount+a.DownCount {
		return fmt.Errorf("count %d is not up_count + down_count (%d)", a.Count, a.UpCount+a.DownCount)
	}
	for _, id := range a.UpVoterIDs {
		if slices.Contains(a.DownVoterIDs, id) {
			return fmt.Errorf("voter %s is in both up and down sets", id)
		}
	}
	return nil
}

// Delta is a set of numeric increments applied to an aggregate.
type Delta struct {
	UpCount   int64 `json:"up_count"`
	DownCount int64 `json:"down_count"`
	Count     int64 `json:"count"`
	Point     int64 `json:"point"`
}

func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Apply adds the delta to the aggregate's counters. Sets are untouched.
func (a *VoteAggregate) Apply(d Delta) {
	a.UpCount += d.UpCount
	a.DownCount += d.DownCount
	a.Count += d.Count
	a.Point += d.Point
}
