package domain

import (
	"time"

	"github.com/google/uuid"
)

// Votee is any stored entity that can receive votes. Refs holds the foreign keys
// to related (parent) entities, keyed by field name (e.g. "post_id").
type Votee struct {
	ID        uuid.UUID            `json:"id"`
	Type      string               `json:"type"`
	Refs      map[string]uuid.UUID `json:"refs,omitempty"`
	Votes     VoteAggregate        `json:"votes"`
	CreatedAt time.Time            `json:"created_at"`
}

// Ref returns the foreign key stored under field, or false when this votee has
// no such parent.
func (v *Votee) Ref(field string) (uuid.UUID, bool) {
	id, ok := v.Refs[field]
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// VoteValue returns the voter's current vote on this votee.
func (v *Votee) VoteValue(voterID uuid.UUID) VoteValue {
	return v.Votes.ValueOf(voterID)
}

// ParentRef identifies a parent aggregate by type and primary identity.
type ParentRef struct {
	Type string
	ID   uuid.UUID
}
