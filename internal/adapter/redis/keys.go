package redis

import (
	"github.com/google/uuid"

	"github.com/shunguan/voteable/internal/domain"
)

const (
	fieldType      = "type"
	fieldCreatedAt = "created_at"
	fieldUpCount   = "up_count"
	fieldDownCount = "down_count"
	fieldCount     = "count"
	fieldPoint     = "point"

	// Foreign keys are stored as "ref:<field>" hash fields.
	refFieldPrefix = "ref:"
)

func voteeKey(id uuid.UUID) string {
	return "votee:" + id.String()
}

func votersKey(id uuid.UUID, v domain.VoteValue) string {
	return voteeKey(id) + ":" + string(v)
}

// voterIndexKey holds the ids of voteeType votees the voter voted v on.
func voterIndexKey(voterID uuid.UUID, voteeType string, v domain.VoteValue) string {
	return "voter:" + voterID.String() + ":" + voteeType + ":" + string(v)
}
