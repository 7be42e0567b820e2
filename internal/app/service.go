package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/voteable"
	"github.com/shunguan/voteable/internal/voting"
)

// VoteEngine applies a single vote.
type VoteEngine interface {
	Vote(ctx context.Context, req voting.Request) (voting.Result, error)
}

// Service is the application layer. HTTP handlers talk to it, never to stores directly.
type Service struct {
	votees   domain.VoteeRepository
	engine   VoteEngine
	registry *voteable.Registry
	clock    clockwork.Clock
}

func NewService(votees domain.VoteeRepository, engine VoteEngine, registry *voteable.Registry, clock clockwork.Clock) *Service {
	return &Service{
		votees:   votees,
		engine:   engine,
		registry: registry,
		clock:    clock,
	}
}

// CreateVotee stores a new votee of a registered type with an empty aggregate.
func (s *Service) CreateVotee(ctx context.Context, voteeType string, refs map[string]uuid.UUID) (*domain.Votee, error) {
	if !s.registry.Known(voteeType) {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrNotVoteable, voteeType)
	}

	v := &domain.Votee{
		ID:        uuid.New(),
		Type:      voteeType,
		Refs:      maps.Clone(refs),
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.votees.CreateVotee(ctx, v); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Votee created", "votee_id", v.ID.String(), "votee_type", voteeType)
	return v, nil
}

// GetVotee returns the votee with its aggregate as of this call.
func (s *Service) GetVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error) {
	return s.votees.GetVotee(ctx, id)
}

func (s *Service) DeleteVotee(ctx context.Context, id uuid.UUID) error {
	if err := s.votees.DeleteVotee(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Votee deleted", "votee_id", id.String())
	return nil
}

// Vote applies a vote. A non-nil error means the votee was not changed.
// Propagation failures are logged and returned in the result.
func (s *Service) Vote(ctx context.Context, req voting.Request) (voting.Result, error) {
	res, err := s.engine.Vote(ctx, req)
	if err != nil {
		return res, err
	}

	for _, pe := range res.PropagationErrors() {
		slog.WarnContext(ctx, "Vote propagation failed, parent aggregate is stale",
			"votee_id", req.VoteeID.String(),
			"voter_id", req.VoterID.String(),
			"transition", res.Transition.Kind.String(),
			"related_type", pe.RelatedType,
			"parent_id", pe.ParentID.String(),
			"timeout", pe.Timeout(),
			"error", pe.Err)
	}
	return res, nil
}

// VoteValue returns the voter's current vote on the votee, VoteNone if there is none.
func (s *Service) VoteValue(ctx context.Context, voteeID, voterID uuid.UUID) (domain.VoteValue, error) {
	v, err := s.GetVotee(ctx, voteeID)
	if err != nil {
		return domain.VoteNone, err
	}
	return v.VoteValue(voterID), nil
}

// VotedBy lists votees of voteeType the voter voted on. value VoteNone matches both directions.
func (s *Service) VotedBy(ctx context.Context, voteeType string, voterID uuid.UUID, value domain.VoteValue) ([]uuid.UUID, error) {
	if _, ok := s.registry.Lookup(voteeType); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotVoteable, voteeType)
	}
	if voterID == uuid.Nil {
		return nil, fmt.Errorf("%w: voter id is required", domain.ErrInvalidVote)
	}
	return s.votees.VotedBy(ctx, voteeType, voterID, value)
}
