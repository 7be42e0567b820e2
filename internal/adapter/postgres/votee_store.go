package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shunguan/voteable/internal/domain"
)

const selectVotee = `
SELECT votee_type, refs, up_voter_ids, down_voter_ids, up_count, down_count, count, point, created_at
FROM votees
WHERE id = $1`

// applyConditional is the whole vote transition as one guarded statement: the
// WHERE clause is the precondition, the SET list the effect.
const applyConditional = `
UPDATE votees SET
    up_voter_ids = CASE
        WHEN @pull::text = 'up' THEN array_remove(up_voter_ids, @voter_id::uuid)
        WHEN @push::text = 'up' THEN array_append(up_voter_ids, @voter_id::uuid)
        ELSE up_voter_ids
    END,
    down_voter_ids = CASE
        WHEN @pull::text = 'down' THEN array_remove(down_voter_ids, @voter_id::uuid)
        WHEN @push::text = 'down' THEN array_append(down_voter_ids, @voter_id::uuid)
        ELSE down_voter_ids
    END,
    up_count = up_count + @up_count::bigint,
    down_count = down_count + @down_count::bigint,
    count = count + @count::bigint,
    point = point + @point::bigint
WHERE id = @id::uuid
  AND votee_type = @votee_type::text
  AND CASE @member_of::text
        WHEN 'up' THEN up_voter_ids @> ARRAY[@voter_id::uuid]
        WHEN 'down' THEN down_voter_ids @> ARRAY[@voter_id::uuid]
        ELSE TRUE
      END
  AND NOT (@forbid_up::boolean AND up_voter_ids @> ARRAY[@voter_id::uuid])
  AND NOT (@forbid_down::boolean AND down_voter_ids @> ARRAY[@voter_id::uuid])`

const incrementCounters = `
UPDATE votees SET
    up_count = up_count + @up_count::bigint,
    down_count = down_count + @down_count::bigint,
    count = count + @count::bigint,
    point = point + @point::bigint
WHERE id = @id::uuid AND votee_type = @votee_type::text`

const selectVotedBy = `
SELECT id FROM votees
WHERE votee_type = @votee_type::text
  AND ((@match_up::boolean AND up_voter_ids @> ARRAY[@voter_id::uuid])
    OR (@match_down::boolean AND down_voter_ids @> ARRAY[@voter_id::uuid]))
ORDER BY id`

// VoteeStore persists votees in the votees table.
type VoteeStore struct {
	pool    *pgxpool.Pool
	breaker *CircuitBreaker
}

var _ domain.Store = (*VoteeStore)(nil)

type StoreOption func(*VoteeStore)

// WithCircuitBreaker guards every query except Ping with b.
func WithCircuitBreaker(b *CircuitBreaker) StoreOption {
	return func(s *VoteeStore) { s.breaker = b }
}

func NewVoteeStore(pool *pgxpool.Pool, opts ...StoreOption) *VoteeStore {
	s := &VoteeStore{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping bypasses the breaker so readiness reflects the database itself.
func (s *VoteeStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *VoteeStore) CreateVotee(ctx context.Context, v *domain.Votee) error {
	return s.breaker.run(func() error { return s.createVotee(ctx, v) })
}

func (s *VoteeStore) createVotee(ctx context.Context, v *domain.Votee) error {
	refs := v.Refs
	if refs == nil {
		refs = map[string]uuid.UUID{}
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO votees (id, votee_type, refs, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		v.ID, v.Type, refs, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert votee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoteeExists
	}
	v.Votes = domain.VoteAggregate{}
	return nil
}

func (s *VoteeStore) GetVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error) {
	var v *domain.Votee
	err := s.breaker.run(func() (err error) {
		v, err = s.getVotee(ctx, id)
		return err
	})
	return v, err
}

func (s *VoteeStore) getVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error) {
	v := &domain.Votee{ID: id}
	err := s.pool.QueryRow(ctx, selectVotee, id).Scan(
		&v.Type,
		&v.Refs,
		&v.Votes.UpVoterIDs,
		&v.Votes.DownVoterIDs,
		&v.Votes.UpCount,
		&v.Votes.DownCount,
		&v.Votes.Count,
		&v.Votes.Point,
		&v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get votee: %w", err)
	}

	if len(v.Refs) == 0 {
		v.Refs = nil
	}
	if len(v.Votes.UpVoterIDs) == 0 {
		v.Votes.UpVoterIDs = nil
	}
	if len(v.Votes.DownVoterIDs) == 0 {
		v.Votes.DownVoterIDs = nil
	}
	return v, nil
}

func (s *VoteeStore) DeleteVotee(ctx context.Context, id uuid.UUID) error {
	return s.breaker.run(func() error { return s.deleteVotee(ctx, id) })
}

func (s *VoteeStore) deleteVotee(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM votees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete votee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoteeNotFound
	}
	return nil
}

// ApplyConditional reports whether the guarded UPDATE matched exactly one row.
func (s *VoteeStore) ApplyConditional(ctx context.Context, u domain.ConditionalUpdate) (bool, error) {
	var matched bool
	err := s.breaker.run(func() (err error) {
		matched, err = s.applyConditional(ctx, u)
		return err
	})
	return matched, err
}

func (s *VoteeStore) applyConditional(ctx context.Context, u domain.ConditionalUpdate) (bool, error) {
	tag, err := s.pool.Exec(ctx, applyConditional, pgx.NamedArgs{
		"id":          u.VoteeID,
		"votee_type":  u.VoteeType,
		"voter_id":    u.VoterID,
		"member_of":   string(u.Require.MemberOf),
		"forbid_up":   slices.Contains(u.Require.NotMemberOf, domain.VoteUp),
		"forbid_down": slices.Contains(u.Require.NotMemberOf, domain.VoteDown),
		"pull":        string(u.Pull),
		"push":        string(u.Push),
		"up_count":    u.Inc.UpCount,
		"down_count":  u.Inc.DownCount,
		"count":       u.Inc.Count,
		"point":       u.Inc.Point,
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply vote: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *VoteeStore) Increment(ctx context.Context, parent domain.ParentRef, d domain.Delta) error {
	return s.breaker.run(func() error { return s.increment(ctx, parent, d) })
}

func (s *VoteeStore) increment(ctx context.Context, parent domain.ParentRef, d domain.Delta) error {
	tag, err := s.pool.Exec(ctx, incrementCounters, pgx.NamedArgs{
		"id":         parent.ID,
		"votee_type": parent.Type,
		"up_count":   d.UpCount,
		"down_count": d.DownCount,
		"count":      d.Count,
		"point":      d.Point,
	})
	if err != nil {
		return fmt.Errorf("failed to increment parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoteeNotFound
	}
	return nil
}

func (s *VoteeStore) VotedBy(ctx context.Context, voteeType string, voterID uuid.UUID, value domain.VoteValue) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.breaker.run(func() (err error) {
		ids, err = s.votedBy(ctx, voteeType, voterID, value)
		return err
	})
	return ids, err
}

func (s *VoteeStore) votedBy(ctx context.Context, voteeType string, voterID uuid.UUID, value domain.VoteValue) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, selectVotedBy, pgx.NamedArgs{
		"votee_type": voteeType,
		"voter_id":   voterID,
		"match_up":   value != domain.VoteDown,
		"match_down": value != domain.VoteUp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query voted-by: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan voted-by: %w", err)
	}
	return ids, nil
}
