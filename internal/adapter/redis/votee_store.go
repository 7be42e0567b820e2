package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shunguan/voteable/internal/domain"
)

// VoteeStore persists votees and their aggregates in Redis.
type VoteeStore struct {
	rdb *goredis.Client
}

var _ domain.Store = (*VoteeStore)(nil)

func NewVoteeStore(rdb *goredis.Client) *VoteeStore {
	return &VoteeStore{rdb: rdb}
}

func (s *VoteeStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *VoteeStore) CreateVotee(ctx context.Context, v *domain.Votee) error {
	args := []any{v.Type, v.CreatedAt.UTC().Format(time.RFC3339Nano)}
	for field, id := range v.Refs {
		args = append(args, refFieldPrefix+field, id.String())
	}

	created, err := createVoteeScript.Run(ctx, s.rdb, []string{voteeKey(v.ID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("create votee script failed: %w", err)
	}
	if created == 0 {
		return domain.ErrVoteeExists
	}
	v.Votes = domain.VoteAggregate{}
	return nil
}

// GetVotee reads the hash and both voter sets in one MULTI so the aggregate is a
// consistent snapshot.
func (s *VoteeStore) GetVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error) {
	pipe := s.rdb.TxPipeline()
	hashCmd := pipe.HGetAll(ctx, voteeKey(id))
	upCmd := pipe.SMembers(ctx, votersKey(id, domain.VoteUp))
	downCmd := pipe.SMembers(ctx, votersKey(id, domain.VoteDown))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("get votee pipeline failed: %w", err)
	}

	fields := hashCmd.Val()
	if len(fields) == 0 {
		return nil, domain.ErrVoteeNotFound
	}

	v, err := parseVotee(id, fields)
	if err != nil {
		return nil, err
	}
	if v.Votes.UpVoterIDs, err = parseIDs(upCmd.Val()); err != nil {
		return nil, fmt.Errorf("invalid up voter id in %s: %w", voteeKey(id), err)
	}
	if v.Votes.DownVoterIDs, err = parseIDs(downCmd.Val()); err != nil {
		return nil, fmt.Errorf("invalid down voter id in %s: %w", voteeKey(id), err)
	}
	return v, nil
}

func (s *VoteeStore) DeleteVotee(ctx context.Context, id uuid.UUID) error {
	keys := []string{voteeKey(id), votersKey(id, domain.VoteUp), votersKey(id, domain.VoteDown)}
	deleted, err := deleteVoteeScript.Run(ctx, s.rdb, keys, id.String()).Int()
	if err != nil {
		return fmt.Errorf("delete votee script failed: %w", err)
	}
	if deleted == 0 {
		return domain.ErrVoteeNotFound
	}
	return nil
}

func (s *VoteeStore) ApplyConditional(ctx context.Context, u domain.ConditionalUpdate) (bool, error) {
	keys := []string{
		voteeKey(u.VoteeID),
		votersKey(u.VoteeID, domain.VoteUp),
		votersKey(u.VoteeID, domain.VoteDown),
		voterIndexKey(u.VoterID, u.VoteeType, domain.VoteUp),
		voterIndexKey(u.VoterID, u.VoteeType, domain.VoteDown),
	}

	forbidden := make([]string, len(u.Require.NotMemberOf))
	for i, v := range u.Require.NotMemberOf {
		forbidden[i] = string(v)
	}

	applied, err := applyConditionalScript.Run(ctx, s.rdb, keys,
		u.VoteeType,
		u.VoterID.String(),
		u.VoteeID.String(),
		string(u.Require.MemberOf),
		strings.Join(forbidden, ","),
		string(u.Pull),
		string(u.Push),
		u.Inc.UpCount,
		u.Inc.DownCount,
		u.Inc.Count,
		u.Inc.Point,
	).Int()
	if err != nil {
		return false, fmt.Errorf("apply vote script failed: %w", err)
	}
	return applied == 1, nil
}

func (s *VoteeStore) Increment(ctx context.Context, parent domain.ParentRef, d domain.Delta) error {
	applied, err := incrementScript.Run(ctx, s.rdb, []string{voteeKey(parent.ID)},
		parent.Type, d.UpCount, d.DownCount, d.Count, d.Point,
	).Int()
	if err != nil {
		return fmt.Errorf("increment script failed: %w", err)
	}
	if applied == 0 {
		return domain.ErrVoteeNotFound
	}
	return nil
}

func (s *VoteeStore) VotedBy(ctx context.Context, voteeType string, voterID uuid.UUID, value domain.VoteValue) ([]uuid.UUID, error) {
	var (
		members []string
		err     error
	)
	if value == domain.VoteNone {
		members, err = s.rdb.SUnion(ctx,
			voterIndexKey(voterID, voteeType, domain.VoteUp),
			voterIndexKey(voterID, voteeType, domain.VoteDown),
		).Result()
	} else {
		members, err = s.rdb.SMembers(ctx, voterIndexKey(voterID, voteeType, value)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read voter index: %w", err)
	}

	ids, err := parseIDs(members)
	if err != nil {
		return nil, fmt.Errorf("invalid votee id in voter index: %w", err)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return ids, nil
}

func parseVotee(id uuid.UUID, fields map[string]string) (*domain.Votee, error) {
	v := &domain.Votee{ID: id, Type: fields[fieldType]}

	if raw := fields[fieldCreatedAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at in %s: %w", voteeKey(id), err)
		}
		v.CreatedAt = t
	}

	counters := []struct {
		field string
		dst   *int64
	}{
		{fieldUpCount, &v.Votes.UpCount},
		{fieldDownCount, &v.Votes.DownCount},
		{fieldCount, &v.Votes.Count},
		{fieldPoint, &v.Votes.Point},
	}
	for _, c := range counters {
		n, err := strconv.ParseInt(fields[c.field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s in %s: %w", c.field, voteeKey(id), err)
		}
		*c.dst = n
	}

	for field, raw := range fields {
		name, ok := strings.CutPrefix(field, refFieldPrefix)
		if !ok {
			continue
		}
		ref, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ref %s in %s: %w", name, voteeKey(id), err)
		}
		if v.Refs == nil {
			v.Refs = make(map[string]uuid.UUID)
		}
		v.Refs[name] = ref
	}

	return v, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
