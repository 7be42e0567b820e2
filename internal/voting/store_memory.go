package voting

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/shunguan/voteable/internal/domain"
)

// MemoryStore is an in-process store with the same conditional-update semantics
// as the Redis and PostgreSQL stores. Used for tests and single-instance mode.
type MemoryStore struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	votees map[uuid.UUID]*domain.Votee
}

var _ domain.Store = (*MemoryStore)(nil)

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:  clock,
		votees: make(map[uuid.UUID]*domain.Votee),
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) CreateVotee(_ context.Context, v *domain.Votee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.votees[v.ID]; exists {
		return domain.ErrVoteeExists
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.clock.Now()
	}
	v.Votes = domain.VoteAggregate{}
	s.votees[v.ID] = cloneVotee(v)
	return nil
}

func (s *MemoryStore) GetVotee(_ context.Context, id uuid.UUID) (*domain.Votee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votees[id]
	if !ok {
		return nil, domain.ErrVoteeNotFound
	}
	return cloneVotee(v), nil
}

func (s *MemoryStore) DeleteVotee(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.votees[id]; !ok {
		return domain.ErrVoteeNotFound
	}
	delete(s.votees, id)
	return nil
}

func (s *MemoryStore) ApplyConditional(_ context.Context, u domain.ConditionalUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votees[u.VoteeID]
	if !ok || v.Type != u.VoteeType {
		return false, nil
	}

	current := v.Votes.ValueOf(u.VoterID)
	if u.Require.MemberOf != domain.VoteNone && current != u.Require.MemberOf {
		return false, nil
	}
	if current != domain.VoteNone && slices.Contains(u.Require.NotMemberOf, current) {
		return false, nil
	}

	if u.Pull != domain.VoteNone {
		setVoters(&v.Votes, u.Pull, slices.DeleteFunc(slices.Clone(v.Votes.VoterIDs(u.Pull)), func(id uuid.UUID) bool {
			return id == u.VoterID
		}))
	}
	if u.Push != domain.VoteNone {
		setVoters(&v.Votes, u.Push, append(slices.Clone(v.Votes.VoterIDs(u.Push)), u.VoterID))
	}
	v.Votes.Apply(u.Inc)
	return true, nil
}

func (s *MemoryStore) Increment(_ context.Context, parent domain.ParentRef, d domain.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votees[parent.ID]
	if !ok || v.Type != parent.Type {
		return domain.ErrVoteeNotFound
	}
	v.Votes.Apply(d)
	return nil
}

func (s *MemoryStore) VotedBy(_ context.Context, voteeType string, voterID uuid.UUID, value domain.VoteValue) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for _, id := range slices.SortedFunc(maps.Keys(s.votees), compareUUID) {
		v := s.votees[id]
		if v.Type != voteeType {
			continue
		}
		current := v.Votes.ValueOf(voterID)
		if current == domain.VoteNone || (value != domain.VoteNone && current != value) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// setVoters stores an emptied set as nil so it reads the same as a fresh votee.
func setVoters(a *domain.VoteAggregate, v domain.VoteValue, ids []uuid.UUID) {
	if len(ids) == 0 {
		ids = nil
	}
	switch v {
	case domain.VoteUp:
		a.UpVoterIDs = ids
	case domain.VoteDown:
		a.DownVoterIDs = ids
	}
}

func cloneVotee(v *domain.Votee) *domain.Votee {
	c := *v
	c.Refs = maps.Clone(v.Refs)
	c.Votes.UpVoterIDs = slices.Clone(v.Votes.UpVoterIDs)
	c.Votes.DownVoterIDs = slices.Clone(v.Votes.DownVoterIDs)
	return &c
}

func compareUUID(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
