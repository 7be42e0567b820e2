package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/voteable"
	"github.com/shunguan/voteable/internal/voting"
)

// --- Mock implementations ---

type mockEngine struct {
	voteFn func(ctx context.Context, req voting.Request) (voting.Result, error)
}

func (m *mockEngine) Vote(ctx context.Context, req voting.Request) (voting.Result, error) {
	if m.voteFn != nil {
		return m.voteFn(ctx, req)
	}
	return voting.Result{}, errors.New("not implemented")
}

// blockingRepo parks the first GetVotee until its caller's context ends.
type blockingRepo struct {
	*voting.MemoryStore
	once    sync.Once
	entered chan struct{}
}

func (r *blockingRepo) GetVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.MemoryStore.GetVotee(ctx, id)
}

func testRegistry() *voteable.Registry {
	return voteable.NewBuilder().
		Register("comment", "comment", 1, -1).
		Register("comment", "post", 2, -2).
		Build()
}

func newTestService(t *testing.T) (*Service, *voting.MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := voting.NewMemoryStore(clock)
	registry := testRegistry()
	engine := voting.NewEngine(store, registry, clock, nil, voting.DefaultConfig())
	return NewService(store, engine, registry, clock), store, clock
}

// --- Tests ---

func TestCreateVotee(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	postID := uuid.New()

	v, err := svc.CreateVotee(ctx, "comment", map[string]uuid.UUID{"post_id": postID})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, v.ID)
	assert.Equal(t, "comment", v.Type)
	assert.Equal(t, clock.Now().UTC(), v.CreatedAt)

	got, err := svc.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, postID, got.Refs["post_id"])
	assert.Equal(t, domain.VoteAggregate{}, got.Votes)
}

func TestCreateVotee_ParentTypeAllowed(t *testing.T) {
	svc, _, _ := newTestService(t)

	v, err := svc.CreateVotee(context.Background(), "post", nil)
	require.NoError(t, err)
	assert.Equal(t, "post", v.Type)
}

func TestCreateVotee_UnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateVotee(context.Background(), "photo", nil)
	assert.ErrorIs(t, err, domain.ErrNotVoteable)
}

func TestDeleteVotee(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.CreateVotee(ctx, "comment", nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteVotee(ctx, v.ID))

	_, err = svc.GetVotee(ctx, v.ID)
	assert.ErrorIs(t, err, domain.ErrVoteeNotFound)
	assert.ErrorIs(t, svc.DeleteVotee(ctx, v.ID), domain.ErrVoteeNotFound)
}

func TestGetVotee_ReturnsIndependentCopies(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.CreateVotee(ctx, "comment", map[string]uuid.UUID{"post_id": uuid.New()})
	require.NoError(t, err)

	first, err := svc.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	first.Refs["post_id"] = uuid.Nil

	second, err := svc.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, second.Refs["post_id"])
}

func TestGetVotee_ReadersAreIsolated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := voting.NewMemoryStore(clock)
	repo := &blockingRepo{MemoryStore: store, entered: make(chan struct{})}
	registry := testRegistry()
	engine := voting.NewEngine(store, registry, clock, nil, voting.DefaultConfig())
	svc := NewService(repo, engine, registry, clock)
	ctx := context.Background()

	v, err := svc.CreateVotee(ctx, "comment", nil)
	require.NoError(t, err)

	// Reader A is stuck in the store when the vote commits.
	ctxA, cancelA := context.WithCancel(ctx)
	errA := make(chan error, 1)
	go func() {
		_, err := svc.GetVotee(ctxA, v.ID)
		errA <- err
	}()
	<-repo.entered

	voter := uuid.New()
	_, err = svc.Vote(ctx, voting.Request{VoteeID: v.ID, VoterID: voter, Value: domain.VoteUp})
	require.NoError(t, err)

	// Reader B has its own live context and must see the committed vote.
	got, err := svc.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{voter}, got.Votes.UpVoterIDs)

	value, err := svc.VoteValue(ctx, v.ID, voter)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteUp, value)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	got, err = svc.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Votes.Point)
}

func TestVote_AppliesAndReadsBack(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	post, err := svc.CreateVotee(ctx, "post", nil)
	require.NoError(t, err)
	comment, err := svc.CreateVotee(ctx, "comment", map[string]uuid.UUID{"post_id": post.ID})
	require.NoError(t, err)
	voter := uuid.New()

	res, err := svc.Vote(ctx, voting.Request{VoteeID: comment.ID, VoterID: voter, Value: domain.VoteDown})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 1, res.Propagated)

	value, err := svc.VoteValue(ctx, comment.ID, voter)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteDown, value)

	value, err = svc.VoteValue(ctx, comment.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.VoteNone, value)

	got, err := svc.GetVotee(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteAggregate{DownCount: 1, Count: 1, Point: -2}, got.Votes)
}

func TestVote_PropagationErrorIsNotFatal(t *testing.T) {
	pe := &domain.PropagationError{RelatedType: "post", ParentID: uuid.New(), Err: errors.New("boom")}
	engine := &mockEngine{voteFn: func(context.Context, voting.Request) (voting.Result, error) {
		return voting.Result{Applied: true, PropagationErr: errors.Join(pe)}, nil
	}}
	svc := NewService(voting.NewMemoryStore(clockwork.NewFakeClock()), engine, testRegistry(), clockwork.NewFakeClock())

	res, err := svc.Vote(context.Background(), voting.Request{VoteeID: uuid.New(), VoterID: uuid.New(), Value: domain.VoteUp})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.ErrorIs(t, res.PropagationErr, domain.ErrPropagationFailed)
}

func TestVote_ErrorPassedThrough(t *testing.T) {
	engine := &mockEngine{voteFn: func(context.Context, voting.Request) (voting.Result, error) {
		return voting.Result{}, domain.ErrPreconditionFailed
	}}
	svc := NewService(voting.NewMemoryStore(clockwork.NewFakeClock()), engine, testRegistry(), clockwork.NewFakeClock())

	_, err := svc.Vote(context.Background(), voting.Request{VoteeID: uuid.New(), VoterID: uuid.New(), Value: domain.VoteUp})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestVotedBy(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	voter := uuid.New()

	a, err := svc.CreateVotee(ctx, "comment", nil)
	require.NoError(t, err)
	b, err := svc.CreateVotee(ctx, "comment", nil)
	require.NoError(t, err)

	_, err = svc.Vote(ctx, voting.Request{VoteeID: a.ID, VoterID: voter, Value: domain.VoteUp})
	require.NoError(t, err)
	_, err = svc.Vote(ctx, voting.Request{VoteeID: b.ID, VoterID: voter, Value: domain.VoteDown})
	require.NoError(t, err)

	ids, err := svc.VotedBy(ctx, "comment", voter, domain.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, ids)

	ids, err = svc.VotedBy(ctx, "comment", voter, domain.VoteNone)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)
}

func TestVotedBy_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.VotedBy(ctx, "post", uuid.New(), domain.VoteNone)
	assert.ErrorIs(t, err, domain.ErrNotVoteable)

	_, err = svc.VotedBy(ctx, "comment", uuid.Nil, domain.VoteNone)
	assert.ErrorIs(t, err, domain.ErrInvalidVote)
}
