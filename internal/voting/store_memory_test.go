package voting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunguan/voteable/internal/domain"
)

func TestMemoryStore_CreateVotee(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clock)
	ctx := context.Background()

	v := &domain.Votee{
		ID:    uuid.New(),
		Type:  "comment",
		Votes: domain.VoteAggregate{Point: 99},
	}
	require.NoError(t, store.CreateVotee(ctx, v))

	got, err := store.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), got.CreatedAt)
	assert.Equal(t, domain.VoteAggregate{}, got.Votes, "aggregate starts empty")

	err = store.CreateVotee(ctx, &domain.Votee{ID: v.ID, Type: "comment"})
	assert.ErrorIs(t, err, domain.ErrVoteeExists)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()
	parent := uuid.New()
	v := &domain.Votee{ID: uuid.New(), Type: "comment", Refs: map[string]uuid.UUID{"post_id": parent}}
	require.NoError(t, store.CreateVotee(ctx, v))

	got, err := store.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	got.Refs["post_id"] = uuid.Nil
	got.Votes.Point = 10

	again, err := store.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, parent, again.Refs["post_id"])
	assert.Equal(t, int64(0), again.Votes.Point)
}

func TestMemoryStore_DeleteVotee(t *testing.T) {
	store := NewMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()
	v := &domain.Votee{ID: uuid.New(), Type: "comment"}
	require.NoError(t, store.CreateVotee(ctx, v))

	require.NoError(t, store.DeleteVotee(ctx, v.ID))
	_, err := store.GetVotee(ctx, v.ID)
	assert.ErrorIs(t, err, domain.ErrVoteeNotFound)
	assert.ErrorIs(t, store.DeleteVotee(ctx, v.ID), domain.ErrVoteeNotFound)
}

func TestMemoryStore_ApplyConditional(t *testing.T) {
	store := NewMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()
	v := &domain.Votee{ID: uuid.New(), Type: "comment"}
	require.NoError(t, store.CreateVotee(ctx, v))
	voter := uuid.New()
	w := domain.Weights{Up: 2, Down: -1}

	newUp := Transition{Kind: KindNew, Value: domain.VoteUp}.Update(v, voter, w)

	wrongType := newUp
	wrongType.VoteeType = "post"
	matched, err := store.ApplyConditional(ctx, wrongType)
	require.NoError(t, err)
	assert.False(t, matched, "type filter must match")

	missing := newUp
	missing.VoteeID = uuid.New()
	matched, err = store.ApplyConditional(ctx, missing)
	require.NoError(t, err)
	assert.False(t, matched)

	matched, err = store.ApplyConditional(ctx, newUp)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = store.ApplyConditional(ctx, newUp)
	require.NoError(t, err)
	assert.False(t, matched, "second new vote must not match")

	unvoteDown := Transition{Kind: KindUnvote, Value: domain.VoteDown}.Update(v, voter, w)
	matched, err = store.ApplyConditional(ctx, unvoteDown)
	require.NoError(t, err)
	assert.False(t, matched, "voter is not in the down set")

	revote := Transition{Kind: KindRevote, Value: domain.VoteDown}.Update(v, voter, w)
	matched, err = store.ApplyConditional(ctx, revote)
	require.NoError(t, err)
	assert.True(t, matched)

	got, err := store.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, got.Votes.Validate())
	assert.Equal(t, []uuid.UUID{voter}, got.Votes.DownVoterIDs)
	assert.Nil(t, got.Votes.UpVoterIDs, "emptied set reads as nil")
	assert.Equal(t, int64(-1), got.Votes.Point)

	unvote := Transition{Kind: KindUnvote, Value: domain.VoteDown}.Update(got, voter, w)
	matched, err = store.ApplyConditional(ctx, unvote)
	require.NoError(t, err)
	assert.True(t, matched)

	got, err = store.GetVotee(ctx, v.ID)
	require.NoError(t, err)
	fresh := &domain.Votee{ID: uuid.New(), Type: "comment"}
	require.NoError(t, store.CreateVotee(ctx, fresh))
	untouched, err := store.GetVotee(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, untouched.Votes, got.Votes)
}

func TestMemoryStore_Increment(t *testing.T) {
	store := NewMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()
	post := &domain.Votee{ID: uuid.New(), Type: "post"}
	require.NoError(t, store.CreateVotee(ctx, post))

	d := domain.Delta{UpCount: 1, Count: 1, Point: 5}
	require.NoError(t, store.Increment(ctx, domain.ParentRef{Type: "post", ID: post.ID}, d))

	got, err := store.GetVotee(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteAggregate{UpCount: 1, Count: 1, Point: 5}, got.Votes)

	err = store.Increment(ctx, domain.ParentRef{Type: "author", ID: post.ID}, d)
	assert.ErrorIs(t, err, domain.ErrVoteeNotFound)
	err = store.Increment(ctx, domain.ParentRef{Type: "post", ID: uuid.New()}, d)
	assert.ErrorIs(t, err, domain.ErrVoteeNotFound)
}

func TestMemoryStore_VotedBy(t *testing.T) {
	store := NewMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()
	voter := uuid.New()
	w := domain.Weights{Up: 1, Down: -1}

	upVoted := &domain.Votee{ID: uuid.New(), Type: "comment"}
	downVoted := &domain.Votee{ID: uuid.New(), Type: "comment"}
	untouched := &domain.Votee{ID: uuid.New(), Type: "comment"}
	otherType := &domain.Votee{ID: uuid.New(), Type: "post"}
	for _, v := range []*domain.Votee{upVoted, downVoted, untouched, otherType} {
		require.NoError(t, store.CreateVotee(ctx, v))
	}

	apply := func(v *domain.Votee, value domain.VoteValue) {
		matched, err := store.ApplyConditional(ctx, Transition{Kind: KindNew, Value: value}.Update(v, voter, w))
		require.NoError(t, err)
		require.True(t, matched)
	}
	apply(upVoted, domain.VoteUp)
	apply(downVoted, domain.VoteDown)
	apply(otherType, domain.VoteUp)

	ids, err := store.VotedBy(ctx, "comment", voter, domain.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{upVoted.ID}, ids)

	ids, err = store.VotedBy(ctx, "comment", voter, domain.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{downVoted.ID}, ids)

	ids, err = store.VotedBy(ctx, "comment", voter, domain.VoteNone)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{upVoted.ID, downVoted.ID}, ids)

	ids, err = store.VotedBy(ctx, "comment", uuid.New(), domain.VoteNone)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
