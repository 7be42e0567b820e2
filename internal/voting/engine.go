package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/voteable"
)

// Outcome labels reported to the Observer.
const (
	OutcomeApplied            = "applied"
	OutcomeNotFound           = "not_found"
	OutcomeNotVoteable        = "not_voteable"
	OutcomePreconditionFailed = "precondition_failed"
	OutcomeInvalid            = "invalid"
	OutcomeError              = "error"

	PropagationApplied = "applied"
	PropagationSkipped = "skipped"
	PropagationFailed  = "failed"
	PropagationTimeout = "timeout"
)

// Observer receives vote and propagation outcomes, e.g. for metrics.
type Observer interface {
	ObserveVote(outcome string, kind Kind, elapsed time.Duration)
	ObservePropagation(relatedType, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveVote(string, Kind, time.Duration) {}
func (nopObserver) ObservePropagation(string, string)       {}

type Config struct {
	// VoteTimeout bounds the votee read and the conditional mutation.
	VoteTimeout time.Duration
	// PropagationTimeout bounds each parent increment.
	PropagationTimeout time.Duration
	// PropagationConcurrency caps parallel parent increments per vote.
	PropagationConcurrency int
}

func DefaultConfig() Config {
	return Config{
		VoteTimeout:            2 * time.Second,
		PropagationTimeout:     2 * time.Second,
		PropagationConcurrency: 4,
	}
}

// Result reports a vote. Applied is authoritative: PropagationErr never flips it.
type Result struct {
	Applied    bool       `json:"applied"`
	Transition Transition `json:"transition"`
	Propagated int        `json:"propagated"`
	Skipped    int        `json:"skipped"`
	// PropagationErr joins a *domain.PropagationError per failed parent.
	PropagationErr error `json:"-"`
}

// PropagationErrors unpacks PropagationErr.
func (r Result) PropagationErrors() []*domain.PropagationError {
	if r.PropagationErr == nil {
		return nil
	}

	var errs []error
	if joined, ok := r.PropagationErr.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{r.PropagationErr}
	}

	out := make([]*domain.PropagationError, 0, len(errs))
	for _, err := range errs {
		var pe *domain.PropagationError
		if errors.As(err, &pe) {
			out = append(out, pe)
		}
	}
	return out
}

type Engine struct {
	store    domain.VoteStore
	registry *voteable.Registry
	clock    clockwork.Clock
	observer Observer
	cfg      Config
}

// NewEngine creates the voting engine. observer may be nil.
func NewEngine(store domain.VoteStore, registry *voteable.Registry, clock clockwork.Clock, observer Observer, cfg Config) *Engine {
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.PropagationConcurrency < 1 {
		cfg.PropagationConcurrency = 1
	}
	return &Engine{
		store:    store,
		registry: registry,
		clock:    clock,
		observer: observer,
		cfg:      cfg,
	}
}

// Vote applies req to the votee and propagates the result to its parents.
// Failures before or at the conditional mutation return an error with Applied false:
// ErrVoteeNotFound, ErrNotVoteable, ErrInvalidVote or ErrPreconditionFailed.
// Parent failures after a committed mutation are reported in Result.PropagationErr.
func (e *Engine) Vote(ctx context.Context, req Request) (Result, error) {
	start := e.clock.Now()
	res, err := e.vote(ctx, req)
	e.observer.ObserveVote(outcomeOf(err), res.Transition.Kind, e.clock.Since(start))
	return res, err
}

func (e *Engine) vote(ctx context.Context, req Request) (Result, error) {
	if req.VoteeID == uuid.Nil || req.VoterID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: votee and voter ids are required", domain.ErrInvalidVote)
	}

	votee, err := e.getVotee(ctx, req.VoteeID)
	if err != nil {
		return Result{}, err
	}

	cfg, ok := e.registry.Lookup(votee.Type)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrNotVoteable, votee.Type)
	}

	t, err := Resolve(req, votee.VoteValue(req.VoterID))
	if err != nil {
		return Result{}, err
	}
	res := Result{Transition: t}

	matched, err := e.apply(ctx, t.Update(votee, req.VoterID, cfg.Weights))
	if err != nil {
		return res, err
	}
	if !matched {
		return res, domain.ErrPreconditionFailed
	}
	res.Applied = true

	res.Propagated, res.Skipped, res.PropagationErr = e.propagate(ctx, votee, cfg.Parents, t)
	return res, nil
}

func (e *Engine) getVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.VoteTimeout)
	defer cancel()

	votee, err := e.store.GetVotee(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrVoteeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load votee: %w", err)
	}
	return votee, nil
}

func (e *Engine) apply(ctx context.Context, u domain.ConditionalUpdate) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.VoteTimeout)
	defer cancel()

	matched, err := e.store.ApplyConditional(ctx, u)
	if err != nil {
		return false, fmt.Errorf("failed to apply vote: %w", err)
	}
	return matched, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, domain.ErrVoteeNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrNotVoteable):
		return OutcomeNotVoteable
	case errors.Is(err, domain.ErrPreconditionFailed):
		return OutcomePreconditionFailed
	case errors.Is(err, domain.ErrInvalidVote):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
