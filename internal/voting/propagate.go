package voting

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/voteable"
)

// propagate applies t to every parent of votee that this instance references.
// The votee mutation has already committed, so increments are detached from the
// caller's cancellation and each runs under its own deadline. Failures are collected,
// never rolled back.
func (e *Engine) propagate(ctx context.Context, votee *domain.Votee, parents []voteable.Relation, t Transition) (propagated, skipped int, err error) {
	if len(parents) == 0 {
		return 0, 0, nil
	}

	ctx = context.WithoutCancel(ctx)
	errs := make([]error, len(parents))
	applied := make([]bool, len(parents))

	var g errgroup.Group
	g.SetLimit(e.cfg.PropagationConcurrency)

	for i, rel := range parents {
		if rel.ForeignKey == nil {
			skipped++
			e.observer.ObservePropagation(rel.RelatedType, PropagationSkipped)
			continue
		}
		parentID, ok := rel.ForeignKey(votee)
		if !ok {
			skipped++
			e.observer.ObservePropagation(rel.RelatedType, PropagationSkipped)
			continue
		}

		parent := domain.ParentRef{Type: rel.RelatedType, ID: parentID}
		delta := t.Effect(rel.Weights, rel.UpdateCounters)

		g.Go(func() error {
			if err := e.increment(ctx, parent, delta); err != nil {
				pe := &domain.PropagationError{RelatedType: parent.Type, ParentID: parent.ID, Err: err}
				errs[i] = pe
				if pe.Timeout() {
					e.observer.ObservePropagation(parent.Type, PropagationTimeout)
				} else {
					e.observer.ObservePropagation(parent.Type, PropagationFailed)
				}
				return nil
			}
			applied[i] = true
			e.observer.ObservePropagation(parent.Type, PropagationApplied)
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range applied {
		if ok {
			propagated++
		}
	}
	return propagated, skipped, errors.Join(errs...)
}

func (e *Engine) increment(ctx context.Context, parent domain.ParentRef, d domain.Delta) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PropagationTimeout)
	defer cancel()

	if err := e.store.Increment(ctx, parent, d); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}
