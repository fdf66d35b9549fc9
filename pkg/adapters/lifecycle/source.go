// Package lifecycle bridges store change streams to lifecycle sources.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/core"
)

type changeSource struct {
	batches <-chan core.ChangeBatch
	out     chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits one event per core.Change.
// Batches are flattened in delivery order, so the order the store applied
// the changes is preserved. Events closes when the batch stream closes.
func NewSource(batches <-chan core.ChangeBatch) lifecycle.Source {
	return &changeSource{
		batches: batches,
		out:     make(chan lifecycle.Event),
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case batch, ok := <-s.batches:
				if !ok {
					return nil
				}
				for _, change := range batch {
					// core.Change implements lifecycle.Event (has String())
					select {
					case s.out <- change:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	})
	return nil
}
