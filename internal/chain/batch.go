package chain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Batch runs action for every item with at most limit actions in flight and returns once
// all of them have finished. The first failure cancels the context handed to the
// remaining actions and is returned. A non-positive limit leaves concurrency unbounded.
func Batch[Item any](executionContext context.Context, limit int, items []Item, action func(context.Context, Item) error) error {
	group, groupContext := errgroup.WithContext(executionContext)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, item := range items {
		group.Go(func() error {
			return action(groupContext, item)
		})
	}
	return group.Wait()
}
