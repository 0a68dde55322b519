package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/festa/internal/chat"
	"github.com/urfave/cli/v3"
)

// CachePrune removes optimistic read entries older than the window.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	tracker := chat.NewReadTracker(r.store, r.clock, r.config.Chat.OptimisticWindow.Duration, r.logger)
	removed, err := tracker.Prune()
	if err != nil {
		return fmt.Errorf("failed to prune optimistic reads: %w", err)
	}

	r.logger.Info("pruned optimistic reads", "removed", removed)
	return r.writePlain("✓ Removed %d expired entries\n", removed)
}

// CacheFailed lists, or with --clear forgets, companion posts that failed to resolve.
func (r *Runner) CacheFailed(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	failed := chat.NewFailedReferenceCache(r.store, r.clock)
	if cmd.Bool("clear") {
		if err := failed.Clear(); err != nil {
			return fmt.Errorf("failed to clear failed posts: %w", err)
		}
		return r.writePlain("✓ Cleared failed posts\n")
	}

	entries, err := failed.List()
	if err != nil {
		return fmt.Errorf("failed to list failed posts: %w", err)
	}
	if len(entries) == 0 {
		return r.writePlain("No failed posts\n")
	}

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	r.writePlainHeader(fmt.Sprintf("Failed posts (%d)", len(ids)))
	for _, id := range ids {
		r.writePlain("%8d  since %s\n", id, entries[id].Local().Format(time.DateTime))
	}
	return nil
}
