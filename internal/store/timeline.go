package store

import (
	"context"
	"fmt"

	"github.com/rulebook-dev/rulebook-memory/internal/model"
)

// TimelineAround returns the anchor memory plus up to radius entries
// created immediately before and after it, in chronological order. An
// unknown anchor yields an empty result.
func (s *Store) TimelineAround(ctx context.Context, anchorID string, radius int) ([]model.Memory, error) {
	anchor, err := s.GetMemory(ctx, anchorID)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, nil
	}
	if radius < 0 {
		radius = 0
	}

	anchorAt := formatTime(anchor.CreatedAt)

	before, err := s.db.QueryContext(ctx,
		`SELECT id, type, title, content, project, tags, created_at, updated_at, accessed_at
		 FROM memories
		 WHERE (created_at < ? OR (created_at = ? AND id < ?))
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		anchorAt, anchorAt, anchorID, radius)
	if err != nil {
		return nil, fmt.Errorf("timeline before: %w", err)
	}
	defer before.Close()

	beforeEntries, err := collectMemories(before)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(beforeEntries)-1; i < j; i, j = i+1, j-1 {
		beforeEntries[i], beforeEntries[j] = beforeEntries[j], beforeEntries[i]
	}

	after, err := s.db.QueryContext(ctx,
		`SELECT id, type, title, content, project, tags, created_at, updated_at, accessed_at
		 FROM memories
		 WHERE (created_at > ? OR (created_at = ? AND id > ?))
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		anchorAt, anchorAt, anchorID, radius)
	if err != nil {
		return nil, fmt.Errorf("timeline after: %w", err)
	}
	defer after.Close()

	afterEntries, err := collectMemories(after)
	if err != nil {
		return nil, err
	}

	timeline := make([]model.Memory, 0, len(beforeEntries)+1+len(afterEntries))
	timeline = append(timeline, beforeEntries...)
	timeline = append(timeline, *anchor)
	timeline = append(timeline, afterEntries...)
	return timeline, nil
}
