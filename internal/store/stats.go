package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rulebook-dev/rulebook-memory/internal/model"
)

// EvictionCandidates returns up to limit memories eligible for
// eviction: protected types are excluded and the least recently
// accessed come first.
func (s *Store) EvictionCandidates(ctx context.Context, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(model.ProtectedTypes))
	args := make([]interface{}, 0, len(model.ProtectedTypes)+1)
	for t := range model.ProtectedTypes {
		placeholders = append(placeholders, "?")
		args = append(args, t)
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, type, title, content, project, tags, created_at, updated_at, accessed_at
		 FROM memories WHERE type NOT IN (%s)
		 ORDER BY accessed_at ASC, id ASC LIMIT ?`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eviction candidates: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}
