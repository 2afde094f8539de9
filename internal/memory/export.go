package memory

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rulebook-dev/rulebook-memory/internal/model"
	"github.com/rulebook-dev/rulebook-memory/internal/store"
)

// ExportMemories serializes every memory as "json" (indented array) or
// "csv" (RFC4180 quoting, tags joined with ";").
func (m *Manager) ExportMemories(ctx context.Context, format string) (string, error) {
	if format != "json" && format != "csv" {
		return "", fmt.Errorf("unsupported export format %q (use json or csv)", format)
	}

	var memories []model.Memory
	ok, err := m.ready(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		if memories, err = m.store.ListMemories(ctx, store.ListFilter{}); err != nil {
			return "", err
		}
	}

	if format == "json" {
		if len(memories) == 0 {
			return "[]", nil
		}
		b, err := json.MarshalIndent(memories, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write([]string{"id", "type", "title", "content", "project", "tags", "createdAt", "updatedAt", "accessedAt"})
	for _, mem := range memories {
		w.Write([]string{
			mem.ID,
			mem.Type,
			mem.Title,
			mem.Content,
			mem.Project,
			strings.Join(mem.Tags, ";"),
			mem.CreatedAt.Format(time.RFC3339Nano),
			mem.UpdatedAt.Format(time.RFC3339Nano),
			mem.AccessedAt.Format(time.RFC3339Nano),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
