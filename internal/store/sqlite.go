// Package store provides durable SQLite persistence for memories and
// sessions, plus the lexical search and eviction-candidate queries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rulebook-dev/rulebook-memory/internal/model"
)

// Store persists memories and sessions in a single SQLite file.
type Store struct {
	db      *sql.DB
	path    string
	entropy *rand.Rand
}

// Open opens or creates the backing database at path and applies the
// schema. The parent directory is created if needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// auto_vacuum makes row deletion shrink the file, which the
	// eviction controller relies on to get back under budget.
	db, err := sql.Open("sqlite", path+"?_pragma=auto_vacuum(full)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewID returns a fresh ULID.
func (s *Store) NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		type        TEXT NOT NULL,
		title       TEXT NOT NULL,
		content     TEXT NOT NULL,
		project     TEXT,
		tags        TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		accessed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_accessed ON memories(accessed_at);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);

	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		project    TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'active',
		started_at TEXT NOT NULL,
		ended_at   TEXT,
		summary    TEXT,
		tool_calls INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveMemory upserts by id. Re-saving an existing id replaces the row
// in place without growing the count.
func (s *Store) SaveMemory(ctx context.Context, m *model.Memory) error {
	var tagsJSON *string
	if len(m.Tags) > 0 {
		b, _ := json.Marshal(m.Tags)
		js := string(b)
		tagsJSON = &js
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, type, title, content, project, tags, created_at, updated_at, accessed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			content = excluded.content,
			project = excluded.project,
			tags = excluded.tags,
			updated_at = excluded.updated_at,
			accessed_at = excluded.accessed_at`,
		m.ID, m.Type, m.Title, m.Content, nullable(m.Project), tagsJSON,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt), formatTime(m.AccessedAt))
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

// GetMemory returns the memory for id, or nil without error when the
// id is unknown.
func (s *Store) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, title, content, project, tags, created_at, updated_at, accessed_at
		 FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

// DeleteMemory removes the row for id. Deleting an unknown id is a
// no-op.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// ListFilter narrows ListMemories.
type ListFilter struct {
	Type  string
	Limit int
}

// ListMemories returns memories ordered by created_at descending.
func (s *Store) ListMemories(ctx context.Context, f ListFilter) ([]model.Memory, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}

	var rows *sql.Rows
	var err error
	if f.Type != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, type, title, content, project, tags, created_at, updated_at, accessed_at
			 FROM memories WHERE type = ? ORDER BY created_at DESC, id DESC LIMIT ?`, f.Type, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, type, title, content, project, tags, created_at, updated_at, accessed_at
			 FROM memories ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// TouchAccessed bumps accessed_at to now, strictly increasing it even
// when called twice within clock resolution.
func (s *Store) TouchAccessed(ctx context.Context, id string) error {
	var cur string
	err := s.db.QueryRowContext(ctx, `SELECT accessed_at FROM memories WHERE id = ?`, id).Scan(&cur)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("touch accessed: %w", err)
	}

	now := time.Now().UTC()
	if prev, perr := time.Parse(time.RFC3339Nano, cur); perr == nil && !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE memories SET accessed_at = ? WHERE id = ?`, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("touch accessed: %w", err)
	}
	return nil
}

// MemoryCount returns the number of stored memories.
func (s *Store) MemoryCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// SizeBytes reports the on-disk footprint of the database, including
// WAL side files.
func (s *Store) SizeBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// Checkpoint flushes the WAL into the main file and truncates it, so
// SizeBytes reflects deletions immediately.
func (s *Store) Checkpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// Close checkpoints the WAL and closes the database. Reopening the same
// path reconstructs identical data.
func (s *Store) Close() error {
	s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var project, tagsJSON sql.NullString
	var createdAt, updatedAt, accessedAt string

	err := row.Scan(&m.ID, &m.Type, &m.Title, &m.Content, &project, &tagsJSON,
		&createdAt, &updatedAt, &accessedAt)
	if err != nil {
		return m, err
	}

	if project.Valid {
		m.Project = project.String
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	m.AccessedAt, _ = time.Parse(time.RFC3339Nano, accessedAt)
	return m, nil
}

func collectMemories(rows *sql.Rows) ([]model.Memory, error) {
	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// timeLayout pads the fraction to fixed width so stored strings sort
// lexicographically in the same order as the times they encode.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime stores nanosecond precision so ordering survives rows
// written within the same second.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
