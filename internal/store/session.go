package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rulebook-dev/rulebook-memory/internal/model"
)

// CreateSession starts a new active session for project.
func (s *Store) CreateSession(ctx context.Context, project string) (*model.Session, error) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID:        s.NewID(),
		Project:   project,
		Status:    model.SessionActive,
		StartedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project, status, started_at, tool_calls) VALUES (?, ?, ?, ?, 0)`,
		sess.ID, sess.Project, sess.Status, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// ActiveSession returns the most recently started session that is still
// active, or nil when none is.
func (s *Store) ActiveSession(ctx context.Context) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project, status, started_at, ended_at, summary, tool_calls
		 FROM sessions WHERE status = ?
		 ORDER BY started_at DESC, id DESC LIMIT 1`, model.SessionActive)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return &sess, nil
}

// EndSession marks the session completed, records its summary, and sets
// ended_at. Ending an already completed session is a no-op.
func (s *Store) EndSession(ctx context.Context, id, summary string) error {
	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ?, summary = ?
		 WHERE id = ? AND status = ?`,
		model.SessionCompleted, now, nullable(summary), id, model.SessionActive)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// IncrementToolCalls bumps the session's tool-call counter.
func (s *Store) IncrementToolCalls(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET tool_calls = tool_calls + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment tool calls: %w", err)
	}
	return nil
}

// SessionCount returns the number of sessions ever started.
func (s *Store) SessionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

func scanSession(row scanner) (model.Session, error) {
	var sess model.Session
	var startedAt string
	var endedAt, summary sql.NullString

	err := row.Scan(&sess.ID, &sess.Project, &sess.Status, &startedAt,
		&endedAt, &summary, &sess.ToolCalls)
	if err != nil {
		return sess, err
	}

	sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, endedAt.String)
		sess.EndedAt = &t
	}
	if summary.Valid {
		sess.Summary = summary.String
	}
	return sess, nil
}
