// Package memory is the orchestration layer of the memory engine.
//
// Callers talk only to the Manager; it fans out to the SQLite store for
// persistence and lexical search, to the HNSW index for vector search,
// and to the cache controller for size-bounded eviction. Construction
// touches no disk: the backing file appears on the first call that
// needs it, and the index is rebuilt from stored rows since the
// vectorizer is deterministic.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rulebook-dev/rulebook-memory/internal/cache"
	"github.com/rulebook-dev/rulebook-memory/internal/index"
	"github.com/rulebook-dev/rulebook-memory/internal/model"
	"github.com/rulebook-dev/rulebook-memory/internal/store"
	"github.com/rulebook-dev/rulebook-memory/internal/vector"
)

// DefaultDBPath is the backing file location relative to the project
// root.
var DefaultDBPath = filepath.Join(".rulebook-memory", "memory.db")

// DefaultAlpha weights BM25 against cosine similarity in hybrid search.
const DefaultAlpha = 0.5

// defaultSearchLimit caps SearchMemories results when no limit is set.
const defaultSearchLimit = 10

// ErrDisabled marks calls against a disabled subsystem. The public
// surface translates it into benign no-op defaults, so callers never
// need to branch on it.
var ErrDisabled = errors.New("memory subsystem disabled")

// Config configures a Manager.
type Config struct {
	Enabled      bool
	DBPath       string  // relative paths resolve against the project root
	MaxSizeBytes int64   // eviction budget, default cache.DefaultMaxBytes
	Alpha        float64 // hybrid search weight, default DefaultAlpha
}

// Manager orchestrates store, index, and eviction for one project.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	root  string
	store *store.Store
	index *index.Index
	cache *cache.Controller
	open  bool
}

// New creates a Manager. No file or background work exists until the
// first operation.
func New(root string, cfg Config) *Manager {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultAlpha
	}
	return &Manager{cfg: cfg, root: root}
}

// dbPath resolves the configured path against the project root.
func (m *Manager) dbPath() string {
	p := m.cfg.DBPath
	if p == "" {
		p = DefaultDBPath
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.root, p)
	}
	return p
}

// ensure opens the store and rebuilds the index on first use.
func (m *Manager) ensure(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return nil
	}

	s, err := store.Open(m.dbPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	idx := index.New(index.DefaultConfig(vector.DefaultDims))
	memories, err := s.ListMemories(ctx, store.ListFilter{})
	if err != nil {
		s.Close()
		return fmt.Errorf("rebuild index: %w", err)
	}
	for _, mem := range memories {
		if err := idx.Add(mem.ID, vector.Vectorize(mem.Title+" "+mem.Content)); err != nil {
			s.Close()
			return fmt.Errorf("rebuild index: %w", err)
		}
	}

	m.store = s
	m.index = idx
	m.cache = cache.New(s, idx, m.cfg.MaxSizeBytes)
	m.open = true
	return nil
}

// ready is the read-path variant of ensure: when nothing has been
// persisted yet it reports false instead of creating the backing file.
func (m *Manager) ready(ctx context.Context) (bool, error) {
	if !m.cfg.Enabled {
		return false, nil
	}
	m.mu.Lock()
	isOpen := m.open
	m.mu.Unlock()
	if !isOpen {
		if _, err := os.Stat(m.dbPath()); os.IsNotExist(err) {
			return false, nil
		}
	}
	if err := m.ensure(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SaveInput is the input to SaveMemory. A non-empty ID replaces that
// memory in place; otherwise a fresh id is assigned.
type SaveInput struct {
	ID      string   `json:"id,omitempty"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Project string   `json:"project,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// SaveMemory persists a memory: privacy markers in the content are
// redacted, timestamps assigned, and the vector inserted into the
// index. When a session is active its tool-call counter is bumped.
func (m *Manager) SaveMemory(ctx context.Context, in SaveInput) (*model.Memory, error) {
	if err := m.ensure(ctx); err != nil {
		if errors.Is(err, ErrDisabled) {
			return nil, nil
		}
		return nil, err
	}

	if !model.ValidTypes[in.Type] {
		return nil, fmt.Errorf("invalid memory type %q", in.Type)
	}

	now := time.Now().UTC()
	mem := &model.Memory{
		ID:         in.ID,
		Type:       in.Type,
		Title:      in.Title,
		Content:    Redact(in.Content),
		Project:    in.Project,
		Tags:       in.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	}

	if mem.ID == "" {
		mem.ID = m.store.NewID()
	} else if prev, err := m.store.GetMemory(ctx, mem.ID); err != nil {
		return nil, err
	} else if prev != nil {
		mem.CreatedAt = prev.CreatedAt
		mem.AccessedAt = prev.AccessedAt
	}

	if err := m.store.SaveMemory(ctx, mem); err != nil {
		return nil, err
	}
	if err := m.index.Add(mem.ID, vector.Vectorize(mem.Title+" "+mem.Content)); err != nil {
		return nil, err
	}

	if sess, err := m.store.ActiveSession(ctx); err == nil && sess != nil {
		m.store.IncrementToolCalls(ctx, sess.ID)
	}
	return mem, nil
}

// GetMemory loads a memory and records the access. Missing ids return
// nil without error.
func (m *Manager) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return nil, err
	}

	mem, err := m.store.GetMemory(ctx, id)
	if err != nil || mem == nil {
		return nil, err
	}
	if err := m.store.TouchAccessed(ctx, id); err != nil {
		return nil, err
	}
	return mem, nil
}

// DeleteMemory removes a memory and purges its vector from the index.
func (m *Manager) DeleteMemory(ctx context.Context, id string) error {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return err
	}
	if err := m.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	m.index.Remove(id)
	return nil
}

// ListMemories returns stored memories, newest first.
func (m *Manager) ListMemories(ctx context.Context, f store.ListFilter) ([]model.Memory, error) {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return m.store.ListMemories(ctx, f)
}

// Timeline returns the anchor memory with up to radius neighbors on
// each side in creation order.
func (m *Manager) Timeline(ctx context.Context, anchorID string, radius int) ([]model.Memory, error) {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return m.store.TimelineAround(ctx, anchorID, radius)
}

// StartSession opens a new active session for project.
func (m *Manager) StartSession(ctx context.Context, project string) (*model.Session, error) {
	if err := m.ensure(ctx); err != nil {
		if errors.Is(err, ErrDisabled) {
			return nil, nil
		}
		return nil, err
	}
	return m.store.CreateSession(ctx, project)
}

// EndSession completes a session with its summary.
func (m *Manager) EndSession(ctx context.Context, id, summary string) error {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return err
	}
	return m.store.EndSession(ctx, id, summary)
}

// ActiveSession returns the current active session, nil when none.
func (m *Manager) ActiveSession(ctx context.Context) (*model.Session, error) {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return m.store.ActiveSession(ctx)
}

// Stats reports storage usage.
type Stats struct {
	MemoryCount  int     `json:"memory_count"`
	SessionCount int     `json:"session_count"`
	DBSizeBytes  int64   `json:"db_size_bytes"`
	MaxSizeBytes int64   `json:"max_size_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// Stats returns current counts and usage against the byte budget.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	maxBytes := m.cfg.MaxSizeBytes
	if maxBytes <= 0 {
		maxBytes = cache.DefaultMaxBytes
	}
	st := &Stats{MaxSizeBytes: maxBytes}

	ok, err := m.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return st, nil
	}

	if st.MemoryCount, err = m.store.MemoryCount(ctx); err != nil {
		return nil, err
	}
	if st.SessionCount, err = m.store.SessionCount(ctx); err != nil {
		return nil, err
	}
	if st.DBSizeBytes, err = m.cache.CurrentSize(); err != nil {
		return nil, err
	}
	st.UsagePercent = float64(st.DBSizeBytes) / float64(maxBytes) * 100
	return st, nil
}

// Cleanup runs eviction: force=false only evicts when over budget,
// force=true removes a batch of the oldest-accessed unprotected
// memories regardless of usage.
func (m *Manager) Cleanup(ctx context.Context, force bool) (cache.Result, error) {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return cache.Result{}, err
	}
	if force {
		return m.cache.ForceEvict(ctx)
	}
	return m.cache.CheckAndEvict(ctx)
}

// SearchQuery is the input to SearchMemories.
type SearchQuery struct {
	Query string
	Type  string
	Limit int
}

// SearchMemories fuses BM25 lexical search with k-NN vector search:
// combined = alpha*normalize(bm25) + (1-alpha)*cosine. Ties break
// toward the most recently updated memory.
func (m *Manager) SearchMemories(ctx context.Context, q SearchQuery) ([]model.Memory, error) {
	ok, err := m.ready(ctx)
	if err != nil || !ok {
		return nil, err
	}
	if len(vector.Tokenize(q.Query)) == 0 {
		return nil, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	lexical, err := m.store.SearchBM25(ctx, q.Query)
	if err != nil {
		return nil, err
	}
	semantic, err := m.index.Search(vector.Vectorize(q.Query), limit*4)
	if err != nil {
		return nil, err
	}

	type fused struct {
		mem      *model.Memory
		bm25     float64
		cosine   float64
		combined float64
	}
	byID := make(map[string]*fused, len(lexical)+len(semantic))

	var maxBM25 float64
	for _, r := range lexical {
		if r.Score > maxBM25 {
			maxBM25 = r.Score
		}
	}
	for i := range lexical {
		mem := lexical[i].Memory
		byID[mem.ID] = &fused{mem: &mem, bm25: lexical[i].Score}
	}
	for _, r := range semantic {
		f, seen := byID[r.ID]
		if !seen {
			mem, err := m.store.GetMemory(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			if mem == nil {
				continue // tombstone raced a delete
			}
			f = &fused{mem: mem}
			byID[r.ID] = f
		}
		f.cosine = r.Score
	}

	alpha := m.cfg.Alpha
	ranked := make([]*fused, 0, len(byID))
	for _, f := range byID {
		if q.Type != "" && f.mem.Type != q.Type {
			continue
		}
		lex := 0.0
		if maxBM25 > 0 {
			lex = f.bm25 / maxBM25
		}
		f.combined = alpha*lex + (1-alpha)*f.cosine
		ranked = append(ranked, f)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].combined != ranked[j].combined {
			return ranked[i].combined > ranked[j].combined
		}
		return ranked[i].mem.UpdatedAt.After(ranked[j].mem.UpdatedAt)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]model.Memory, len(ranked))
	for i, f := range ranked {
		out[i] = *f.mem
	}
	return out, nil
}

// Close flushes the store and releases the index. Safe to call more
// than once and on a manager that never initialized.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil
	}
	m.open = false
	m.index = nil
	m.cache = nil
	err := m.store.Close()
	m.store = nil
	return err
}
