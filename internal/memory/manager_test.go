package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rulebook-dev/rulebook-memory/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(t.TempDir(), Config{Enabled: true})
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNew_TouchesNoDisk(t *testing.T) {
	root := t.TempDir()
	m := New(root, Config{Enabled: true})
	defer m.Close()

	if _, err := os.Stat(filepath.Join(root, ".rulebook-memory")); !os.IsNotExist(err) {
		t.Fatal("constructing a manager must not create the db directory")
	}

	// Reads before any write stay off disk too.
	ctx := context.Background()
	if mem, err := m.GetMemory(ctx, "x"); err != nil || mem != nil {
		t.Fatalf("expected nil, nil, got %v, %v", mem, err)
	}
	if _, err := os.Stat(filepath.Join(root, ".rulebook-memory")); !os.IsNotExist(err) {
		t.Fatal("read on empty manager created the db directory")
	}

	// First save creates the file at the default path.
	if _, err := m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "t", Content: "c"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".rulebook-memory", "memory.db")); err != nil {
		t.Fatalf("expected db file after first write: %v", err)
	}
}

func TestSaveAndGet_Scenario(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	saved, err := m.SaveMemory(ctx, SaveInput{
		Type:    "bugfix",
		Title:   "Auth bug fix",
		Content: "Fixed login failure",
		Tags:    []string{"auth", "bug"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" {
		t.Fatal("expected assigned id")
	}

	got, err := m.GetMemory(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected memory")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "auth" || got.Tags[1] != "bug" {
		t.Errorf("tags mismatch: %v", got.Tags)
	}
}

func TestSaveMemory_InvalidType(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.SaveMemory(ctx, SaveInput{Type: "gossip", Title: "t", Content: "c"}); err == nil {
		t.Fatal("expected error for invalid type")
	}
}

func TestSaveMemory_RedactsPrivacyMarkers(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	saved, err := m.SaveMemory(ctx, SaveInput{
		Type:    "observation",
		Title:   "api keys",
		Content: "key is <private>sk-12345</private> here and <private>sk-678</private> too",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(saved.Content, "sk-12345") || strings.Contains(saved.Content, "sk-678") {
		t.Fatalf("secret leaked into returned memory: %q", saved.Content)
	}
	if strings.Count(saved.Content, Redacted) != 2 {
		t.Errorf("expected two redaction tokens, got %q", saved.Content)
	}

	got, _ := m.GetMemory(ctx, saved.ID)
	if strings.Contains(got.Content, "sk-12345") {
		t.Fatal("secret persisted to store")
	}
}

func TestSaveMemory_UpdateInPlace(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	first, _ := m.SaveMemory(ctx, SaveInput{Type: "learning", Title: "t", Content: "v1"})
	second, err := m.SaveMemory(ctx, SaveInput{ID: first.ID, Type: "learning", Title: "t", Content: "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("update must preserve created_at")
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Error("update must not move updated_at backwards")
	}

	st, _ := m.Stats(ctx)
	if st.MemoryCount != 1 {
		t.Errorf("expected count 1 after in-place update, got %d", st.MemoryCount)
	}
}

func TestDeleteMemory_PurgesVector(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	saved, _ := m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "websocket reconnect", Content: "backoff policy for websocket reconnects"})
	if err := m.DeleteMemory(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}

	results, err := m.SearchMemories(ctx, SearchQuery{Query: "websocket reconnect backoff"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == saved.ID {
			t.Error("deleted memory still returned from search")
		}
	}
}

func TestSearchMemories_Hybrid(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	auth, _ := m.SaveMemory(ctx, SaveInput{Type: "bugfix", Title: "Auth bug fix", Content: "Fixed login failure in the token refresh path"})
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "DB pool", Content: "Connection pool exhausted under load"})
	m.SaveMemory(ctx, SaveInput{Type: "feature", Title: "Progress bars", Content: "Terminal rendering of progress"})

	results, err := m.SearchMemories(ctx, SearchQuery{Query: "login failure token"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ID != auth.ID {
		t.Errorf("expected auth bugfix ranked first, got %q", results[0].Title)
	}
}

func TestSearchMemories_TypeFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	m.SaveMemory(ctx, SaveInput{Type: "bugfix", Title: "cache bug", Content: "cache invalidation bug"})
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "cache note", Content: "cache hit rate observation"})
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "cache sizing", Content: "cache sizing observation"})

	only, err := m.SearchMemories(ctx, SearchQuery{Query: "cache", Type: "observation"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range only {
		if r.Type != "observation" {
			t.Errorf("type filter leaked %q", r.Type)
		}
	}

	limited, _ := m.SearchMemories(ctx, SearchQuery{Query: "cache", Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1 result with limit, got %d", len(limited))
	}
}

func TestSearchMemories_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "t", Content: "c"})

	for _, q := range []string{"", "the a an is are"} {
		results, err := m.SearchMemories(ctx, SearchQuery{Query: q})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Errorf("query %q: expected empty, got %d", q, len(results))
		}
	}
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	sess, err := m.StartSession(ctx, "proj")
	if err != nil {
		t.Fatal(err)
	}

	// Saves while a session is active count against it.
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "t", Content: "c"})
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "t2", Content: "c2"})

	active, _ := m.ActiveSession(ctx)
	if active == nil || active.ID != sess.ID {
		t.Fatal("expected started session to be active")
	}
	if active.ToolCalls != 2 {
		t.Errorf("expected 2 tool calls recorded, got %d", active.ToolCalls)
	}

	if err := m.EndSession(ctx, sess.ID, "wrapped up"); err != nil {
		t.Fatal(err)
	}
	ended, _ := m.ActiveSession(ctx)
	if ended != nil {
		t.Error("expected no active session after EndSession")
	}

	st, _ := m.Stats(ctx)
	if st.SessionCount != 1 {
		t.Errorf("sessions must be retained, got count %d", st.SessionCount)
	}
}

func TestCleanup_ForceEvictScenario(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m := New(root, Config{Enabled: true, MaxSizeBytes: 1})
	defer m.Close()

	decision, _ := m.SaveMemory(ctx, SaveInput{Type: "decision", Title: "keep sqlite", Content: "single file storage"})
	for i := 0; i < 4; i++ {
		m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "note", Content: "observation content"})
	}

	res, err := m.Cleanup(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.EvictedCount < 1 {
		t.Error("expected at least one eviction")
	}

	if got, _ := m.GetMemory(ctx, decision.ID); got == nil {
		t.Fatal("decision memory evicted")
	}

	st, _ := m.Stats(ctx)
	if st.MemoryCount >= 5 {
		t.Errorf("expected observations removed, count still %d", st.MemoryCount)
	}
}

func TestCleanup_NoopUnderBudget(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "t", Content: "c"})

	res, err := m.Cleanup(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.EvictedCount != 0 {
		t.Errorf("expected no evictions under budget, got %d", res.EvictedCount)
	}
}

func TestExportMemories(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	m.SaveMemory(ctx, SaveInput{
		Type:    "decision",
		Title:   `Quote "this", please`,
		Content: "line one\nline two, with comma",
		Tags:    []string{"a", "b"},
	})

	jsonOut, err := m.ExportMemories(ctx, "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(jsonOut, `"decision"`) {
		t.Errorf("json export missing data: %s", jsonOut)
	}

	csvOut, err := m.ExportMemories(ctx, "csv")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.SplitN(csvOut, "\n", 2)
	if lines[0] != "id,type,title,content,project,tags,createdAt,updatedAt,accessedAt" {
		t.Errorf("unexpected csv header: %q", lines[0])
	}
	if !strings.Contains(csvOut, `"Quote ""this"", please"`) {
		t.Errorf("csv quoting wrong: %s", csvOut)
	}
	if !strings.Contains(csvOut, "a;b") {
		t.Errorf("csv tags missing: %s", csvOut)
	}

	if _, err := m.ExportMemories(ctx, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestDisabled_BenignDefaults(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m := New(root, Config{Enabled: false})
	defer m.Close()

	if mem, err := m.SaveMemory(ctx, SaveInput{Type: "observation", Title: "t", Content: "c"}); err != nil || mem != nil {
		t.Errorf("disabled save should no-op, got %v, %v", mem, err)
	}
	if mem, err := m.GetMemory(ctx, "x"); err != nil || mem != nil {
		t.Errorf("disabled get should return nil, got %v, %v", mem, err)
	}
	if results, err := m.SearchMemories(ctx, SearchQuery{Query: "anything"}); err != nil || len(results) != 0 {
		t.Errorf("disabled search should be empty, got %v, %v", results, err)
	}
	if res, err := m.Cleanup(ctx, true); err != nil || res.EvictedCount != 0 {
		t.Errorf("disabled cleanup should be zero, got %+v, %v", res, err)
	}
	if sess, err := m.StartSession(ctx, "p"); err != nil || sess != nil {
		t.Errorf("disabled session start should no-op, got %v, %v", sess, err)
	}

	// Nothing on disk either.
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("disabled manager wrote files: %v", entries)
	}
}

func TestReopen_RebuildsIndex(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	m1 := New(root, Config{Enabled: true})
	saved, err := m1.SaveMemory(ctx, SaveInput{Type: "bugfix", Title: "flaky retry loop", Content: "fixed jittered retry loop in fetcher"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m1.Close(); err != nil {
		t.Fatal(err)
	}

	m2 := New(root, Config{Enabled: true})
	defer m2.Close()

	results, err := m2.SearchMemories(ctx, SearchQuery{Query: "retry loop jitter"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != saved.ID {
		t.Fatalf("expected reopened manager to find the memory, got %v", results)
	}
}

func TestListAndTimeline(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		saved, _ := m.SaveMemory(ctx, SaveInput{Type: "observation", Title: title, Content: "c"})
		ids = append(ids, saved.ID)
	}

	listed, err := m.ListMemories(ctx, store.ListFilter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].ID != ids[2] {
		t.Errorf("expected newest first with limit, got %v", listed)
	}

	timeline, err := m.Timeline(ctx, ids[1], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(timeline) != 3 || timeline[1].ID != ids[1] {
		t.Errorf("expected anchor centered in timeline, got %v", timeline)
	}
}
