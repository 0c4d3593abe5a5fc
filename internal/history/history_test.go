package history

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kvit-s/kvit-editor/internal/cache"
)

func newTestManager(t *testing.T, maxPerFile int) (*Manager, *cache.Cache) {
	t.Helper()
	c, err := cache.New(t.TempDir(), 0, zap.NewNop())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return NewManager(c, maxPerFile, zap.NewNop()), c
}

func TestPushPopLIFO(t *testing.T) {
	m, _ := newTestManager(t, 5)
	path := "/work/a.txt"

	for i := 1; i <= 3; i++ {
		if err := m.AddHistory(path, fmt.Sprintf("version %d", i)); err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}

	for i := 3; i >= 1; i-- {
		content, ok, err := m.PopLastHistory(path)
		if err != nil {
			t.Fatalf("PopLastHistory: %v", err)
		}
		if !ok {
			t.Fatalf("expected snapshot %d to exist", i)
		}
		if want := fmt.Sprintf("version %d", i); content != want {
			t.Errorf("pop = %q, want %q", content, want)
		}
	}

	if _, ok, err := m.PopLastHistory(path); err != nil || ok {
		t.Errorf("pop on empty history = ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestDepthLimitEvictsOldest(t *testing.T) {
	m, _ := newTestManager(t, 3)
	path := "/work/b.txt"

	for i := 1; i <= 5; i++ {
		if err := m.AddHistory(path, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}

	all, err := m.GetAllHistory(path)
	if err != nil {
		t.Fatalf("GetAllHistory: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("retained %d snapshots, want 3", len(all))
	}
	for i, want := range []string{"v3", "v4", "v5"} {
		if all[i] != want {
			t.Errorf("all[%d] = %q, want %q", i, all[i], want)
		}
	}

	meta, err := m.GetMetadata(path)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Counter != 5 {
		t.Errorf("Counter = %d, want 5", meta.Counter)
	}
	if len(meta.Entries) != 3 {
		t.Errorf("Entries len = %d, want 3", len(meta.Entries))
	}
}

func TestEvictedGenerationsUnrecoverable(t *testing.T) {
	m, _ := newTestManager(t, 2)
	path := "/work/c.txt"

	for i := 1; i <= 4; i++ {
		if err := m.AddHistory(path, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}

	// Only the two newest survive; popping past them finds nothing.
	for _, want := range []string{"v4", "v3"} {
		content, ok, err := m.PopLastHistory(path)
		if err != nil || !ok {
			t.Fatalf("pop: ok=%v err=%v", ok, err)
		}
		if content != want {
			t.Errorf("pop = %q, want %q", content, want)
		}
	}
	if _, ok, _ := m.PopLastHistory(path); ok {
		t.Error("evicted generations must not be recoverable")
	}
}

func TestClearHistory(t *testing.T) {
	m, c := newTestManager(t, 5)
	path := "/work/d.txt"

	for i := 0; i < 3; i++ {
		if err := m.AddHistory(path, "content"); err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}
	if err := m.ClearHistory(path); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}

	all, err := m.GetAllHistory(path)
	if err != nil {
		t.Fatalf("GetAllHistory: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("history not empty after clear: %v", all)
	}
	if _, ok, _ := m.PopLastHistory(path); ok {
		t.Error("pop after clear should report no history")
	}

	// Snapshot entries must be gone from the underlying cache too.
	for i := 0; i < 3; i++ {
		if c.Contains(fmt.Sprintf("%s.%d", path, i)) {
			t.Errorf("snapshot generation %d still in cache after clear", i)
		}
	}
}

func TestPopMissingSnapshotContent(t *testing.T) {
	m, c := newTestManager(t, 5)
	path := "/work/e.txt"

	if err := m.AddHistory(path, "only version"); err != nil {
		t.Fatalf("AddHistory: %v", err)
	}

	// Simulate the snapshot entry being evicted out from under the metadata.
	if err := c.Delete(path + ".0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	content, ok, err := m.PopLastHistory(path)
	if err != nil {
		t.Fatalf("PopLastHistory: %v", err)
	}
	if ok || content != "" {
		t.Errorf("pop of missing snapshot = %q, ok=%v; want empty, false", content, ok)
	}

	// The dangling generation is removed from metadata regardless.
	meta, err := m.GetMetadata(path)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(meta.Entries) != 0 {
		t.Errorf("metadata still references %v", meta.Entries)
	}
}

func TestGetAllHistorySkipsMissing(t *testing.T) {
	m, c := newTestManager(t, 5)
	path := "/work/f.txt"

	for i := 1; i <= 3; i++ {
		if err := m.AddHistory(path, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}
	if err := c.Delete(path + ".1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, err := m.GetAllHistory(path)
	if err != nil {
		t.Fatalf("GetAllHistory: %v", err)
	}
	if len(all) != 2 || all[0] != "v1" || all[1] != "v3" {
		t.Errorf("GetAllHistory = %v, want [v1 v3]", all)
	}
}

func TestSeparatePathsIndependent(t *testing.T) {
	m, _ := newTestManager(t, 5)

	if err := m.AddHistory("/a", "for a"); err != nil {
		t.Fatalf("AddHistory: %v", err)
	}
	if err := m.AddHistory("/b", "for b"); err != nil {
		t.Fatalf("AddHistory: %v", err)
	}

	content, ok, err := m.PopLastHistory("/a")
	if err != nil || !ok || content != "for a" {
		t.Errorf("pop /a = %q, ok=%v, err=%v", content, ok, err)
	}
	content, ok, err = m.PopLastHistory("/b")
	if err != nil || !ok || content != "for b" {
		t.Errorf("pop /b = %q, ok=%v, err=%v", content, ok, err)
	}
}
