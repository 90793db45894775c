package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"torrentsession/internal/domain"
)

func testMeta(id string) domain.TorrentMetadata {
	return domain.TorrentMetadata{
		ID:         domain.TorrentID(id),
		Name:       "name-" + id,
		TotalBytes: 100,
		Files:      []domain.FileEntry{{Path: "a.txt", Length: 100}},
	}
}

func TestInsertCreatesZeroedHandle(t *testing.T) {
	r := New()
	if err := r.Insert(testMeta("a"), 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	snap, ok := r.Get("a")
	if !ok {
		t.Fatalf("expected handle")
	}
	if snap.Paused || snap.Stats != (domain.TorrentStats{}) {
		t.Fatalf("unexpected initial state: %+v", snap)
	}
	if snap.Status != domain.TorrentDownloading {
		t.Fatalf("status = %q", snap.Status)
	}
}

func TestInsertDuplicateIsRejected(t *testing.T) {
	r := New()
	if err := r.Insert(testMeta("a"), 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Mutate("a", func(h *Handle) error {
		h.Stats.Progress = 0.4
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	err := r.Insert(testMeta("a"), 0)
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("err = %v, want ErrDuplicateIdentifier", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	snap, _ := r.Get("a")
	if snap.Stats.Progress != 0.4 {
		t.Fatalf("existing handle overwritten: %+v", snap)
	}
}

func TestInsertRespectsLimit(t *testing.T) {
	r := New()
	if err := r.Insert(testMeta("a"), 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Insert(testMeta("b"), 1); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if err := r.Insert(testMeta("a"), 1); !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("duplicate at capacity err = %v, want ErrDuplicateIdentifier", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestInsertWithRunsUnderLock(t *testing.T) {
	r := New()
	var seen domain.TorrentID
	err := r.InsertWith(testMeta("a"), 0, func(h *Handle) {
		seen = h.Metadata.ID
	})
	if err != nil {
		t.Fatalf("InsertWith: %v", err)
	}
	if seen != "a" {
		t.Fatalf("callback saw %q", seen)
	}

	called := false
	_ = r.InsertWith(testMeta("a"), 0, func(*Handle) { called = true })
	if called {
		t.Fatalf("callback must not run on failure")
	}
}

func TestMutateMissing(t *testing.T) {
	r := New()
	err := r.Mutate("nope", func(*Handle) error { return nil })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMutatePropagatesError(t *testing.T) {
	r := New()
	_ = r.Insert(testMeta("a"), 0)
	boom := errors.New("boom")
	if err := r.Mutate("a", func(*Handle) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	meta := testMeta("a")
	_ = r.Insert(meta, 0)
	meta.Files[0].Path = "mutated-by-caller"

	snap, _ := r.Get("a")
	if snap.Metadata.Files[0].Path != "a.txt" {
		t.Fatalf("registry aliases caller metadata")
	}
	snap.Metadata.Files[0].Path = "mutated-snapshot"
	again, _ := r.Get("a")
	if again.Metadata.Files[0].Path != "a.txt" {
		t.Fatalf("snapshot aliases registry metadata")
	}
}

func TestRemove(t *testing.T) {
	r := New()
	if err := r.Remove("a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	_ = r.Insert(testMeta("a"), 0)

	var last domain.TorrentSnapshot
	if err := r.RemoveWith("a", func(s domain.TorrentSnapshot) { last = s }); err != nil {
		t.Fatalf("RemoveWith: %v", err)
	}
	if last.Metadata.ID != "a" {
		t.Fatalf("callback snapshot = %+v", last)
	}
	if _, ok := r.Get("a"); ok {
		t.Fatalf("handle still present after remove")
	}
	if err := r.Mutate("a", func(*Handle) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Mutate after remove err = %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d, want 0", r.Len())
	}
}

func TestListInAdmissionOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b"} {
		_ = r.Insert(testMeta(id), 0)
	}
	_ = r.Remove("a")
	_ = r.Insert(testMeta("a"), 0)

	ids := r.IDs()
	want := []domain.TorrentID{"c", "b", "a"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	list := r.List()
	if len(list) != 3 || list[0].Metadata.ID != "c" {
		t.Fatalf("list = %+v", list)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.TorrentID(fmt.Sprintf("t%02d", i))
			_ = r.Insert(testMeta(string(id)), 0)
			_ = r.Mutate(id, func(h *Handle) error {
				h.Stats.Progress += 0.5
				return nil
			})
			_ = r.List()
			_, _ = r.Get(id)
		}(i)
	}
	wg.Wait()

	if r.Len() != n {
		t.Fatalf("len = %d, want %d", r.Len(), n)
	}
	for _, s := range r.List() {
		if s.Stats.Progress != 0.5 {
			t.Fatalf("progress = %v for %s", s.Stats.Progress, s.Metadata.ID)
		}
	}
}
