package narrative

import (
	"errors"
	"testing"

	"github.com/arivoli/neer/internal/storage"
)

// fakePersister records calls and can be made to fail.
type fakePersister struct {
	saved   map[string][]storage.NarrativeEntry
	gets    int
	saveErr error
	getErr  error
}

func newFakePersister() *fakePersister {
	return &fakePersister{saved: make(map[string][]storage.NarrativeEntry)}
}

func (f *fakePersister) SaveNarrative(entries []storage.NarrativeEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[entries[0].Key] = entries
	return nil
}

func (f *fakePersister) GetNarrative(key string) ([]storage.NarrativeEntry, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	entries, ok := f.saved[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return entries, nil
}

func TestCacheReadThroughMirror(t *testing.T) {
	p := newFakePersister()
	p.saved["Karur"] = []storage.NarrativeEntry{
		{Key: "Karur", Section: "brief", Text: "stored", Source: "live"},
	}
	c := NewCache(p)

	for i := 0; i < 3; i++ {
		entries, ok := c.Get("Karur")
		if !ok || entries[0].Text != "stored" {
			t.Fatalf("Get #%d = %v, %v", i+1, entries, ok)
		}
	}
	if p.gets != 1 {
		t.Errorf("durable store read %d times, want 1 (mirror should absorb repeats)", p.gets)
	}
}

func TestCacheCorruptStoredRecordIsAbsent(t *testing.T) {
	p := newFakePersister()
	p.getErr = errors.New("malformed row")
	c := NewCache(p)

	if _, ok := c.Get("Karur"); ok {
		t.Fatal("corrupt stored record should read as absent")
	}
}

func TestCachePutSurvivesWriteFailure(t *testing.T) {
	p := newFakePersister()
	p.saveErr = errors.New("disk full")
	c := NewCache(p)

	c.Put("Theni", []Entry{{Section: "brief", Text: "fresh", Source: "live"}})

	// The durable write failed, but the in-process view must still serve
	// the new value.
	entries, ok := c.Get("Theni")
	if !ok || entries[0].Text != "fresh" {
		t.Fatalf("Get after failed persist = %v, %v", entries, ok)
	}
	if len(p.saved) != 0 {
		t.Error("persister unexpectedly recorded the write")
	}
}

func TestCachePutPersists(t *testing.T) {
	p := newFakePersister()
	c := NewCache(p)

	c.Put("Madurai", []Entry{{Section: "brief", Text: "t", Source: "precomputed"}})

	stored, ok := p.saved["Madurai"]
	if !ok || stored[0].Source != "precomputed" {
		t.Fatalf("durable store not updated: %v", p.saved)
	}
}

func TestCacheNilPersisterIsInMemoryOnly(t *testing.T) {
	c := NewCache(nil)
	if _, ok := c.Get("X"); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Put("X", []Entry{{Section: "brief", Text: "v"}})
	if entries, ok := c.Get("X"); !ok || entries[0].Text != "v" {
		t.Fatal("in-memory round trip failed")
	}
}
