package narrative

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arivoli/neer/internal/storage"
)

// Persister is the durable side of the result cache.
type Persister interface {
	SaveNarrative(entries []storage.NarrativeEntry) error
	GetNarrative(key string) ([]storage.NarrativeEntry, error)
}

// Entry is one cached section for a key.
type Entry struct {
	Section   string
	Text      string
	Source    string
	CreatedAt time.Time
}

// Cache is a read-through result cache: an in-memory mirror over a
// durable store. A corrupt or unreadable stored record is treated as
// absent (logged, never surfaced), and a failed durable write still
// updates the mirror so the process keeps serving the new value.
type Cache struct {
	mu      sync.Mutex
	persist Persister
	mirror  map[string][]Entry
	logger  *slog.Logger
}

// NewCache creates a Cache over the given persister. A nil persister is
// allowed and yields a purely in-memory cache (used by tests and by the
// CLI's one-shot mode).
func NewCache(p Persister) *Cache {
	return &Cache{
		persist: p,
		mirror:  make(map[string][]Entry),
		logger:  slog.Default(),
	}
}

// Get returns the cached sections for a key. The mirror is consulted
// first so the durable medium is read at most once per key per process.
func (c *Cache) Get(key string) ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entries, ok := c.mirror[key]; ok {
		return entries, true
	}
	if c.persist == nil {
		return nil, false
	}

	stored, err := c.persist.GetNarrative(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			// A corrupt row behaves as if it never existed.
			c.logger.Warn("unreadable cached narrative, treating as absent", "key", key, "error", err)
		}
		return nil, false
	}

	entries := make([]Entry, len(stored))
	for i, e := range stored {
		entries[i] = Entry{Section: e.Section, Text: e.Text, Source: e.Source, CreatedAt: e.CreatedAt}
	}
	c.mirror[key] = entries
	return entries, true
}

// Put stores the sections for a key. The mirror always reflects the new
// value; a durable write failure is logged and otherwise ignored.
func (c *Cache) Put(key string, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mirror[key] = entries

	if c.persist == nil {
		return
	}
	stored := make([]storage.NarrativeEntry, len(entries))
	for i, e := range entries {
		stored[i] = storage.NarrativeEntry{
			Key:       key,
			Section:   e.Section,
			Text:      e.Text,
			Source:    e.Source,
			CreatedAt: e.CreatedAt,
		}
	}
	if err := c.persist.SaveNarrative(stored); err != nil {
		c.logger.Warn("persisting narrative cache failed, keeping in-memory copy", "key", key, "error", err)
	}
}
