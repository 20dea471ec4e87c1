package session

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
)

// MemoryStore keeps encoded games in a map. Each entry carries its own lock, so
// mutations of different sessions proceed independently.
type MemoryStore struct {
	corruptLog
	entries map[string]*memoryEntry
	mu      sync.RWMutex
}

type memoryEntry struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		corruptLog: newCorruptLog(),
		entries:    make(map[string]*memoryEntry),
	}
}

// Create inserts a new game
func (m *MemoryStore) Create(ctx context.Context, game *engine.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(game)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[game.SessionID]; exists {
		return duplicate(game.SessionID)
	}
	m.entries[game.SessionID] = &memoryEntry{data: data}
	return nil
}

// Get returns a decoded copy of a game
func (m *MemoryStore) Get(ctx context.Context, id string) (*engine.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := m.entry(id)
	if !ok {
		return nil, notFound(id)
	}

	entry.mu.Lock()
	data := entry.data
	entry.mu.Unlock()

	return Decode(data)
}

// WithMut applies fn under the entry lock
func (m *MemoryStore) WithMut(ctx context.Context, id string, fn func(*engine.Game) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, ok := m.entry(id)
	if !ok {
		return notFound(id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	_, updated, err := mutate(entry.data, fn)
	if err != nil {
		return err
	}
	entry.data = updated
	return nil
}

// List returns all games
func (m *MemoryStore) List(ctx context.Context) ([]*engine.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entries := make(map[string]*memoryEntry, len(m.entries))
	for id, entry := range m.entries {
		entries[id] = entry
	}
	m.mu.RUnlock()

	result := make([]*engine.Game, 0, len(entries))
	for id, entry := range entries {
		entry.mu.Lock()
		data := entry.data
		entry.mu.Unlock()

		g, err := Decode(data)
		if err != nil {
			m.skip(id, err)
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

// Sweep removes finished games not updated since cutoff
func (m *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		entry.mu.Lock()
		g, err := Decode(entry.data)
		entry.mu.Unlock()
		if err != nil {
			m.skip(id, err)
			continue
		}
		if sweepable(g, cutoff) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Scan calls fn with every stored record
func (m *MemoryStore) Scan(ctx context.Context, fn func(id string, data []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	entries := make([]*memoryEntry, 0, len(m.entries))
	for id, entry := range m.entries {
		ids = append(ids, id)
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	for i, entry := range entries {
		entry.mu.Lock()
		data := entry.data
		entry.mu.Unlock()
		if err := fn(ids[i], data); err != nil {
			return err
		}
	}
	return nil
}

// put stores raw bytes without validation
func (m *MemoryStore) put(id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &memoryEntry{data: data}
}

// Count returns the number of stored games
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) entry(id string) (*memoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	return entry, ok
}
