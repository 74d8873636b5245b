package population

import (
	"context"
	"sort"
	"sync"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/shared/errors"
)

// MemoryStore keeps populations in process memory. The CLI uses it for runs
// that are not archived.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Stored
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Stored)}
}

func (m *MemoryStore) Save(_ context.Context, record Record, pop *cosmos.Population) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[record.ID]; exists {
		return errors.Conflictf("population %s already exists", record.ID)
	}
	m.entries[record.ID] = Stored{Record: record, Population: pop}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Stored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, errors.NotFoundf("population %s not found", id)
	}
	return &entry, nil
}

// List returns records newest first.
func (m *MemoryStore) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]Record, 0, len(m.entries))
	for _, entry := range m.entries {
		records = append(records, entry.Record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return errors.NotFoundf("population %s not found", id)
	}
	delete(m.entries, id)
	return nil
}
