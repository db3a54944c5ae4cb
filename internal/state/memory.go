// internal/state/memory.go
package state

import (
	"sync"
	"time"

	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

// MemoryStore keeps the watermark in process memory.
type MemoryStore struct {
	mu sync.Mutex
	w  Watermark
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Watermark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.w, nil
}

func (m *MemoryStore) Advance(r crashlog.Report) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, moved := advance(m.w, r, time.Now())
	m.w = next
	return moved, nil
}
