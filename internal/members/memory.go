package members

import (
	"context"
	"fmt"
	"sync"

	"github.com/i474232898/farm-assistant/internal/assistant"
)

// MemoryRegistry is a process-local registry used when no members backend is
// configured. Contents are lost on restart.
type MemoryRegistry struct {
	mu      sync.RWMutex
	threads map[string][]assistant.ThreadRecord // key: member id, in registration order
}

var _ assistant.MemberRegistry = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{threads: make(map[string][]assistant.ThreadRecord)}
}

func (r *MemoryRegistry) Register(_ context.Context, memberID string, record assistant.ThreadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(memberID, record.ThreadID) >= 0 {
		return fmt.Errorf("%w: %s", ErrConflict, record.ThreadID)
	}
	r.threads[memberID] = append(r.threads[memberID], record)
	return nil
}

func (r *MemoryRegistry) List(_ context.Context, memberID string) ([]assistant.ThreadRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]assistant.ThreadRecord{}, r.threads[memberID]...), nil
}

func (r *MemoryRegistry) Update(_ context.Context, memberID string, record assistant.ThreadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(memberID, record.ThreadID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, record.ThreadID)
	}
	r.threads[memberID][i] = record
	return nil
}

func (r *MemoryRegistry) Delete(_ context.Context, memberID, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(memberID, threadID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	records := r.threads[memberID]
	r.threads[memberID] = append(records[:i], records[i+1:]...)
	if len(r.threads[memberID]) == 0 {
		delete(r.threads, memberID)
	}
	return nil
}

// indexOf must be called with mu held.
func (r *MemoryRegistry) indexOf(memberID, threadID string) int {
	for i, rec := range r.threads[memberID] {
		if rec.ThreadID == threadID {
			return i
		}
	}
	return -1
}
