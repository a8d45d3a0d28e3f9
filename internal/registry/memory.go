package registry

import (
	"context"
	"sync"
)

// MemoryRegistry holds status records in process memory: the right choice
// for a single-process deployment, where the map is visible to every
// request handler.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]StatusRecord
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string]StatusRecord),
	}
}

// Put stores the record, overwriting any prior record for the job
func (r *MemoryRegistry) Put(ctx context.Context, record StatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.JobID] = record
	return nil
}

// Get returns the record for a job, or ErrNotFound
func (r *MemoryRegistry) Get(ctx context.Context, jobID string) (StatusRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[jobID]
	if !ok {
		return StatusRecord{}, ErrNotFound
	}
	return record, nil
}

// Delete removes a job's record; deleting a missing record is a no-op
func (r *MemoryRegistry) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, jobID)
	return nil
}
