package tcap

import (
	"sync"

	"github.com/capnode/tcapd/internal/wire"
)

// CapabilityTable is a concurrent map from capability ID to Capability.
// Readers vastly outnumber writers (every invocation and dispatch looks
// one up; only delegation, revocation, and creation write), so a
// reader-writer lock is used rather than a single mutex.
type CapabilityTable struct {
	mu    sync.RWMutex
	byID  map[wire.CapabilityID]*Capability
}

// NewCapabilityTable returns an empty table.
func NewCapabilityTable() *CapabilityTable {
	return &CapabilityTable{
		byID: make(map[wire.CapabilityID]*Capability),
	}
}

// Insert adds or replaces the table entry for cap.ID().
func (t *CapabilityTable) Insert(cap *Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[cap.ID()] = cap
}

// Remove deletes the entry for id, if present. It does not force-drop any
// holder that still references the removed Capability — removal only
// severs the table's own reference, per §4.2's shared-ownership note.
func (t *CapabilityTable) Remove(id wire.CapabilityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// Contains reports whether id has a live table entry.
func (t *CapabilityTable) Contains(id wire.CapabilityID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byID[id]
	return ok
}

// Get returns the Capability for id, or nil and false if absent.
func (t *CapabilityTable) Get(id wire.CapabilityID) (*Capability, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cap, ok := t.byID[id]
	return cap, ok
}

// ListIDs returns a snapshot of every capability ID currently in the
// table. The slice is not kept in sync with later mutations.
func (t *CapabilityTable) ListIDs() []wire.CapabilityID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]wire.CapabilityID, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	return ids
}
