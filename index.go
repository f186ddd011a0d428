package geobatch

import "sync"

// SelectionIndex maps entity identities to the batch slots their vertex
// data landed in, so an entity can be located for highlighting without
// owning a dedicated render object.
//
// One registration covers all of an entity's slots: small entities have
// one, oversized entities one per chunk in chunk order. Registrations
// are replaced wholesale by the next rebuild; an id never outlives the
// batches its slots point into.
//
// A single writer (the owning build) registers; lookups are guarded by
// an RWMutex so the render thread may resolve highlights concurrently
// with reads of sealed batches.
type SelectionIndex struct {
	mu    sync.RWMutex
	slots map[EntityID][]SlotRecord
}

// NewSelectionIndex creates an empty index.
func NewSelectionIndex() *SelectionIndex {
	return &SelectionIndex{
		slots: make(map[EntityID][]SlotRecord),
	}
}

// Register records every slot holding data for id, replacing any prior
// registration. Empty slot lists are ignored.
func (x *SelectionIndex) Register(id EntityID, slots []SlotRecord) {
	if len(slots) == 0 {
		return
	}
	x.mu.Lock()
	x.slots[id] = slots
	x.mu.Unlock()
}

// Lookup returns the entity's first slot. For every entity small enough
// to avoid chunking this is its entire data; for oversized entities use
// LookupAll. The second result is false if the id is not registered.
func (x *SelectionIndex) Lookup(id EntityID) (SlotRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.slots[id]
	if !ok {
		return SlotRecord{}, false
	}
	return s[0], true
}

// LookupAll returns every slot holding data for id, in chunk order, or
// nil if the id is not registered. The returned slice is a copy and safe
// to retain.
func (x *SelectionIndex) LookupAll(id EntityID) []SlotRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.slots[id]
	if !ok {
		return nil
	}
	out := make([]SlotRecord, len(s))
	copy(out, s)
	return out
}

// Len returns the number of registered entities.
func (x *SelectionIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.slots)
}

// Clear discards every registration.
func (x *SelectionIndex) Clear() {
	x.mu.Lock()
	x.slots = make(map[EntityID][]SlotRecord)
	x.mu.Unlock()
}
