package geobatch

import "log/slog"

// BatchID identifies one batch within its accumulator. IDs are assigned
// in open order starting at 1; 0 is never a valid batch.
type BatchID uint32

// SlotRecord locates one entity's (or chunk's) vertex data inside a
// batch. A record stays valid until the accumulator that produced it is
// discarded; sealed batches never move or mutate data.
type SlotRecord struct {
	Batch  BatchID
	Offset int
	Len    int
}

// IsZero reports whether the record points nowhere.
func (s SlotRecord) IsZero() bool { return s.Batch == 0 }

// Contribution records one appended piece in a batch's contribution list:
// which entity (and which of its chunks) produced the vertex range
// [Offset, Offset+Len).
type Contribution struct {
	Entity EntityID
	Chunk  int
	Offset int
	Len    int
}

// Batch is an append-only, capacity-bounded vertex arena for exactly one
// (VisualKey, GeometryKind) pair. Batches grow only through their owning
// Accumulator and become immutable once sealed; sealed batches are safe
// for unrestricted concurrent reads.
type Batch struct {
	id       BatchID
	key      VisualKey
	kind     GeometryKind
	capacity int
	vertices []Vertex
	contribs []Contribution
	sealed   bool
}

// ID returns the batch's identity within its accumulator.
func (b *Batch) ID() BatchID { return b.id }

// Key returns the visual key every contribution in this batch shares.
func (b *Batch) Key() VisualKey { return b.key }

// Kind returns the geometry kind of every contribution in this batch.
func (b *Batch) Kind() GeometryKind { return b.kind }

// Len returns the number of vertices currently in the batch.
func (b *Batch) Len() int { return len(b.vertices) }

// Remaining returns how many more vertices the batch can take.
func (b *Batch) Remaining() int { return b.capacity - len(b.vertices) }

// Sealed reports whether the batch has been sealed.
func (b *Batch) Sealed() bool { return b.sealed }

// Vertices returns the batch's vertex data. The returned slice is a view
// into the batch's arena; callers must treat it as read-only.
func (b *Batch) Vertices() []Vertex { return b.vertices }

// Contributions returns the batch's contribution list in insertion order.
// The returned slice is a read-only view.
func (b *Batch) Contributions() []Contribution { return b.contribs }

// append copies verts into the arena and records the contribution.
// Callers have already checked capacity; violating either precondition
// is a programmer error, not a runtime condition.
func (b *Batch) append(entity EntityID, chunk int, verts []Vertex) SlotRecord {
	if b.sealed {
		panic("geobatch: append to sealed batch")
	}
	if len(verts) > b.Remaining() {
		panic("geobatch: contribution exceeds batch capacity")
	}
	offset := len(b.vertices)
	b.vertices = append(b.vertices, verts...)
	b.contribs = append(b.contribs, Contribution{
		Entity: entity,
		Chunk:  chunk,
		Offset: offset,
		Len:    len(verts),
	})
	return SlotRecord{Batch: b.id, Offset: offset, Len: len(verts)}
}

// seal makes the batch immutable.
func (b *Batch) seal() {
	b.sealed = true
}

// Accumulator packs vertex contributions into capacity-bounded batches,
// one open batch per (VisualKey, GeometryKind) pair at a time. When an
// open batch cannot take a contribution, it is sealed and a fresh batch
// is opened for the same pair; a single contribution never splits across
// two batches (guaranteed upstream by SplitEntity).
//
// An Accumulator is single-writer: exactly one goroutine appends. Batches
// it has sealed may be read concurrently.
type Accumulator struct {
	capacity int
	all      []*Batch            // every batch, index = BatchID-1
	open     map[groupKey]*Batch // currently open batch per pair
	byKey    map[groupKey][]*Batch
	order    []groupKey // pairs in first-appearance order
}

// NewAccumulator creates an accumulator whose batches hold at most
// capacity vertices. Panics on non-positive capacity; configuration is
// validated before any accumulator exists, so this is a contract check.
func NewAccumulator(capacity int) *Accumulator {
	if capacity < 1 {
		panic("geobatch: accumulator capacity must be positive")
	}
	return &Accumulator{
		capacity: capacity,
		open:     make(map[groupKey]*Batch),
		byKey:    make(map[groupKey][]*Batch),
	}
}

// Append places verts into the open batch for (key, kind), sealing and
// replacing it first if it cannot hold them. Returns the slot the data
// landed in. Empty input is a no-op returning a zero SlotRecord.
//
// Panics if verts alone exceed the configured capacity: that means an
// oversized contribution escaped chunking, which is a defect upstream
// and must never be silently truncated.
func (a *Accumulator) Append(key VisualKey, kind GeometryKind, entity EntityID, chunk int, verts []Vertex) SlotRecord {
	if len(verts) == 0 {
		return SlotRecord{}
	}
	if len(verts) > a.capacity {
		panic("geobatch: contribution exceeds configured capacity")
	}

	gk := groupKey{key: key, kind: kind}
	b := a.open[gk]
	if b == nil {
		b = a.openBatch(gk)
	} else if b.Remaining() < len(verts) {
		a.sealBatch(gk, b)
		b = a.openBatch(gk)
	}
	return b.append(entity, chunk, verts)
}

// openBatch starts a fresh batch for the pair and registers it in
// insertion order.
func (a *Accumulator) openBatch(gk groupKey) *Batch {
	b := &Batch{
		id:       BatchID(len(a.all) + 1),
		key:      gk.key,
		kind:     gk.kind,
		capacity: a.capacity,
		vertices: make([]Vertex, 0, a.capacity),
	}
	a.all = append(a.all, b)
	if _, seen := a.byKey[gk]; !seen {
		a.order = append(a.order, gk)
	}
	a.byKey[gk] = append(a.byKey[gk], b)
	a.open[gk] = b
	return b
}

func (a *Accumulator) sealBatch(gk groupKey, b *Batch) {
	b.seal()
	delete(a.open, gk)
	Logger().Debug("batch sealed",
		slog.Uint64("batch", uint64(b.id)),
		slog.String("key", gk.key.String()),
		slog.String("kind", gk.kind.String()),
		slog.Int("vertices", b.Len()),
		slog.Int("contributions", len(b.contribs)))
}

// SealAll seals every still-open batch. Called once after the last
// contribution; afterwards the accumulator's batches are immutable.
func (a *Accumulator) SealAll() {
	for gk, b := range a.open {
		b.seal()
		delete(a.open, gk)
	}
}

// Batches returns every batch in deterministic order: group pairs in
// first-appearance order, and within a pair, batches in open order.
func (a *Accumulator) Batches() []*Batch {
	out := make([]*Batch, 0, len(a.all))
	for _, gk := range a.order {
		out = append(out, a.byKey[gk]...)
	}
	return out
}

// BatchCount returns the total number of batches, open and sealed.
func (a *Accumulator) BatchCount() int { return len(a.all) }

// VertexCount returns the total number of vertices across all batches.
func (a *Accumulator) VertexCount() int {
	n := 0
	for _, b := range a.all {
		n += b.Len()
	}
	return n
}

// Slice resolves a SlotRecord to the vertex data it locates. The result
// is a read-only view into the batch arena. Returns nil for a zero or
// unknown record.
func (a *Accumulator) Slice(slot SlotRecord) []Vertex {
	if slot.IsZero() || int(slot.Batch) > len(a.all) {
		return nil
	}
	b := a.all[slot.Batch-1]
	if slot.Offset+slot.Len > len(b.vertices) {
		return nil
	}
	return b.vertices[slot.Offset : slot.Offset+slot.Len]
}
