package geobatch

import (
	"context"
	"log/slog"
	"sync"
)

// BufferLifecycle owns all batching state for one scene and orchestrates
// rebuilds over it. It is the single writer of its accumulator and
// selection index; the rendering layer only ever sees immutable
// snapshots, so no external locking is needed to consume them.
//
// States follow Idle → Building → Ready. A rebuild request while
// Building cancels the in-flight job first and then starts fresh:
// last writer wins, builds never run concurrently. A build that ends by
// cancellation publishes nothing; the previously committed batches (if
// any) keep serving until a later build commits or Clear discards them.
//
// Multiple lifecycles are fully independent; there is no shared global
// registry, so separate scenes can batch in isolation.
type BufferLifecycle struct {
	opts options

	mu       sync.Mutex
	state    BuildState
	gen      uint64 // increments on every Rebuild/Clear; stale builds never commit
	job      *BuildJob
	cancel   context.CancelFunc
	done     chan struct{}
	progress Progress

	// committed results of the most recent successful build
	acc      *Accumulator
	index    *SelectionIndex
	warnings []Warning
}

// NewBufferLifecycle creates an empty lifecycle in the Idle state.
func NewBufferLifecycle(opts ...Option) (*BufferLifecycle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &BufferLifecycle{opts: o}, nil
}

// Rebuild starts a build over entities on a background goroutine and
// returns immediately. Any in-flight build is cancelled and discarded
// first. On completion the new batches, selection index, and warnings
// replace the committed ones atomically.
//
// The entities slice must not be mutated until the build finishes or is
// superseded.
func (lc *BufferLifecycle) Rebuild(entities []Entity) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.cancelLocked()
	lc.gen++
	gen := lc.gen

	jobOpts := lc.opts
	userFn := jobOpts.progressFn
	jobOpts.progressFn = func(p Progress) {
		lc.storeProgress(gen, p)
		if userFn != nil {
			userFn(p)
		}
	}

	job := &BuildJob{
		opts:     jobOpts,
		entities: entities,
		acc:      NewAccumulator(jobOpts.maxVertices),
		index:    NewSelectionIndex(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.job = job
	lc.cancel = cancel
	lc.done = done
	lc.state = StateBuilding
	lc.progress = Progress{Total: len(entities), State: StateBuilding}

	Logger().Info("rebuild started",
		slog.Uint64("generation", gen),
		slog.Int("entities", len(entities)))

	go lc.run(ctx, gen, job, done)
}

// Clear cancels any in-flight build and discards all committed batches
// and selection index entries, returning the lifecycle to Idle.
func (lc *BufferLifecycle) Clear() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.cancelLocked()
	lc.gen++
	lc.acc = nil
	lc.index = nil
	lc.warnings = nil
	lc.state = StateIdle
	lc.progress = Progress{State: StateIdle}

	Logger().Info("lifecycle cleared", slog.Uint64("generation", lc.gen))
}

// RenderableBatches returns an immutable snapshot of the committed
// batches in deterministic order: visual keys by first appearance, and
// within a key, batches in fill order. Safe to call from any goroutine;
// the snapshot stays valid even if a rebuild commits afterwards.
func (lc *BufferLifecycle) RenderableBatches() []RenderableBatch {
	lc.mu.Lock()
	acc := lc.acc
	lc.mu.Unlock()
	if acc == nil {
		return nil
	}

	batches := acc.Batches()
	out := make([]RenderableBatch, 0, len(batches))
	for _, b := range batches {
		out = append(out, RenderableBatch{
			Key:      b.Key(),
			Topology: b.Kind().Topology(),
			Vertices: b.Vertices(),
			Usage:    renderableUsage,
		})
	}
	return out
}

// LookupSlot returns the committed slot for id, for highlight overlays.
// The second result is false while no build is committed or if the
// entity was not part of the committed build. Oversized entities span
// several slots; see LookupSlots.
func (lc *BufferLifecycle) LookupSlot(id EntityID) (SlotRecord, bool) {
	lc.mu.Lock()
	index := lc.index
	lc.mu.Unlock()
	if index == nil {
		return SlotRecord{}, false
	}
	return index.Lookup(id)
}

// LookupSlots returns every committed slot for id in chunk order, or nil.
func (lc *BufferLifecycle) LookupSlots(id EntityID) []SlotRecord {
	lc.mu.Lock()
	index := lc.index
	lc.mu.Unlock()
	if index == nil {
		return nil
	}
	return index.LookupAll(id)
}

// Resolve returns the vertex data a committed slot locates, as a
// read-only view into the sealed batch. Returns nil for zero or stale
// records.
func (lc *BufferLifecycle) Resolve(slot SlotRecord) []Vertex {
	lc.mu.Lock()
	acc := lc.acc
	lc.mu.Unlock()
	if acc == nil {
		return nil
	}
	return acc.Slice(slot)
}

// State returns the lifecycle's current state.
func (lc *BufferLifecycle) State() BuildState {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state
}

// Progress returns the most recent progress report. While Idle or Ready
// it reflects the terminal report of the last build, if any.
func (lc *BufferLifecycle) Progress() Progress {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.progress
}

// Warnings returns the warnings recorded by the committed build, in
// encounter order. The returned slice is a copy.
func (lc *BufferLifecycle) Warnings() []Warning {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]Warning, len(lc.warnings))
	copy(out, lc.warnings)
	return out
}

// VertexCount returns the total committed vertex count across batches.
func (lc *BufferLifecycle) VertexCount() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.acc == nil {
		return 0
	}
	return lc.acc.VertexCount()
}

// BatchCount returns the number of committed batches.
func (lc *BufferLifecycle) BatchCount() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.acc == nil {
		return 0
	}
	return lc.acc.BatchCount()
}

// Wait blocks until the build in flight when Wait was called finishes,
// commits, or is superseded, or until ctx is done. Returns nil
// immediately if no build is in flight. Intended for tests and batch
// tooling; interactive hosts consume the progress stream instead.
func (lc *BufferLifecycle) Wait(ctx context.Context) error {
	lc.mu.Lock()
	done := lc.done
	lc.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one job to its end on the build goroutine and commits the
// result if this build is still the current generation.
func (lc *BufferLifecycle) run(ctx context.Context, gen uint64, job *BuildJob, done chan struct{}) {
	defer close(done)
	err := job.Run(ctx)

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if gen != lc.gen {
		// Superseded by a newer Rebuild or Clear; whatever this job did
		// is already discarded.
		return
	}
	lc.job = nil
	lc.cancel = nil

	if err != nil {
		// Cancelled without supersession only happens through Clear,
		// which already reset the state; nothing to do here.
		return
	}

	acc, index := job.Results()
	lc.acc = acc
	lc.index = index
	lc.warnings = job.Warnings()
	lc.state = StateReady

	Logger().Info("rebuild ready",
		slog.Uint64("generation", gen),
		slog.Int("batches", acc.BatchCount()),
		slog.Int("vertices", acc.VertexCount()),
		slog.Int("entities", index.Len()),
		slog.Int("warnings", len(lc.warnings)))
}

// cancelLocked cancels the in-flight job, if any. Caller holds lc.mu.
func (lc *BufferLifecycle) cancelLocked() {
	if lc.cancel != nil {
		lc.cancel()
		lc.job.Cancel()
		lc.cancel = nil
		lc.job = nil
	}
}

// storeProgress records a job's progress report unless the job has been
// superseded since it was scheduled.
func (lc *BufferLifecycle) storeProgress(gen uint64, p Progress) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if gen != lc.gen {
		return
	}
	lc.progress = p
}
