package geobatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// BuildState is the externally visible state of a build or lifecycle.
type BuildState uint8

const (
	// StateIdle means no batches exist and no build is running.
	StateIdle BuildState = iota
	// StateBuilding means a build is in progress.
	StateBuilding
	// StateReady means a build completed and its batches are current.
	StateReady
	// StateCancelled means the most recent build ended by cancellation.
	StateCancelled
)

// String returns the state name for logs and test output.
func (s BuildState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("BuildState(%d)", uint8(s))
	}
}

// Progress is one point of a build's progress stream: how many entities
// of the total have been processed, and the build's state. Skipped
// malformed entities count as processed.
type Progress struct {
	Processed int
	Total     int
	State     BuildState
}

// JobStatus is the stepping status of a BuildJob.
type JobStatus uint8

const (
	// JobRunning means more work units remain; call Step again.
	JobRunning JobStatus = iota
	// JobDone means every work unit is processed and all batches sealed.
	JobDone
	// JobCancelled means the job was cancelled; its staging state is
	// discarded and nothing it produced is observable.
	JobCancelled
)

// BuildJob builds batches and a selection index for one entity
// collection in bounded cooperative steps. Each Step processes exactly
// one work unit and returns; the caller chooses when to step again, so
// a host with its own frame loop never blocks longer than one unit.
//
// A job stages everything it produces in private state. Results become
// observable only after Step returns JobDone; cancellation at any yield
// point discards the staging state atomically, so a cancelled job leaves
// no partially registered entities behind.
//
// Step must be called from a single goroutine. Cancel may be called from
// any goroutine; it takes effect at the next yield point.
type BuildJob struct {
	opts     options
	entities []Entity
	cursor   int
	status   JobStatus

	acc      *Accumulator
	index    *SelectionIndex
	warnings []Warning

	cancelled atomic.Bool
}

// NewBuildJob creates a job over entities. The slice is read, never
// mutated; the caller must not mutate it while the job runs.
func NewBuildJob(entities []Entity, opts ...Option) (*BuildJob, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &BuildJob{
		opts:     o,
		entities: entities,
		acc:      NewAccumulator(o.maxVertices),
		index:    NewSelectionIndex(),
	}, nil
}

// Cancel requests cancellation. The job ends at its next yield point;
// Step then reports JobCancelled and the staging state is discarded.
// Cancelling a finished job has no effect.
func (j *BuildJob) Cancel() {
	j.cancelled.Store(true)
}

// Step processes exactly one work unit: validate each entity, split the
// oversized ones, append every piece, and register the resulting slots.
// After the final unit all open batches are sealed and Step returns
// JobDone. Calling Step after a terminal status returns that status
// unchanged.
func (j *BuildJob) Step() JobStatus {
	if j.status != JobRunning {
		return j.status
	}
	if j.cancelled.Load() {
		return j.finish(JobCancelled)
	}

	end := j.cursor + j.opts.workUnitSize
	if end > len(j.entities) {
		end = len(j.entities)
	}
	j.processUnit(j.entities[j.cursor:end])
	j.cursor = end

	if j.cursor == len(j.entities) {
		j.acc.SealAll()
		return j.finish(JobDone)
	}
	j.reportProgress()
	return JobRunning
}

// Run drives Step to completion, checking ctx at every yield point.
// It returns nil on completion and ErrBuildCancelled (wrapping nothing)
// if the job ends by cancellation, whether through ctx or Cancel.
func (j *BuildJob) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			j.Cancel()
		}
		switch j.Step() {
		case JobDone:
			return nil
		case JobCancelled:
			return ErrBuildCancelled
		}
	}
}

// Progress returns the job's current progress.
func (j *BuildJob) Progress() Progress {
	return Progress{
		Processed: j.cursor,
		Total:     len(j.entities),
		State:     j.state(),
	}
}

// Warnings returns the malformed entities skipped so far, in encounter
// order. The returned slice is a copy.
func (j *BuildJob) Warnings() []Warning {
	out := make([]Warning, len(j.warnings))
	copy(out, j.warnings)
	return out
}

// Results returns the job's accumulator and selection index. They are
// valid only after Step has returned JobDone; before that, and after
// cancellation, Results returns nil, nil.
func (j *BuildJob) Results() (*Accumulator, *SelectionIndex) {
	if j.status != JobDone {
		return nil, nil
	}
	return j.acc, j.index
}

// processUnit runs one work unit through chunking, accumulation, and
// registration. Chunking may fan out across workers; accumulation and
// registration stay in input order, so output is deterministic.
func (j *BuildJob) processUnit(unit []Entity) {
	valid := make([]Entity, 0, len(unit))
	for _, e := range unit {
		if reason := validateEntity(e); reason != "" {
			j.warn(e.ID, reason)
			continue
		}
		valid = append(valid, e)
	}

	// Chunking is pure; cancellation is only observed at yield points,
	// so the context here never fires and splitAll cannot fail.
	chunked, err := splitAll(context.Background(), valid, j.opts.maxVertices, j.opts.chunkWorkers)
	if err != nil {
		panic("geobatch: splitAll failed without cancellation: " + err.Error())
	}

	for i, e := range valid {
		chunks := chunked[i]
		if len(chunks) == 0 {
			continue
		}
		slots := make([]SlotRecord, 0, len(chunks))
		for _, c := range chunks {
			slots = append(slots, j.acc.Append(e.Key, e.Kind, c.Entity, c.Index, c.Vertices))
		}
		j.index.Register(e.ID, slots)
	}
}

// finish moves the job to a terminal status. A cancelled job drops its
// staging state so nothing it produced can be observed afterwards.
func (j *BuildJob) finish(status JobStatus) JobStatus {
	j.status = status
	if status == JobCancelled {
		j.acc = nil
		j.index = nil
		Logger().Info("build cancelled",
			slog.Int("processed", j.cursor),
			slog.Int("total", len(j.entities)))
	}
	j.reportProgress()
	return status
}

func (j *BuildJob) warn(id EntityID, reason string) {
	j.warnings = append(j.warnings, Warning{Entity: id, Reason: reason})
	Logger().Warn("entity skipped",
		slog.Uint64("entity", uint64(id)),
		slog.String("reason", reason))
}

func (j *BuildJob) reportProgress() {
	if j.opts.progressFn != nil {
		j.opts.progressFn(j.Progress())
	}
}

func (j *BuildJob) state() BuildState {
	switch j.status {
	case JobDone:
		return StateReady
	case JobCancelled:
		return StateCancelled
	default:
		return StateBuilding
	}
}

// validateEntity returns a non-empty reason if the entity's data cannot
// be rendered: a reserved id, too few vertices to form one primitive, a
// vertex count that leaves a dangling partial primitive, or non-finite
// coordinates. Empty vertex lists on marker entities are a valid no-op
// and are not flagged here; they simply produce no chunks.
func validateEntity(e Entity) string {
	if e.ID == 0 {
		return "reserved zero id"
	}
	if len(e.Vertices) == 0 {
		return ""
	}
	if len(e.Vertices) < e.Kind.minVertices() {
		return fmt.Sprintf("%s needs at least %d vertices, got %d",
			e.Kind, e.Kind.minVertices(), len(e.Vertices))
	}
	if s := e.Kind.Stride(); s > 1 && len(e.Vertices)%s != 0 {
		return fmt.Sprintf("%s vertex count %d is not a multiple of %d",
			e.Kind, len(e.Vertices), s)
	}
	if !verticesFinite(e.Vertices) {
		return "non-finite vertex data"
	}
	return ""
}
