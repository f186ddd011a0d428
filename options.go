package geobatch

// Default configuration constants.
const (
	// DefaultMaxVerticesPerBuffer bounds the vertex count of every batch.
	// 10k vertices keeps individual uploads well under per-buffer limits
	// on all backends the gogpu stack targets.
	DefaultMaxVerticesPerBuffer = 10000

	// DefaultWorkUnitSize is the number of entities a build processes
	// between cooperative yield points.
	DefaultWorkUnitSize = 100
)

// Option configures a BufferLifecycle or a standalone BuildJob during
// creation. Use functional options to customize behavior.
//
// Example:
//
//	lc, err := geobatch.NewBufferLifecycle(
//	    geobatch.WithMaxVerticesPerBuffer(4096),
//	    geobatch.WithWorkUnitSize(250),
//	)
type Option func(*options)

// options holds resolved configuration shared by jobs and lifecycles.
type options struct {
	maxVertices  int
	workUnitSize int
	chunkWorkers int
	progressFn   func(Progress)
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		maxVertices:  DefaultMaxVerticesPerBuffer,
		workUnitSize: DefaultWorkUnitSize,
		chunkWorkers: 1,
	}
}

// validate rejects configurations that can never work.
func (o *options) validate() error {
	if o.maxVertices < 1 {
		return &InvalidOptionError{Option: "MaxVerticesPerBuffer", Value: o.maxVertices}
	}
	if o.workUnitSize < 1 {
		return &InvalidOptionError{Option: "WorkUnitSize", Value: o.workUnitSize}
	}
	if o.chunkWorkers < 1 {
		return &InvalidOptionError{Option: "ChunkWorkers", Value: o.chunkWorkers}
	}
	return nil
}

// WithMaxVerticesPerBuffer sets the maximum vertex count of any single
// batch. Must be positive. Default: DefaultMaxVerticesPerBuffer.
func WithMaxVerticesPerBuffer(n int) Option {
	return func(o *options) {
		o.maxVertices = n
	}
}

// WithWorkUnitSize sets how many entities a build processes between
// yield points. Smaller units yield more often at the cost of more
// bookkeeping. Must be positive. Default: DefaultWorkUnitSize.
func WithWorkUnitSize(n int) Option {
	return func(o *options) {
		o.workUnitSize = n
	}
}

// WithChunkWorkers sets the number of goroutines used to split oversized
// entities inside one work unit. Chunking is pure and order-independent;
// accumulation stays single-writer regardless of this setting, so output
// is deterministic for any worker count. Default: 1 (no parallelism).
func WithChunkWorkers(n int) Option {
	return func(o *options) {
		o.chunkWorkers = n
	}
}

// WithProgressFunc installs a callback invoked after every processed
// work unit and on every terminal state change. The callback runs on the
// build goroutine and must not block; hand the value off to your UI
// loop instead of doing work in place.
func WithProgressFunc(fn func(Progress)) Option {
	return func(o *options) {
		o.progressFn = fn
	}
}
