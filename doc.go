// Package geobatch packs large collections of small geometric entities
// into capacity-bounded vertex buffers for GPU rendering.
//
// # Overview
//
// Interactive viewers for survey and CAD data routinely hold hundreds of
// thousands of tiny entities (markers, segment crosses, polylines). Giving
// each entity its own draw buffer destroys frame rates; putting everything
// in one buffer violates per-buffer vertex limits on real hardware.
// geobatch sits between the two: it splits oversized entities into bounded
// chunks, packs entities that share a visual key into shared batches, and
// remembers where every entity landed so it can still be highlighted.
//
// # Quick Start
//
//	import "github.com/gogpu/geobatch"
//
//	lc, err := geobatch.NewBufferLifecycle(
//	    geobatch.WithMaxVerticesPerBuffer(10000),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Build batches in the background; the call returns immediately.
//	lc.Rebuild(entities)
//
//	// Later, on the render thread:
//	for _, rb := range lc.RenderableBatches() {
//	    upload(rb.Float32s(), rb.Topology)
//	}
//
// # Architecture
//
// The library is organized around five collaborators:
//   - SplitEntity: splits one oversized entity into bounded chunks
//   - Accumulator: packs chunks into per-key, capacity-bounded batches
//   - SelectionIndex: maps entity IDs to batch slots for highlighting
//   - BuildJob: steppable incremental build over an entity collection
//   - BufferLifecycle: orchestration, rebuild supersession, snapshots
//
// Builds are incremental and cooperative: a BuildJob processes one work
// unit of entities per Step and never holds the caller longer than that.
// BufferLifecycle drives jobs on a background goroutine and installs
// results atomically, so a rebuild is all-or-nothing and a superseded
// build leaves no trace.
//
// # Scope
//
// geobatch does not parse input formats, assign colors, cull, or draw.
// Output batches carry gputypes vocabulary (PrimitiveTopology,
// BufferUsage) so a gogpu/wgpu renderer can consume them directly.
package geobatch
