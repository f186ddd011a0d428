package geobatch

import "github.com/gogpu/gputypes"

// RenderableBatch is the read-only form of one sealed batch handed to
// the rendering layer: everything a renderer needs to create and draw a
// vertex buffer, with no reference back into mutable pipeline state.
type RenderableBatch struct {
	// Key is the visual key shared by every vertex in the batch.
	Key VisualKey
	// Topology is the primitive topology to draw the buffer with.
	Topology gputypes.PrimitiveTopology
	// Vertices is the batch's vertex data. It is immutable; renderers
	// may read it from any goroutine.
	Vertices []Vertex
	// Usage is the buffer usage to create the GPU buffer with.
	Usage gputypes.BufferUsage
}

// VertexCount returns the number of vertices in the batch.
func (rb RenderableBatch) VertexCount() int { return len(rb.Vertices) }

// SizeBytes returns the byte size of the vertex data as uploaded:
// three float32 components per vertex.
func (rb RenderableBatch) SizeBytes() int { return len(rb.Vertices) * 3 * 4 }

// Float32s returns the vertex data flattened to x,y,z triples, the
// layout GPU upload paths expect. The result is freshly allocated.
func (rb RenderableBatch) Float32s() []float32 {
	out := make([]float32, 0, len(rb.Vertices)*3)
	for _, v := range rb.Vertices {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

// renderableUsage is the usage hint for all batch buffers: bound as a
// vertex buffer, written once by copy.
const renderableUsage = gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
