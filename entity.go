package geobatch

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// EntityID identifies one logical entity across the whole pipeline.
// IDs are assigned by the domain layer; 0 is reserved and never valid.
type EntityID uint64

// GeometryKind describes how an entity's vertex list is interpreted as
// primitives. The kind determines the primitive topology of the batches
// the entity lands in, and how the entity may be split when it exceeds
// the per-buffer capacity.
type GeometryKind uint8

const (
	// KindMarkers is a point list: every vertex is an independent marker.
	KindMarkers GeometryKind = iota
	// KindSegments is a line list: every vertex pair is an independent
	// segment (cross glyphs, tick marks, disconnected traces).
	KindSegments
	// KindPolyline is a line strip: consecutive vertices are connected.
	// Splitting a polyline duplicates one vertex at each chunk boundary
	// so the joining segment survives.
	KindPolyline
	// KindTriangles is a triangle list: every vertex triple is an
	// independent filled triangle.
	KindTriangles
)

// String returns the kind name for logs and test output.
func (k GeometryKind) String() string {
	switch k {
	case KindMarkers:
		return "markers"
	case KindSegments:
		return "segments"
	case KindPolyline:
		return "polyline"
	case KindTriangles:
		return "triangles"
	default:
		return fmt.Sprintf("GeometryKind(%d)", uint8(k))
	}
}

// Topology returns the primitive topology a renderer should use for
// buffers holding this kind.
func (k GeometryKind) Topology() gputypes.PrimitiveTopology {
	switch k {
	case KindMarkers:
		return gputypes.PrimitiveTopologyPointList
	case KindSegments:
		return gputypes.PrimitiveTopologyLineList
	case KindPolyline:
		return gputypes.PrimitiveTopologyLineStrip
	case KindTriangles:
		return gputypes.PrimitiveTopologyTriangleList
	default:
		return gputypes.PrimitiveTopologyPointList
	}
}

// Stride returns the number of vertices per primitive: 1 for point lists,
// 2 for line lists, 3 for triangle lists. Connected kinds have stride 1
// because any vertex count >= 2 forms a valid strip.
func (k GeometryKind) Stride() int {
	switch k {
	case KindSegments:
		return 2
	case KindTriangles:
		return 3
	default:
		return 1
	}
}

// Connected reports whether consecutive vertices form one connected
// sequence. Connected kinds need a shared boundary vertex when chunked;
// discrete kinds instead need chunk lengths aligned to their stride.
func (k GeometryKind) Connected() bool {
	return k == KindPolyline
}

// minVertices returns the smallest vertex count that forms at least one
// primitive of this kind. Entities below this are malformed.
func (k GeometryKind) minVertices() int {
	if k == KindPolyline {
		return 2
	}
	return k.Stride()
}

// VisualKey is the attribute entities are grouped by: all entities with
// an equal key (and equal kind) share batches. It is a comparable value,
// not an encoded string, so grouping never depends on string parsing.
type VisualKey struct {
	// Color is the display color for every entity under this key.
	Color gputypes.Color
	// Category is a free-form grouping label from the domain layer
	// (e.g. an assay bin or layer name). May be empty.
	Category string
}

// String returns a compact form for logs.
func (k VisualKey) String() string {
	return fmt.Sprintf("{%s rgba(%.2f,%.2f,%.2f,%.2f)}",
		k.Category, k.Color.R, k.Color.G, k.Color.B, k.Color.A)
}

// Entity is one logical drawable thing from the domain layer: an
// identity, a grouping key, a geometry kind, and an ordered vertex list.
// Entities are value inputs; geobatch never mutates them.
type Entity struct {
	ID       EntityID
	Key      VisualKey
	Kind     GeometryKind
	Vertices []Vertex
}

// groupKey is what batches are actually keyed by. A draw buffer can carry
// only one primitive topology, so two kinds under the same VisualKey
// occupy sibling batches.
type groupKey struct {
	key  VisualKey
	kind GeometryKind
}
