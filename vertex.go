package geobatch

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Vertex is a single 3D position. It aliases f32.Vec3 so vertex slices can
// be handed to GPU upload paths without conversion; index 0 is X, 1 is Y,
// 2 is Z.
type Vertex = f32.Vec3

// V is a convenience function to create a Vertex.
func V(x, y, z float32) Vertex {
	return Vertex{x, y, z}
}

// vertexFinite reports whether every component of v is a finite number.
// NaN or infinite coordinates mark an entity as malformed.
func vertexFinite(v Vertex) bool {
	for _, c := range v {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// verticesFinite reports whether all vertices in vs are finite.
func verticesFinite(vs []Vertex) bool {
	for _, v := range vs {
		if !vertexFinite(v) {
			return false
		}
	}
	return true
}
