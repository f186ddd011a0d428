package geobatch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Chunk is a capacity-bounded slice of one entity's vertex list, tagged
// with its source entity and position in the split. Chunks of one entity,
// concatenated in index order with boundary overlap removed, reconstruct
// the original vertex list exactly.
//
// Chunk vertex slices alias the source entity's slice; they are read-only
// views, never mutated.
type Chunk struct {
	Entity   EntityID
	Index    int
	Vertices []Vertex
}

// SplitEntity splits one entity's vertex list into chunks of at most
// capacity vertices.
//
// A list that already fits yields exactly one chunk; an empty list yields
// nil. Connected kinds (KindPolyline) duplicate one vertex at every chunk
// boundary so the segment joining two chunks survives the split. Discrete
// kinds get no overlap; their chunk lengths are instead rounded down to a
// multiple of the kind's stride so no primitive straddles a boundary.
//
// SplitEntity is pure and deterministic. It panics if capacity cannot
// hold a single primitive of the kind; that is a configuration defect,
// not a data condition.
func SplitEntity(id EntityID, kind GeometryKind, verts []Vertex, capacity int) []Chunk {
	if capacity < 1 {
		panic("geobatch: SplitEntity capacity must be positive")
	}
	if capacity < kind.Stride() {
		panic("geobatch: SplitEntity capacity smaller than one " + kind.String() + " primitive")
	}

	n := len(verts)
	if n == 0 {
		return nil
	}
	if n <= capacity {
		return []Chunk{{Entity: id, Index: 0, Vertices: verts}}
	}

	if kind.Connected() {
		return splitConnected(id, verts, capacity)
	}
	return splitDiscrete(id, kind, verts, capacity)
}

// splitConnected splits a line strip with a one-vertex overlap at every
// chunk boundary: each chunk after the first starts at the last vertex of
// its predecessor.
func splitConnected(id EntityID, verts []Vertex, capacity int) []Chunk {
	if capacity < 2 {
		panic("geobatch: cannot split a connected strip with capacity < 2")
	}

	chunks := make([]Chunk, 0, 1+(len(verts)-2)/(capacity-1))
	start := 0
	for start < len(verts)-1 {
		end := start + capacity
		if end > len(verts) {
			end = len(verts)
		}
		chunks = append(chunks, Chunk{
			Entity:   id,
			Index:    len(chunks),
			Vertices: verts[start:end],
		})
		// Next chunk re-emits the boundary vertex.
		start = end - 1
	}
	return chunks
}

// splitDiscrete splits point, segment, or triangle lists with no overlap.
// Chunk lengths are multiples of the stride; a trailing remainder that is
// not a whole primitive stays in the final chunk (upstream validation
// flags such entities before they reach a build).
func splitDiscrete(id EntityID, kind GeometryKind, verts []Vertex, capacity int) []Chunk {
	stride := kind.Stride()
	usable := capacity - capacity%stride

	chunks := make([]Chunk, 0, (len(verts)+usable-1)/usable)
	for start := 0; start < len(verts); start += usable {
		end := start + usable
		if end > len(verts) {
			end = len(verts)
		}
		chunks = append(chunks, Chunk{
			Entity:   id,
			Index:    len(chunks),
			Vertices: verts[start:end],
		})
	}
	return chunks
}

// ReassembleChunks concatenates chunks of one entity back into its
// original vertex list, dropping the duplicated boundary vertex of
// connected kinds. It is the inverse of SplitEntity and exists for
// verification and debug tooling.
func ReassembleChunks(kind GeometryKind, chunks []Chunk) []Vertex {
	if len(chunks) == 0 {
		return nil
	}

	total := 0
	for _, c := range chunks {
		total += len(c.Vertices)
	}
	out := make([]Vertex, 0, total)
	for i, c := range chunks {
		vs := c.Vertices
		if i > 0 && kind.Connected() {
			vs = vs[1:]
		}
		out = append(out, vs...)
	}
	return out
}

// splitAll chunks a slice of entities concurrently with up to workers
// goroutines. Results are positionally aligned with the input, so the
// caller can append them in input order and keep accumulation
// deterministic regardless of worker count. Returns ctx.Err() if the
// context is cancelled mid-way.
func splitAll(ctx context.Context, entities []Entity, capacity, workers int) ([][]Chunk, error) {
	out := make([][]Chunk, len(entities))

	if workers <= 1 {
		for i, e := range entities {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = SplitEntity(e.ID, e.Kind, e.Vertices, capacity)
		}
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entities {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = SplitEntity(e.ID, e.Kind, e.Vertices, capacity)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
