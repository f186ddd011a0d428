// Command geobatchdemo builds batches for a synthetic survey dataset and
// prints what the rendering layer would receive. It demonstrates
// incremental builds, progress reporting, rebuild supersession, and
// slot lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"

	"github.com/gogpu/geobatch"
	"github.com/gogpu/gputypes"
)

func main() {
	var (
		entities = flag.Int("entities", 50_000, "number of synthetic entities")
		capacity = flag.Int("capacity", geobatch.DefaultMaxVerticesPerBuffer, "max vertices per buffer")
		unit     = flag.Int("unit", geobatch.DefaultWorkUnitSize, "entities per work unit")
		workers  = flag.Int("workers", 4, "chunk workers")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	geobatch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	lc, err := geobatch.NewBufferLifecycle(
		geobatch.WithMaxVerticesPerBuffer(*capacity),
		geobatch.WithWorkUnitSize(*unit),
		geobatch.WithChunkWorkers(*workers),
		geobatch.WithProgressFunc(func(p geobatch.Progress) {
			if p.Total > 0 && p.Processed%(p.Total/10+1) == 0 {
				fmt.Printf("\rbuilding %d/%d", p.Processed, p.Total)
			}
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	dataset := synthesize(*entities)
	lc.Rebuild(dataset)
	if err := lc.Wait(context.Background()); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\rbuild complete: state=%s\n", lc.State())

	batches := lc.RenderableBatches()
	fmt.Printf("%d batches, %d vertices total, %d warnings\n",
		len(batches), lc.VertexCount(), len(lc.Warnings()))
	for i, rb := range batches {
		if i == 8 {
			fmt.Printf("  ... %d more\n", len(batches)-i)
			break
		}
		fmt.Printf("  batch %d: key=%s topology=%v vertices=%d (%d bytes)\n",
			i, rb.Key, rb.Topology, rb.VertexCount(), rb.SizeBytes())
	}

	// Highlight lookup for a handful of entities.
	for _, id := range []geobatch.EntityID{1, geobatch.EntityID(*entities / 2), geobatch.EntityID(*entities)} {
		slots := lc.LookupSlots(id)
		fmt.Printf("entity %d: %d slot(s)", id, len(slots))
		for _, s := range slots {
			fmt.Printf(" [batch %d, %d+%d]", s.Batch, s.Offset, s.Len)
		}
		fmt.Println()
	}
}

// synthesize builds a mixed dataset: mostly small markers and crosses,
// a few long polylines that need chunking, and one malformed entity to
// exercise the warning path.
func synthesize(n int) []geobatch.Entity {
	rng := rand.New(rand.NewSource(1))
	keys := []geobatch.VisualKey{
		{Color: gputypes.Color{R: 1, A: 1}, Category: "high"},
		{Color: gputypes.Color{G: 1, A: 1}, Category: "mid"},
		{Color: gputypes.Color{B: 1, A: 1}, Category: "low"},
	}

	out := make([]geobatch.Entity, 0, n)
	for i := 1; i <= n; i++ {
		e := geobatch.Entity{
			ID:  geobatch.EntityID(i),
			Key: keys[rng.Intn(len(keys))],
		}
		switch {
		case i%1000 == 0:
			// Long downhole trace.
			e.Kind = geobatch.KindPolyline
			e.Vertices = walk(rng, 30_000)
		case i%3 == 0:
			// Cross glyph: two segments.
			e.Kind = geobatch.KindSegments
			c := point(rng)
			e.Vertices = []geobatch.Vertex{
				{c[0] - 1, c[1], c[2]}, {c[0] + 1, c[1], c[2]},
				{c[0], c[1] - 1, c[2]}, {c[0], c[1] + 1, c[2]},
			}
		default:
			e.Kind = geobatch.KindMarkers
			e.Vertices = []geobatch.Vertex{point(rng)}
		}
		out = append(out, e)
	}

	// One deliberately malformed entity.
	out[n/2].Vertices = []geobatch.Vertex{{float32(math.NaN()), 0, 0}}
	return out
}

func point(rng *rand.Rand) geobatch.Vertex {
	return geobatch.V(rng.Float32()*1000, rng.Float32()*1000, rng.Float32()*-500)
}

func walk(rng *rand.Rand, n int) []geobatch.Vertex {
	vs := make([]geobatch.Vertex, n)
	p := point(rng)
	for i := range vs {
		p[0] += rng.Float32() - 0.5
		p[1] += rng.Float32() - 0.5
		p[2] -= rng.Float32()
		vs[i] = p
	}
	return vs
}
