package geobatch

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
)

func waitReady(t *testing.T, lc *BufferLifecycle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := lc.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestLifecycleInitialState(t *testing.T) {
	lc, err := NewBufferLifecycle()
	if err != nil {
		t.Fatal(err)
	}
	if got := lc.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}
	if got := lc.RenderableBatches(); got != nil {
		t.Errorf("RenderableBatches() = %d batches, want none", len(got))
	}
	if _, ok := lc.LookupSlot(1); ok {
		t.Error("LookupSlot on idle lifecycle reported found")
	}
	if err := lc.Wait(context.Background()); err != nil {
		t.Errorf("Wait with no build = %v", err)
	}
}

func TestNewBufferLifecycleInvalidOptions(t *testing.T) {
	_, err := NewBufferLifecycle(WithMaxVerticesPerBuffer(-5))
	var ioe *InvalidOptionError
	if !errors.As(err, &ioe) {
		t.Fatalf("err = %v, want *InvalidOptionError", err)
	}
	if ioe.Option != "MaxVerticesPerBuffer" || ioe.Value != -5 {
		t.Errorf("error fields = %+v", ioe)
	}
}

// Capacity 10, three 4-vertex entities under one key: two renderable
// batches with point-list topology.
func TestLifecycleRebuild(t *testing.T) {
	lc, err := NewBufferLifecycle(WithMaxVerticesPerBuffer(10))
	if err != nil {
		t.Fatal(err)
	}

	lc.Rebuild(makeEntities(3, 4, redKey))
	waitReady(t, lc)

	if got := lc.State(); got != StateReady {
		t.Fatalf("State() = %v, want ready", got)
	}

	batches := lc.RenderableBatches()
	if len(batches) != 2 {
		t.Fatalf("RenderableBatches() = %d, want 2", len(batches))
	}
	wantSizes := []int{8, 4}
	for i, rb := range batches {
		if rb.Key != redKey {
			t.Errorf("batch %d key = %v, want %v", i, rb.Key, redKey)
		}
		if rb.Topology != gputypes.PrimitiveTopologyPointList {
			t.Errorf("batch %d topology = %v, want point list", i, rb.Topology)
		}
		if rb.Usage != gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst {
			t.Errorf("batch %d usage = %v", i, rb.Usage)
		}
		if rb.VertexCount() != wantSizes[i] {
			t.Errorf("batch %d holds %d vertices, want %d", i, rb.VertexCount(), wantSizes[i])
		}
		if got := len(rb.Float32s()); got != wantSizes[i]*3 {
			t.Errorf("batch %d Float32s len = %d, want %d", i, got, wantSizes[i]*3)
		}
	}

	if lc.BatchCount() != 2 || lc.VertexCount() != 12 {
		t.Errorf("counts = (%d, %d), want (2, 12)", lc.BatchCount(), lc.VertexCount())
	}

	if p := lc.Progress(); p.Processed != 3 || p.Total != 3 || p.State != StateReady {
		t.Errorf("Progress() = %+v, want 3/3 ready", p)
	}
}

func TestLifecycleLookupResolve(t *testing.T) {
	lc, err := NewBufferLifecycle(WithMaxVerticesPerBuffer(10))
	if err != nil {
		t.Fatal(err)
	}
	entities := []Entity{
		{ID: 11, Key: redKey, Kind: KindMarkers, Vertices: makeVerts(4)},
		{ID: 12, Key: redKey, Kind: KindPolyline, Vertices: makeVerts(25)},
	}
	lc.Rebuild(entities)
	waitReady(t, lc)

	slot, ok := lc.LookupSlot(11)
	if !ok {
		t.Fatal("LookupSlot(11) not found")
	}
	if got := lc.Resolve(slot); len(got) != 4 {
		t.Errorf("Resolve(slot) = %d vertices, want 4", len(got))
	}

	slots := lc.LookupSlots(12)
	if len(slots) != 3 {
		t.Fatalf("LookupSlots(12) = %d slots, want 3", len(slots))
	}
	total := 0
	for _, s := range slots {
		total += len(lc.Resolve(s))
	}
	// 25 vertices plus one duplicated boundary vertex per extra chunk.
	if total != 27 {
		t.Errorf("chunks resolve to %d vertices, want 27", total)
	}
}

func TestLifecycleClear(t *testing.T) {
	lc, err := NewBufferLifecycle()
	if err != nil {
		t.Fatal(err)
	}
	lc.Rebuild(makeEntities(10, 2, redKey))
	waitReady(t, lc)

	lc.Clear()

	if got := lc.State(); got != StateIdle {
		t.Errorf("State() after Clear = %v, want idle", got)
	}
	if got := lc.RenderableBatches(); got != nil {
		t.Error("RenderableBatches() non-empty after Clear")
	}
	if _, ok := lc.LookupSlot(1); ok {
		t.Error("LookupSlot found an entity after Clear")
	}
}

// Cancelling the first build by clearing mid-flight leaves nothing
// behind: no batches, no selection entries.
func TestLifecycleCancelFirstBuild(t *testing.T) {
	started := make(chan struct{})
	resume := make(chan struct{})
	lc, err := NewBufferLifecycle(
		WithWorkUnitSize(1),
		WithProgressFunc(func(p Progress) {
			if p.Processed == 40 && p.State == StateBuilding {
				close(started)
				<-resume
			}
		}))
	if err != nil {
		t.Fatal(err)
	}

	lc.Rebuild(makeEntities(100, 2, redKey))
	<-started

	// ~40% of the build is done; cancel it.
	lc.Clear()
	close(resume)
	waitReady(t, lc)

	if got := lc.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}
	if got := lc.RenderableBatches(); got != nil {
		t.Errorf("RenderableBatches() = %d batches, want none from the cancelled job", len(got))
	}
	for i := 1; i <= 100; i++ {
		if _, ok := lc.LookupSlot(EntityID(i)); ok {
			t.Fatalf("entity %d from the cancelled job is registered", i)
		}
	}
}

// A superseding rebuild wins: after it commits, the selection index
// holds only entities from the latest request.
func TestLifecycleRebuildSupersedes(t *testing.T) {
	started := make(chan struct{})
	resume := make(chan struct{})
	lc, err := NewBufferLifecycle(
		WithWorkUnitSize(1),
		WithProgressFunc(func(p Progress) {
			if p.Processed == 1 && p.Total == 500 && p.State == StateBuilding {
				close(started)
				<-resume
			}
		}))
	if err != nil {
		t.Fatal(err)
	}

	first := makeEntities(500, 2, redKey)
	lc.Rebuild(first)
	<-started

	second := []Entity{
		{ID: 9001, Key: blueKey, Kind: KindMarkers, Vertices: makeVerts(3)},
		{ID: 9002, Key: blueKey, Kind: KindMarkers, Vertices: makeVerts(3)},
	}
	lc.Rebuild(second)
	close(resume)
	waitReady(t, lc)

	if got := lc.State(); got != StateReady {
		t.Fatalf("State() = %v, want ready", got)
	}
	if _, ok := lc.LookupSlot(9001); !ok {
		t.Error("entity from the latest request missing")
	}
	for _, id := range []EntityID{1, 250, 500} {
		if _, ok := lc.LookupSlot(id); ok {
			t.Errorf("entity %d from the superseded job is registered", id)
		}
	}
	batches := lc.RenderableBatches()
	if len(batches) != 1 || batches[0].Key != blueKey {
		t.Errorf("snapshot = %d batches, want 1 blue batch", len(batches))
	}
}

// While a rebuild is in flight, the previously committed snapshot keeps
// serving; the new result only appears once it commits.
func TestLifecycleSnapshotStableDuringRebuild(t *testing.T) {
	building := make(chan struct{})
	resume := make(chan struct{})
	lc, err := NewBufferLifecycle(
		WithWorkUnitSize(1),
		WithProgressFunc(func(p Progress) {
			if p.Total == 200 && p.Processed == 1 && p.State == StateBuilding {
				close(building)
				<-resume
			}
		}))
	if err != nil {
		t.Fatal(err)
	}

	lc.Rebuild(makeEntities(5, 2, redKey))
	waitReady(t, lc)
	committed := lc.RenderableBatches()

	lc.Rebuild(makeEntities(200, 2, blueKey))
	<-building

	mid := lc.RenderableBatches()
	if len(mid) != len(committed) || len(mid) == 0 || mid[0].Key != redKey {
		t.Error("in-flight rebuild disturbed the committed snapshot")
	}

	close(resume)
	waitReady(t, lc)
	after := lc.RenderableBatches()
	if len(after) == 0 || after[0].Key != blueKey {
		t.Error("committed snapshot not replaced after rebuild")
	}
}

func TestLifecycleWarnings(t *testing.T) {
	lc, err := NewBufferLifecycle()
	if err != nil {
		t.Fatal(err)
	}
	entities := makeEntities(10, 2, redKey)
	entities[4].Vertices[0][2] = float32(math.Inf(-1))

	lc.Rebuild(entities)
	waitReady(t, lc)

	warnings := lc.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("len(Warnings()) = %d, want 1", len(warnings))
	}
	if warnings[0].Entity != 5 {
		t.Errorf("warning entity = %d, want 5", warnings[0].Entity)
	}
	if got := lc.State(); got != StateReady {
		t.Errorf("State() = %v, want ready despite warning", got)
	}
}

// Two lifecycles never share state.
func TestLifecycleIsolation(t *testing.T) {
	a, err := NewBufferLifecycle()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBufferLifecycle()
	if err != nil {
		t.Fatal(err)
	}

	a.Rebuild(makeEntities(4, 2, redKey))
	waitReady(t, a)

	if got := b.RenderableBatches(); got != nil {
		t.Error("scene B sees scene A's batches")
	}
	if _, ok := b.LookupSlot(1); ok {
		t.Error("scene B sees scene A's selection index")
	}

	b.Clear()
	if len(a.RenderableBatches()) == 0 {
		t.Error("clearing scene B discarded scene A's batches")
	}
}

// Full builds over identical input are identical, run to run.
func TestLifecycleDeterministic(t *testing.T) {
	entities := []Entity{
		{ID: 1, Key: redKey, Kind: KindPolyline, Vertices: makeVerts(25)},
		{ID: 2, Key: blueKey, Kind: KindMarkers, Vertices: makeVerts(6)},
		{ID: 3, Key: redKey, Kind: KindMarkers, Vertices: makeVerts(6)},
	}

	build := func() []RenderableBatch {
		lc, err := NewBufferLifecycle(WithMaxVerticesPerBuffer(10))
		if err != nil {
			t.Fatal(err)
		}
		lc.Rebuild(entities)
		waitReady(t, lc)
		return lc.RenderableBatches()
	}

	a, b := build(), build()
	if len(a) != len(b) {
		t.Fatalf("batch counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Key != b[i].Key || a[i].Topology != b[i].Topology ||
			a[i].VertexCount() != b[i].VertexCount() {
			t.Errorf("batch %d differs between builds", i)
		}
	}
}
