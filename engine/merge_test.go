package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/table"
)

type mergeFixture struct {
	ns      *namespace.Namespace
	spec    table.Spec
	objects *memStore
	duck    *destination.DuckDBStore
	cps     checkpoint.Store
}

func newMergeFixture(t *testing.T) *mergeFixture {
	f := &mergeFixture{
		ns:      testNamespace(t),
		spec:    testSpec(t, "t2", "id"),
		objects: newMemStore(),
		duck:    newDestination(t),
	}
	f.cps = checkpoint.NewStorageStore(f.objects)
	f.objects.stage(t, f.ns, f.spec, "F1", time.Second, testHeader, [][]string{
		change(1, "a", "INSERT", 1),
		change(2, "b", "INSERT", 1),
		change(3, "c", "INSERT", 1),
	})
	f.objects.stage(t, f.ns, f.spec, "F2", 2*time.Second, testHeader, [][]string{
		{"2", "b", "DELETE", "TRUE", "r2", "2"},
		{"2", "b2", "INSERT", "TRUE", "r2", "2"},
		change(3, "c", "DELETE", 2),
	})
	return f
}

func (f *mergeFixture) stream(t *testing.T, dest destination.Store, cps checkpoint.Store) *MergeStream {
	t.Helper()
	src := OpenSource(SourceConfig{Log: testLogger(), Objects: f.objects, Namespace: f.ns, Table: f.spec, StopWhenIdle: true})
	m, err := NewMergeStream(src, MergeConfig{
		Log:              testLogger(),
		Destination:      dest,
		Checkpoints:      cps,
		DestinationTable: "t2",
		CheckpointPath:   f.ns.CheckpointPath(f.spec, table.ModeMerge),
		MaxApplyRetries:  1,
		RetryBackoff:     time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMergeStreamReplicatesChanges(t *testing.T) {
	f := newMergeFixture(t)
	m := f.stream(t, f.duck, f.cps)
	if m.State() != StateUnstarted {
		t.Fatalf("expected UNSTARTED; got %v", m.State())
	}
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateStopped {
		t.Fatalf("expected STOPPED; got %v", m.State())
	}
	if got := dumpTable(t, f.duck, "t2"); got != "1:a 2:b2" {
		t.Fatalf("unexpected destination rows %q", got)
	}
	if s := m.Status(); s.Batches != 1 || s.RowsApplied != 6 || s.State != "STOPPED" {
		t.Fatalf("unexpected status %+v", s)
	}
	if err := m.Run(context.Background()); err == nil {
		t.Fatal("expected error running a stream twice")
	}
}

func TestMergeStreamIsIdempotent(t *testing.T) {
	f := newMergeFixture(t)
	if err := f.stream(t, f.duck, f.cps).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Losing the checkpoint replays every file against the same table.
	if err := f.cps.Save(context.Background(), f.ns.CheckpointPath(f.spec, table.ModeMerge), checkpoint.State{}); err != nil {
		t.Fatal(err)
	}
	if err := f.stream(t, f.duck, f.cps).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := dumpTable(t, f.duck, "t2"); got != "1:a 2:b2" {
		t.Fatalf("expected the same rows after replay; got %q", got)
	}
}

func TestMergeStreamRecoversFromCrashBeforeCheckpoint(t *testing.T) {
	ctx := context.Background()
	f := newMergeFixture(t)
	cps := &failingSaves{Store: f.cps, failSaves: true}
	m := f.stream(t, f.duck, cps)
	err := m.Run(ctx)
	var applyErr *MergeApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected MergeApplyError; got %v", err)
	}
	if applyErr.Table != "demo.rac.t2" || applyErr.BatchID != 1 || applyErr.Checkpoint.BatchID != 0 {
		t.Fatalf("unexpected error detail %+v", applyErr)
	}
	if m.State() != StateFailed || m.Err() == nil {
		t.Fatalf("expected FAILED with an error; got %v %v", m.State(), m.Err())
	}
	// The batch was committed but not checkpointed.
	if got := dumpTable(t, f.duck, "t2"); got != "1:a 2:b2" {
		t.Fatalf("unexpected destination rows %q", got)
	}
	cps.failSaves = false
	if err = f.stream(t, f.duck, cps).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if got := dumpTable(t, f.duck, "t2"); got != "1:a 2:b2" {
		t.Fatalf("expected the same rows after recovery; got %q", got)
	}
	state, err := f.cps.Load(ctx, f.ns.CheckpointPath(f.spec, table.ModeMerge))
	if err != nil {
		t.Fatal(err)
	}
	if state.BatchID != 1 || state.FilesApplied != 2 {
		t.Fatalf("unexpected checkpoint %+v", state)
	}
}

func TestMergeStreamRetriesApply(t *testing.T) {
	f := newMergeFixture(t)
	dest := &flakyDestination{Store: f.duck, failures: 1}
	if err := f.stream(t, dest, f.cps).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if dest.calls != 2 {
		t.Fatalf("expected 2 attempts; got %v", dest.calls)
	}
	dest = &flakyDestination{Store: f.duck, failures: -1}
	f.objects.stage(t, f.ns, f.spec, "F3", 3*time.Second, testHeader, [][]string{change(4, "d", "INSERT", 3)})
	m := f.stream(t, dest, f.cps)
	err := m.Run(context.Background())
	var applyErr *MergeApplyError
	if !errors.As(err, &applyErr) || applyErr.Attempts != 2 || applyErr.Checkpoint.BatchID != 1 {
		t.Fatalf("expected MergeApplyError after 2 attempts at checkpoint batch 1; got %v", err)
	}
}

func TestMergeStreamRequiresMergeKeys(t *testing.T) {
	ns := testNamespace(t)
	src := OpenSource(SourceConfig{Log: testLogger(), Objects: newMemStore(), Namespace: ns, Table: testSpec(t, "t1")})
	_, err := NewMergeStream(src, MergeConfig{Log: testLogger()})
	var cfgErr *table.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError; got %v", err)
	}
}

func TestMergeStreamFailsOnUnknownMergeKey(t *testing.T) {
	f := newMergeFixture(t)
	f.spec = testSpec(t, "t2", "missing")
	err := f.stream(t, f.duck, f.cps).Run(context.Background())
	var schemaErr *SchemaIncompatibleError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaIncompatibleError; got %v", err)
	}
}

func TestMergeStreamStop(t *testing.T) {
	f := newMergeFixture(t)
	m := f.stream(t, f.duck, f.cps)
	m.Stop()
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateStopped || m.Status().Batches != 0 {
		t.Fatalf("expected STOPPED before any batch; got %v %+v", m.State(), m.Status())
	}
	// Stop while waiting for new files.
	src := OpenSource(SourceConfig{Log: testLogger(), Objects: f.objects, Namespace: f.ns, Table: f.spec, PollInterval: time.Millisecond})
	m, err := NewMergeStream(src, MergeConfig{
		Log:              testLogger(),
		Destination:      f.duck,
		Checkpoints:      f.cps,
		DestinationTable: "t2",
		CheckpointPath:   f.ns.CheckpointPath(f.spec, table.ModeMerge),
	})
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error)
	go func() { done <- m.Run(context.Background()) }()
	deadline := time.Now().Add(5 * time.Second)
	for m.Status().Batches == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	if err = <-done; err != nil {
		t.Fatal(err)
	}
	if m.State() != StateStopped || m.Status().Batches != 1 {
		t.Fatalf("expected STOPPED after one batch; got %v %+v", m.State(), m.Status())
	}
	if got := dumpTable(t, f.duck, "t2"); got != "1:a 2:b2" {
		t.Fatalf("unexpected destination rows %q", got)
	}
}

func TestMergeStreamKeepsColumnTypesOpenAcrossFiles(t *testing.T) {
	f := newMergeFixture(t)
	f.spec = testSpec(t, "t3", "id")
	f.objects.stage(t, f.ns, f.spec, "F1", time.Second, testHeader, [][]string{change(1, "007", "INSERT", 1)})
	f.objects.stage(t, f.ns, f.spec, "F2", 2*time.Second, testHeader, [][]string{change(2, "bob", "INSERT", 2)})
	src := OpenSource(SourceConfig{Log: testLogger(), Objects: f.objects, Namespace: f.ns, Table: f.spec, MaxFilesPerBatch: 1, StopWhenIdle: true})
	m, err := NewMergeStream(src, MergeConfig{
		Log:              testLogger(),
		Destination:      f.duck,
		Checkpoints:      f.cps,
		DestinationTable: "t3",
		CheckpointPath:   f.ns.CheckpointPath(f.spec, table.ModeMerge),
		MaxApplyRetries:  1,
		RetryBackoff:     time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = m.Run(context.Background()); err != nil {
		t.Fatalf("expected a later non-numeric value to apply; got %v", err)
	}
	if got := dumpTable(t, f.duck, "t3"); got != "1:007 2:bob" {
		t.Fatalf("unexpected destination rows %q", got)
	}
}
