package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/table"
)

func TestRunnerStreamsEveryTable(t *testing.T) {
	ctx := context.Background()
	ns := testNamespace(t)
	appendSpec := testSpec(t, "t1")
	mergeSpec := testSpec(t, "t2", "ID")
	for _, s := range []table.Spec{appendSpec, mergeSpec} {
		if err := ns.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	objects := newMemStore()
	objects.stage(t, ns, appendSpec, "F1", 0, testHeader, [][]string{change(1, "a", "INSERT", 1)})
	objects.stage(t, ns, mergeSpec, "F1", 0, testHeader, [][]string{change(1, "a", "INSERT", 1), change(1, "z", "INSERT", 2)})
	duck := newDestination(t)
	cfg := RunnerConfig{
		Log:         testLogger(),
		Namespace:   ns,
		Objects:     objects,
		Checkpoints: checkpoint.NewStorageStore(objects),
		Destination: duck,
		Stream:      StreamConfig{StopWhenIdle: true, RetryBackoff: time.Millisecond},
		Concurrency: 1,
	}
	r := NewRunner(cfg)
	if r.RunID() == "" {
		t.Fatal("expected a run id")
	}
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if got := dumpTable(t, duck, "t1"); got != "1:a" {
		t.Fatalf("unexpected append rows %q", got)
	}
	if got := dumpTable(t, duck, "t2"); got != "1:z" {
		t.Fatalf("unexpected merge rows %q", got)
	}
	all := r.Stats()
	if len(all) != 2 || all[0].Table != "demo.rac.t1" || all[1].Table != "demo.rac.t2" {
		t.Fatalf("unexpected stats %+v", all)
	}
	for _, s := range all {
		if s.State != "STOPPED" || s.Batches != 1 || s.RunID != r.RunID() {
			t.Fatalf("unexpected stream stats %+v", s)
		}
	}
	if s, ok := r.Status("demo.rac.t2"); !ok || s.Mode != "merge" {
		t.Fatalf("unexpected merge status %+v", s)
	}
	if !ns.IsFrozen() {
		t.Fatal("expected the namespace to be frozen")
	}
	// Appending again after a reset gives the same rows rather than duplicates.
	cfg.Reset = true
	if err := NewRunner(cfg).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if got := dumpTable(t, duck, "t1"); got != "1:a" {
		t.Fatalf("unexpected append rows after reset %q", got)
	}
	if _, err := objects.Get(ctx, SchemaLocation(ns, appendSpec)); err != nil {
		t.Fatalf("expected the schema to be inferred again; got %v", err)
	}
}

func TestRunnerClaimsDestinationTables(t *testing.T) {
	ns := testNamespace(t)
	other, err := table.NewSpec("demo", "other", "t1", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []table.Spec{testSpec(t, "t1"), other} {
		if err := ns.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	objects := newMemStore()
	r := NewRunner(RunnerConfig{
		Log:         testLogger(),
		Namespace:   ns,
		Objects:     objects,
		Checkpoints: checkpoint.NewStorageStore(objects),
		Destination: newDestination(t),
		Stream:      StreamConfig{StopWhenIdle: true},
	})
	if err = r.Run(context.Background()); !errors.Is(err, destination.ErrTableClaimed) {
		t.Fatalf("expected ErrTableClaimed; got %v", err)
	}
}

func TestRunnerStop(t *testing.T) {
	ns := testNamespace(t)
	spec := testSpec(t, "t2", "ID")
	if err := ns.Register(spec); err != nil {
		t.Fatal(err)
	}
	objects := newMemStore()
	r := NewRunner(RunnerConfig{
		Log:         testLogger(),
		Namespace:   ns,
		Objects:     objects,
		Checkpoints: checkpoint.NewStorageStore(objects),
		Destination: newDestination(t),
		Stream:      StreamConfig{PollInterval: time.Millisecond},
	})
	done := make(chan error)
	go func() { done <- r.Run(context.Background()) }()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := r.Status("demo.rac.t2"); ok && s.State == "RUNNING" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	r.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	if s, _ := r.Status("demo.rac.t2"); s.State != "STOPPED" {
		t.Fatalf("expected STOPPED; got %+v", s)
	}
}

func TestRunnerRequiresTables(t *testing.T) {
	r := NewRunner(RunnerConfig{Log: testLogger(), Namespace: testNamespace(t)})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error without registered tables")
	}
}
