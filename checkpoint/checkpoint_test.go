package checkpoint

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/storage"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func recentKeys(s State) []string {
	retval := make([]string, len(s.RecentFiles))
	for idx, f := range s.RecentFiles {
		retval[idx] = f.Key
	}
	return retval
}

func TestAdvanceAndCovers(t *testing.T) {
	s := State{}
	if !s.IsZero() || s.Covers("f1", t0) {
		t.Fatal("expected zero state to cover nothing")
	}
	s = s.Advance([]AppliedFile{{"f1", t0}, {"f2", t0.Add(time.Second)}, {"f3", t0.Add(time.Second)}}, 10, t0)
	if s.BatchID != 1 || s.FilesApplied != 3 || s.RowsApplied != 10 {
		t.Fatalf("unexpected counters %+v", s)
	}
	if !s.Watermark.Equal(t0.Add(time.Second)) || !reflect.DeepEqual(recentKeys(s), []string{"f1", "f2", "f3"}) {
		t.Fatalf("unexpected watermark %v %v", s.Watermark, recentKeys(s))
	}
	for _, f := range []AppliedFile{{"f1", t0}, {"f2", t0.Add(time.Second)}, {"f3", t0.Add(time.Second)}} {
		if !s.Covers(f.Key, f.LastModified) {
			t.Fatalf("expected %v to be covered", f.Key)
		}
	}
	if s.Covers("f4", t0.Add(time.Second)) || s.Covers("f5", t0.Add(2*time.Second)) {
		t.Fatal("expected new files not to be covered")
	}
	s = s.Advance([]AppliedFile{{"f4", t0.Add(time.Second)}}, 1, t0)
	if !reflect.DeepEqual(recentKeys(s), []string{"f1", "f2", "f3", "f4"}) {
		t.Fatalf("expected same-timestamp file to join the recent set; got %v", recentKeys(s))
	}
}

func TestCoversLateVisibleFile(t *testing.T) {
	s := State{}.Advance([]AppliedFile{{"f1", t0}, {"f3", t0.Add(time.Minute)}}, 2, t0)
	// f2 was written before f3 but became visible after f3 was applied.
	late := t0.Add(30 * time.Second)
	if s.Covers("f2", late) {
		t.Fatal("expected a late file inside the grace window not to be covered")
	}
	s = s.Advance([]AppliedFile{{"f2", late}}, 1, t0)
	if !s.Covers("f2", late) || !s.Watermark.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected f2 to be covered with the watermark unchanged; got %v %v", s.Watermark, recentKeys(s))
	}
	// Moving the watermark beyond the grace window prunes old entries but still covers them.
	far := t0.Add(time.Minute + constants.CheckpointGraceWindow + time.Second)
	s = s.Advance([]AppliedFile{{"f9", far}}, 1, t0)
	if !reflect.DeepEqual(recentKeys(s), []string{"f9"}) {
		t.Fatalf("expected only f9 to remain in the recent set; got %v", recentKeys(s))
	}
	for _, f := range []AppliedFile{{"f1", t0}, {"f2", late}, {"f3", t0.Add(time.Minute)}, {"f9", far}} {
		if !s.Covers(f.Key, f.LastModified) {
			t.Fatalf("expected %v to be covered", f.Key)
		}
	}
	if !s.Covers("f0", s.Horizon().Add(-time.Nanosecond)) || s.Covers("f8", s.Horizon()) {
		t.Fatalf("expected files before horizon %v to be covered and later ones not", s.Horizon())
	}
}

func testStore(t *testing.T, st Store) {
	ctx := context.Background()
	path := "c@acct/stage1/demo/rac/t1/checkpoint/merge"
	got, err := st.Load(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero state; got %+v", got)
	}
	want := State{}.Advance([]AppliedFile{{"f1", t0}}, 3, t0)
	if err = st.Save(ctx, path, want); err != nil {
		t.Fatal(err)
	}
	want = want.Advance([]AppliedFile{{"f2", t0.Add(time.Minute)}}, 2, t0.Add(time.Minute))
	if err = st.Save(ctx, path, want); err != nil {
		t.Fatal(err)
	}
	got, err = st.Load(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if got.BatchID != 2 || got.RowsApplied != 5 || !got.Watermark.Equal(want.Watermark) || !reflect.DeepEqual(recentKeys(got), recentKeys(want)) {
		t.Fatalf("expected %+v; got %+v", want, got)
	}
	other, err := st.Load(ctx, "c@acct/stage1/demo/rac/t1/checkpoint/append")
	if err != nil || !other.IsZero() {
		t.Fatalf("expected modes not to share a checkpoint; got %+v, %v", other, err)
	}
}

func TestStorageStore(t *testing.T) {
	objects, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, NewStorageStore(objects))
}

func TestSqliteStore(t *testing.T) {
	st, err := NewSqliteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	testStore(t, st)
}

func TestOpen(t *testing.T) {
	objects, _ := storage.NewLocalStore(t.TempDir())
	if s, err := Open(Config{}, objects); err != nil {
		t.Fatal(err)
	} else if _, ok := s.(*StorageStore); !ok {
		t.Fatalf("expected storage store by default; got %T", s)
	}
	if _, err := Open(Config{Backend: "sqlite"}, objects); err == nil {
		t.Fatal("expected error for sqlite without a path")
	}
	if _, err := Open(Config{Backend: "redis"}, objects); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
