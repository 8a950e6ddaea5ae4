package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/stagefile"
	"github.com/relloyd/cdcpipe/storage"
	"github.com/relloyd/cdcpipe/stream"
	"github.com/relloyd/cdcpipe/table"
)

var (
	testHeader = []string{"ID", "NAME", "METADATA$ACTION", "METADATA$ISUPDATE", "METADATA$ROW_ID", "CDC_SEQUENCE"}
	baseTime   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type memObject struct {
	data    []byte
	lastMod time.Time
}

// memStore is an in-memory storage.Store with controllable modification times.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]memObject)}
}

func (m *memStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var retval []storage.ObjectInfo
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			retval = append(retval, storage.ObjectInfo{Key: k, Size: int64(len(o.data)), LastModified: o.lastMod})
		}
	}
	sort.Slice(retval, func(i, j int) bool { return retval[i].Key < retval[j].Key })
	return retval, nil
}

func (m *memStore) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[path]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return o.data, nil
}

func (m *memStore) Put(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memObject{data: append([]byte(nil), data...), lastMod: time.Now()}
	return nil
}

func (m *memStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

// stage writes a gzip compressed staged file for spec at baseTime plus offset.
func (m *memStore) stage(t *testing.T, ns *namespace.Namespace, spec table.Spec, name string, offset time.Duration, header []string, rows [][]string) string {
	t.Helper()
	key := ns.DataPath(spec) + "/" + name + ".csv.gz"
	m.putAt(key, stagedFile(t, ns, header, rows), baseTime.Add(offset))
	return key
}

func (m *memStore) putAt(key string, data []byte, lastMod time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, lastMod: lastMod}
}

func stagedFile(t *testing.T, ns *namespace.Namespace, header []string, rows [][]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := stagefile.WriteFile(buf, ns.Config().FileFormat, header, rows); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testLogger() logger.Logger {
	return logger.NewLogger("cdcpipe", "error", false)
}

func testNamespace(t *testing.T) *namespace.Namespace {
	t.Helper()
	ns, err := namespace.New(namespace.Config{
		FileFormatName:  "ff1",
		CredentialToken: "tok",
		StageName:       "stage1",
		StorageAccount:  "acct",
		Container:       "c",
		Database:        "demo",
		Schema:          "rac",
		BasePath:        "stage1",
	})
	if err != nil {
		t.Fatal(err)
	}
	return ns
}

func testSpec(t *testing.T, name string, keys ...string) table.Spec {
	t.Helper()
	s, err := table.NewSpec("demo", "rac", name, keys)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func change(id int, name string, action string, seq int) []string {
	return []string{fmt.Sprint(id), name, action, "FALSE", fmt.Sprintf("r%v", id), fmt.Sprint(seq)}
}

func newDestination(t *testing.T) *destination.DuckDBStore {
	t.Helper()
	d, err := destination.NewDuckDBStore(context.Background(), testLogger(), destination.DuckDBConfig{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// dumpTable returns "id:name" pairs ordered by id then name.
func dumpTable(t *testing.T, d *destination.DuckDBStore, tbl string) string {
	t.Helper()
	rs, err := d.Query(context.Background(), fmt.Sprintf(`SELECT "ID", "NAME" FROM %v ORDER BY 1, 2`, d.QualifiedName(tbl)))
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(rs.Rows))
	for idx, r := range rs.Rows {
		out[idx] = fmt.Sprintf("%v:%v", r[0], r[1])
	}
	return strings.Join(out, " ")
}

// flakyDestination fails the first failures writes before delegating.
type flakyDestination struct {
	destination.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyDestination) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return errors.New("destination unavailable")
	}
	return nil
}

func (f *flakyDestination) Append(ctx context.Context, tbl string, s stagefile.Schema, rows []stream.Record) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Append(ctx, tbl, s, rows)
}

func (f *flakyDestination) Merge(ctx context.Context, tbl string, s stagefile.Schema, keys []string, changes []destination.Change) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Merge(ctx, tbl, s, keys, changes)
}

// failingSaves wraps a checkpoint store and fails saves while failSaves is set.
type failingSaves struct {
	checkpoint.Store
	mu        sync.Mutex
	failSaves bool
}

func (f *failingSaves) Save(ctx context.Context, path string, s checkpoint.State) error {
	f.mu.Lock()
	fail := f.failSaves
	f.mu.Unlock()
	if fail {
		return errors.New("checkpoint store unavailable")
	}
	return f.Store.Save(ctx, path, s)
}
