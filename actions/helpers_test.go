package actions

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/table"
)

func testLogger() logger.Logger {
	return logger.NewLogger(constants.ServiceName, "error", false)
}

// writeJob writes a job file that stages to a local directory and replicates into an in-memory DuckDB.
func writeJob(t *testing.T, localRoot string) string {
	t.Helper()
	doc := fmt.Sprintf(`
namespace:
  fileFormatName: ff1
  stageName: stage1
  storageProvider: local
  storageAccount: acct
  container: c
  basePath: stage1
  database: demo
  schema: rac
storage:
  localRoot: %v
tables:
  - name: demo.rac.t1
  - name: demo.rac.t2
    mergeKeys: [ID]
stream:
  pollInterval: 1ms
  statsInterval: 1h
`, localRoot)
	p := path.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(p, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}
	return p
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
	for _, s := range []struct {
		name string
		keys []string
	}{{"demo.rac.t1", nil}, {"demo.rac.t2", []string{"ID"}}} {
		spec, err := table.Parse(s.name, s.keys)
		if err != nil {
			t.Fatal(err)
		}
		if err = ns.Register(spec); err != nil {
			t.Fatal(err)
		}
	}
	return ns
}
