package source

import (
	"fmt"
	"strings"
	"testing"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/stagefile"
)

func TestStreamAndTaskNames(t *testing.T) {
	spec := testSpec(t, `"my.table"`)
	if got := StreamName(spec); got != `demo.rac."my.table_STREAM"` {
		t.Fatalf("unexpected quoted stream name %v", got)
	}
	if got := TaskName(testSpec(t, "t1")); got != "demo.rac.t1_EXPORT_TASK" {
		t.Fatalf("unexpected task name %v", got)
	}
}

func TestGetStreamDDL(t *testing.T) {
	spec := testSpec(t, "t1")
	if got := getStreamDDL(spec, false); got != "CREATE STREAM demo.rac.t1_STREAM ON TABLE demo.rac.t1" {
		t.Fatalf("unexpected stream DDL %q", got)
	}
	if got := getStreamDDL(spec, true); got != "CREATE OR REPLACE STREAM demo.rac.t1_STREAM ON TABLE demo.rac.t1" {
		t.Fatalf("unexpected stream DDL %q", got)
	}
}

func TestGetTaskDDL(t *testing.T) {
	expected := `CREATE TASK demo.rac.t1_EXPORT_TASK
WAREHOUSE = wh
SCHEDULE = '1 MINUTE'
WHEN SYSTEM$STREAM_HAS_DATA('demo.rac.t1_STREAM')
AS
COPY INTO @demo.rac.stage1/demo/rac/t1/data/
FROM (SELECT *, DATE_PART(EPOCH_NANOSECOND, CURRENT_TIMESTAMP()) AS CDC_SEQUENCE FROM demo.rac.t1_STREAM)
FILE_FORMAT = (FORMAT_NAME = 'demo.rac.ff1')
HEADER = TRUE
INCLUDE_QUERY_ID = TRUE`
	got := getTaskDDL(testSpec(t, "t1"), testNamespace(t), "wh", constants.TaskScheduleDefault)
	if got != expected {
		t.Fatalf("expected:\n%v\ngot:\n%v", expected, got)
	}
}

func TestGetStageDDL(t *testing.T) {
	expected := `CREATE STAGE demo.rac.stage1
URL = 'azure://acct.blob.core.windows.net/c/stage1/'
CREDENTIALS = (AZURE_SAS_TOKEN = 'sv=2020&sig=abc')
FILE_FORMAT = demo.rac.ff1`
	got, err := getStageDDL(testNamespace(t))
	if err != nil {
		t.Fatal(err)
	}
	if got != expected {
		t.Fatalf("expected:\n%v\ngot:\n%v", expected, got)
	}
	ns, _ := namespace.New(namespace.Config{
		FileFormatName:  "ff1",
		StageName:       "stage1",
		StorageProvider: constants.StorageProviderS3,
		StorageAccount:  "eu-west-1",
		Container:       "bucket",
		Database:        "demo",
		Schema:          "rac",
	})
	_, err = getStageDDL(ns)
	if err == nil {
		t.Fatal("expected error for s3 stage without credentials")
	}
	if !strings.Contains(fmt.Sprintf("%+v", err), "getStageDDL") {
		t.Fatalf("expected the error to carry a stack trace; got %+v", err)
	}
}

func TestGetFileFormatDDL(t *testing.T) {
	expected := `CREATE FILE FORMAT demo.rac.ff1
TYPE = CSV
FIELD_DELIMITER = ','
COMPRESSION = GZIP
FIELD_OPTIONALLY_ENCLOSED_BY = '"'
NULL_IF = ('\\N')
EMPTY_FIELD_AS_NULL = FALSE`
	if got := getFileFormatDDL(testNamespace(t)); got != expected {
		t.Fatalf("expected:\n%v\ngot:\n%v", expected, got)
	}
	ns, err := namespace.New(namespace.Config{
		FileFormatName: "ff1",
		StageName:      "stage1",
		StorageAccount: "acct",
		Container:      "c",
		Database:       "demo",
		Schema:         "rac",
		FileFormat:     stagefile.Format{NullIf: []string{"NULL", "n'a", `\\`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := getFileFormatDDL(ns); !strings.Contains(got, `NULL_IF = ('NULL', 'n''a', '\\\\')`) {
		t.Fatalf("expected escaped NULL_IF tokens; got:\n%v", got)
	}
}
