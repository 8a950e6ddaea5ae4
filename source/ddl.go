package source

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/table"
)

// appendSuffix adds suffix to name, keeping it inside the quotes of a quoted identifier.
func appendSuffix(name string, suffix string) string {
	if helper.IsQuoted(name) {
		return strings.TrimSuffix(name, `"`) + suffix + `"`
	}
	return name + suffix
}

// StreamName returns the fully qualified name of the change stream on spec's table.
func StreamName(spec table.Spec) string {
	return strings.Join([]string{spec.Database(), spec.Schema(), appendSuffix(spec.TableName(), constants.StreamNameSuffix)}, ".")
}

// TaskName returns the fully qualified name of the export task for spec's table.
func TaskName(spec table.Spec) string {
	return strings.Join([]string{spec.Database(), spec.Schema(), appendSuffix(spec.TableName(), constants.TaskNameSuffix)}, ".")
}

func showObjectsSQL(kind string, name string, database string, schema string) string {
	return fmt.Sprintf("SHOW %v LIKE '%v' IN SCHEMA %v.%v",
		kind, helper.EscapeSingleQuotes(strings.Trim(name, `"`)), database, schema)
}

func getFileFormatDDL(ns *namespace.Namespace) string {
	cfg := ns.Config()
	f := cfg.FileFormat
	nulls := make([]string, len(f.NullIf))
	for idx, n := range f.NullIf {
		nulls[idx] = "'" + helper.EscapeStringLiteral(n) + "'"
	}
	return fmt.Sprintf(`CREATE FILE FORMAT %v
TYPE = CSV
FIELD_DELIMITER = '%v'
COMPRESSION = %v
FIELD_OPTIONALLY_ENCLOSED_BY = '"'
NULL_IF = (%v)
EMPTY_FIELD_AS_NULL = FALSE`,
		ns.FullyQualified(cfg.FileFormatName),
		helper.EscapeStringLiteral(f.Delimiter),
		f.Compression,
		strings.Join(nulls, ", "))
}

func getStageDDL(ns *namespace.Namespace) (string, error) {
	cfg := ns.Config()
	u, err := ns.StageURL()
	if err != nil {
		return "", err
	}
	var creds string
	switch cfg.StorageProvider {
	case constants.StorageProviderS3:
		if cfg.AwsKeyID == "" {
			return "", errors.New("an AWS key id and secret are required to create an s3 stage")
		}
		creds = fmt.Sprintf("AWS_KEY_ID = '%v' AWS_SECRET_KEY = '%v'",
			helper.EscapeSingleQuotes(cfg.AwsKeyID), helper.EscapeSingleQuotes(cfg.AwsSecretKey))
	default:
		if cfg.CredentialToken == "" {
			return "", errors.New("a SAS token is required to create an azure stage")
		}
		creds = fmt.Sprintf("AZURE_SAS_TOKEN = '%v'", helper.EscapeSingleQuotes(cfg.CredentialToken))
	}
	return fmt.Sprintf(`CREATE STAGE %v
URL = '%v'
CREDENTIALS = (%v)
FILE_FORMAT = %v`,
		ns.FullyQualified(cfg.StageName),
		u,
		creds,
		ns.FullyQualified(cfg.FileFormatName)), nil
}

func getStreamDDL(spec table.Spec, replace bool) string {
	create := "CREATE STREAM"
	if replace {
		create = "CREATE OR REPLACE STREAM"
	}
	return fmt.Sprintf("%v %v ON TABLE %v", create, StreamName(spec), spec.FullyQualifiedName())
}

// getExportSQL returns the statement run by the export task on each tick.
func getExportSQL(spec table.Spec, ns *namespace.Namespace) string {
	cfg := ns.Config()
	return fmt.Sprintf(`COPY INTO @%v/%v
FROM (SELECT *, DATE_PART(EPOCH_NANOSECOND, CURRENT_TIMESTAMP()) AS %v FROM %v)
FILE_FORMAT = (FORMAT_NAME = '%v')
HEADER = TRUE
INCLUDE_QUERY_ID = TRUE`,
		ns.FullyQualified(cfg.StageName),
		ns.StagePath(spec),
		constants.ChangeSequenceColumn,
		StreamName(spec),
		ns.FullyQualified(cfg.FileFormatName))
}

func getTaskDDL(spec table.Spec, ns *namespace.Namespace, warehouse string, schedule string) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("CREATE TASK %v\n", TaskName(spec)))
	if warehouse != "" {
		b.WriteString(fmt.Sprintf("WAREHOUSE = %v\n", warehouse))
	}
	b.WriteString(fmt.Sprintf("SCHEDULE = '%v'\n", helper.EscapeSingleQuotes(schedule)))
	b.WriteString(fmt.Sprintf("WHEN SYSTEM$STREAM_HAS_DATA('%v')\n", helper.EscapeSingleQuotes(StreamName(spec))))
	b.WriteString("AS\n")
	b.WriteString(getExportSQL(spec, ns))
	return b.String()
}

func getResumeTaskSQL(spec table.Spec) string {
	return fmt.Sprintf("ALTER TASK %v RESUME", TaskName(spec))
}
