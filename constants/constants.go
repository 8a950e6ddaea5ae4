package constants

import "time"

// Staged file metadata.

const (
	ChangeActionColumn           = "METADATA$ACTION"   // INSERT or DELETE, added by the source change stream.
	ChangeIsUpdateColumn         = "METADATA$ISUPDATE" // TRUE when the row is one half of an update pair.
	ChangeRowIdColumn            = "METADATA$ROW_ID"
	ChangeSequenceColumn         = "CDC_SEQUENCE" // ordering column added by the export task.
	ChangeActionInsert           = "INSERT"
	ChangeActionDelete           = "DELETE"
	PathElementCheckpoint        = "checkpoint"
	PathElementSchema            = "schema"
	PathElementData              = "data"
	SchemaFileName               = "_schema.json"
	CheckpointFileName           = "_checkpoint.json"
	MergeSourceAlias             = "src"
	StreamNameSuffix             = "_STREAM"
	TaskNameSuffix               = "_EXPORT_TASK"
	TaskScheduleDefault          = "1 MINUTE"
	TimeFormatYearSeconds        = "20060102T150405" // used for human readable file names
	TimeFormatYearSecondsTZ      = "20060102T150405-0700"
	EnvVarPrefix                 = "CP" // prefixed for environment variables in twelveFactorMode
	ServiceName                  = "cdcpipe"
	StorageProviderAzure         = "azure"
	StorageProviderS3            = "s3"
	StorageProviderLocal         = "local"
	CheckpointBackendStorage     = "storage"
	CheckpointBackendSqlite      = "sqlite"
	CompressionNone              = "NONE"
	CompressionGzip              = "GZIP"
	CompressionZstd              = "ZSTD"
	FileFormatDelimiterDefault   = ","
	FileFormatNullTokenDefault   = `\N`
	CheckpointGraceWindow        = 10 * time.Minute
	ConnectionTypeSnowflake      = "snowflake"
	ConnectionTypeDuckDB         = "duckdb"
	StreamMaxFilesPerBatch       = 100
	StreamMaxApplyRetries        = 5
	StreamConcurrencyDefault     = 8
	SetupConcurrencyDefault      = 8
	StreamPollIntervalDefault    = 5 * time.Second
	StreamMaxPollIntervalDefault = 60 * time.Second
	StreamRetryBackoffDefault    = 2 * time.Second
)
