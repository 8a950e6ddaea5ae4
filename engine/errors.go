package engine

import (
	"fmt"

	"github.com/relloyd/cdcpipe/checkpoint"
)

// SchemaIncompatibleError is returned when a staged file does not match the table's stored schema.
// It is not retried.
type SchemaIncompatibleError struct {
	Table string
	File  string
	Cause error
}

func (e *SchemaIncompatibleError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("schema incompatible for table %v: %v", e.Table, e.Cause)
	}
	return fmt.Sprintf("schema incompatible for table %v in file %v: %v", e.Table, e.File, e.Cause)
}

func (e *SchemaIncompatibleError) Unwrap() error {
	return e.Cause
}

// MergeApplyError is returned when a merge stream gives up on a batch.
// Checkpoint is the last committed position, so the batch will be applied again on restart.
type MergeApplyError struct {
	Table      string
	BatchID    int64
	Attempts   int
	Checkpoint checkpoint.State
	Cause      error
}

func (e *MergeApplyError) Error() string {
	return fmt.Sprintf("merge into table %v failed for batch %v after %v attempts (checkpoint batch %v, watermark %v): %v",
		e.Table, e.BatchID, e.Attempts, e.Checkpoint.BatchID, e.Checkpoint.Watermark.Format("2006-01-02T15:04:05.000Z07:00"), e.Cause)
}

func (e *MergeApplyError) Unwrap() error {
	return e.Cause
}
