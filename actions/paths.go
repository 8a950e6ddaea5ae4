package actions

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/engine"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/source"
)

type PathsConfig struct {
	JobConfig
	Output string
	Writer io.Writer
}

// TablePaths are the derived names and locations of one table.
type TablePaths struct {
	Table            string `json:"table"`
	Mode             string `json:"mode"`
	Stream           string `json:"stream"`
	Task             string `json:"task"`
	StagePath        string `json:"stagePath"`
	DataPath         string `json:"dataPath"`
	SchemaPath       string `json:"schemaPath"`
	CheckpointPath   string `json:"checkpointPath"`
	DestinationTable string `json:"destinationTable"`
}

// RunPaths prints the derived paths of every table in the job without connecting to anything.
func RunPaths(cfg *PathsConfig) error {
	if cfg == nil {
		return errors.New("nil pointer to paths config supplied")
	}
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	_, ns, err := cfg.load()
	if err != nil {
		return err
	}
	return printPaths(writerOrStdout(cfg.Writer), cfg.Output, GetTablePaths(ns))
}

func GetTablePaths(ns *namespace.Namespace) []TablePaths {
	specs := ns.Tables()
	retval := make([]TablePaths, len(specs))
	for idx, spec := range specs {
		retval[idx] = TablePaths{
			Table:            spec.FullyQualifiedName(),
			Mode:             string(spec.Mode()),
			Stream:           source.StreamName(spec),
			Task:             source.TaskName(spec),
			StagePath:        ns.StagePath(spec),
			DataPath:         ns.DataPath(spec),
			SchemaPath:       ns.SchemaPath(spec),
			CheckpointPath:   ns.CheckpointPath(spec, spec.Mode()),
			DestinationTable: engine.DestinationTableName(spec),
		}
	}
	return retval
}

func printPaths(w io.Writer, format string, paths []TablePaths) error {
	return printOutput(w, format, paths, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range paths {
			_, _ = fmt.Fprintf(tw, "%v\tmode\t%v\n", p.Table, p.Mode)
			_, _ = fmt.Fprintf(tw, "\tstream\t%v\n", p.Stream)
			_, _ = fmt.Fprintf(tw, "\ttask\t%v\n", p.Task)
			_, _ = fmt.Fprintf(tw, "\tdata\t%v\n", p.DataPath)
			_, _ = fmt.Fprintf(tw, "\tschema\t%v\n", p.SchemaPath)
			_, _ = fmt.Fprintf(tw, "\tcheckpoint\t%v\n", p.CheckpointPath)
			_, _ = fmt.Fprintf(tw, "\tdestination\t%v\n", p.DestinationTable)
		}
		return tw.Flush()
	})
}
