package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ghodss/yaml"
	"github.com/relloyd/cdcpipe/config"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
)

const (
	OutputText = "text"
	OutputYaml = "yaml"
	OutputJson = "json"
)

// JobConfig is shared by every action that works on a job file.
type JobConfig struct {
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	JobFile          string `errorTxt:"job file" mandatory:"yes"`
	StackDumpOnPanic bool
}

func (c JobConfig) logger() logger.Logger {
	return logger.NewLogger(constants.ServiceName, c.LogLevel, c.StackDumpOnPanic)
}

// load reads the job file and builds its namespace.
func (c JobConfig) load() (*config.Job, *namespace.Namespace, error) {
	job, err := config.LoadJob(c.JobFile)
	if err != nil {
		return nil, nil, err
	}
	ns, err := job.NewNamespace()
	if err != nil {
		return nil, nil, err
	}
	return job, ns, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// printOutput writes v as YAML or JSON. Text output is written by the caller's text func.
func printOutput(w io.Writer, format string, v interface{}, text func(w io.Writer) error) error {
	switch strings.ToLower(format) {
	case OutputText, "":
		return text(w)
	case OutputYaml:
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case OutputJson:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
