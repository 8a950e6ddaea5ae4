package actions

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/source"
)

type SetupConfig struct {
	JobConfig
	Output string
	Writer io.Writer
}

// SetupReport lists the objects the setup action provisioned or found.
type SetupReport struct {
	source.SetupResult
	Created int `json:"created"`
}

// RunSetup creates the file format, stage, change streams and export tasks for every table in the job.
// Objects that already exist are left alone, so setup can be run repeatedly.
func RunSetup(cfg *SetupConfig) error {
	if cfg == nil {
		return errors.New("nil pointer to setup config supplied")
	}
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	log := cfg.logger()
	job, ns, err := cfg.load()
	if err != nil {
		return err
	}
	dsn, err := job.SourceDSN()
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext()
	defer cancel()
	conn, err := source.Open(ctx, log, dsn, job.SourceConfig())
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()
	return runSetup(ctx, log, conn, ns, job.SetupConcurrency(), writerOrStdout(cfg.Writer), cfg.Output)
}

func runSetup(ctx context.Context, log logger.Logger, p Provisioner, ns *namespace.Namespace, limit int, w io.Writer, format string) error {
	result, err := p.SetupAll(ctx, ns, limit)
	if err != nil {
		return err
	}
	report := SetupReport{SetupResult: result, Created: result.CreatedCount()}
	log.Info("setup complete for ", len(result.Tables), " tables; ", report.Created, " objects created")
	return printOutput(w, format, report, func(w io.Writer) error {
		for _, o := range result.Handles() {
			status := "exists"
			if o.Created {
				status = "created"
			}
			if _, err := fmt.Fprintf(w, "%v (%v)\n", o, status); err != nil {
				return err
			}
		}
		return nil
	})
}
