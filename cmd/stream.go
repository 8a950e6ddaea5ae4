package cmd

import (
	"net"

	"github.com/relloyd/cdcpipe/actions"
	"github.com/spf13/cobra"
)

var streamCfg = actions.StreamConfig{Web: actions.WebServerConfig{Scheme: "http"}}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Apply staged change files to the destination tables",
	Long: `Stream every table in the job file into the destination.

Tables with merge keys are merged so the destination mirrors the source table.
Tables without merge keys have every change appended, including the change metadata
columns. Each stream checkpoints after every batch and resumes from there.
Interrupt with Ctrl+C to stop after the current batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		streamCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunStream(&streamCfg)
	},
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().SortFlags = false
	streamCmd.SilenceUsage = true
	switches.addFlag(streamCmd, &streamCfg.JobFile, "job", "", true, "")
	switches.addFlag(streamCmd, &streamCfg.Once, "once", "false", false, "")
	switches.addFlag(streamCmd, &streamCfg.Reset, "reset", "false", false, "")
	switches.addFlag(streamCmd, &streamCfg.WebService, "web-service", "false", false, "")
	streamCmd.Flags().IPVarP(&streamCfg.Web.Addr, "address", "a", net.IP{0, 0, 0, 0}, "Address for the web service to listen on")
	switches.addFlag(streamCmd, &streamCfg.Web.Port, "port", "8080", false, "")
	switches.addFlag(streamCmd, &streamCfg.StatsDumpFrequencySeconds, "stats", "0", false, "")
	switches.addFlag(streamCmd, &streamCfg.LogLevel, "log-level", "info", false, "")
}
