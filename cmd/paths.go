package cmd

import (
	"github.com/relloyd/cdcpipe/actions"
	"github.com/spf13/cobra"
)

var pathsCfg = actions.PathsConfig{}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the object names and storage paths derived for each table",
	Long: `Print the change stream, export task, staged data, schema and checkpoint
locations and the destination table of every table in the job file.
Nothing is connected to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pathsCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunPaths(&pathsCfg)
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)
	pathsCmd.Flags().SortFlags = false
	pathsCmd.SilenceUsage = true
	switches.addFlag(pathsCmd, &pathsCfg.JobFile, "job", "", true, "")
	switches.addFlag(pathsCmd, &pathsCfg.Output, "output", actions.OutputText, false, "")
	switches.addFlag(pathsCmd, &pathsCfg.LogLevel, "log-level", "error", false, "")
}
