package cmd

import (
	"github.com/relloyd/cdcpipe/actions"
	"github.com/spf13/cobra"
)

var setupCfg = actions.SetupConfig{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the stage, file format, change streams and export tasks in Snowflake",
	Long: `Create the Snowflake objects that export table changes to staged files:

- one file format and one external stage for the namespace in the job file
- a change stream and a scheduled export task per table

Objects that already exist are left as they are, so setup is safe to run again
after adding tables to the job file. Suspended export tasks are resumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunSetup(&setupCfg)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().SortFlags = false
	setupCmd.SilenceUsage = true
	switches.addFlag(setupCmd, &setupCfg.JobFile, "job", "", true, "")
	switches.addFlag(setupCmd, &setupCfg.Output, "output", actions.OutputText, false, "")
	switches.addFlag(setupCmd, &setupCfg.LogLevel, "log-level", "warn", false, "")
}
