package cmd

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2024-06-01T12:00+0000"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use:   "cdcpipe",
	Short: "Replicate Snowflake table changes into a local table store",
	Long: `cdcpipe replicates changes from Snowflake tables into DuckDB.

Change streams and export tasks in Snowflake write each table's changes to staged
files in cloud storage. cdcpipe provisions those objects ("setup") and then applies
the staged files to destination tables ("stream"), either appending every change
or merging on primary keys. Progress is checkpointed next to the staged files so a
stream can be stopped and restarted at any time.`,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if twelveFactorMode { // if we are running based on environment variables...
		if lambdaMode {
			lambda.Start(func() error { return execute12FactorMode(twelveFactorActions) })
		} else if err := execute12FactorMode(twelveFactorActions); err != nil {
			// execute12FactorMode logs the error.
			os.Exit(1)
		}
	} else if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}
