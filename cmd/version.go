package cmd

import (
	"fmt"
	"runtime"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cdcpipe version and build date",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%v %v (built %v, %v %v/%v)\n",
			constants.ServiceName, version, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
