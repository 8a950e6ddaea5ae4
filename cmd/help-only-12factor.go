package cmd

import (
	"fmt"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/spf13/cobra"
)

var twelveFactorCmd = &cobra.Command{
	Use:   "12f",
	Short: `View help notes for running in Twelve-Factor mode`,
	Long: fmt.Sprintf(`
cdcpipe can be controlled by environment variables, which suits containers and
serverless environments.

To enable Twelve-Factor mode, set environment variable %[1]v_12FACTOR_MODE=1 
(or "lambda" to run as an AWS Lambda handler). To supply flags documented by the 
regular command-line usage, set an equivalent environment variable using the 
following convention: 

%[1]v_<flag long-name in upper case>

Secrets can be kept out of the job file in the same way, for example
%[1]v_SOURCE_PASSWORD or %[1]v_NAMESPACE_CREDENTIAL_TOKEN.

For example, this will catch up every table in a job and then exit:

export %[1]v_12FACTOR_MODE=1
export %[1]v_COMMAND=stream
export %[1]v_JOB=/etc/cdcpipe/job.yaml
export %[1]v_ONCE=true
export %[1]v_LOG_LEVEL=info

Then execute the CLI tool without any arguments or flags.

`, constants.EnvVarPrefix),
}

func init() {
	rootCmd.AddCommand(twelveFactorCmd)
}
