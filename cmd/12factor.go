package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/relloyd/cdcpipe/actions"
	c "github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/logger"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of twelveFactorMode is set such that other init() functions that configure
// Cobra can read flag values from the environment instead.
func init() {
	setupTwelveFactorMode()
}

// setupTwelveFactorMode will enable or disable 12 factor mode based on environment variable.
func setupTwelveFactorMode() {
	mode := os.Getenv(envVarTwelveFactorMode)
	if mode != "" { // if variable for 12factor mode is set and we should read env vars to determine actions...
		twelveFactorMode = true
		lambdaMode = strings.ToLower(mode) == "lambda"
	} else { // else 12factor mode should be off...
		twelveFactorMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
		lambdaMode = false
	}
}

const (
	envVarTwelveFactorMode = c.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarCommand          = c.EnvVarPrefix + "_" + "COMMAND"
	envVarLogLevel         = c.EnvVarPrefix + "_" + "LOG_LEVEL"
	envVarJob              = c.EnvVarPrefix + "_" + "JOB"
)

var (
	twelveFactorMode bool // true if os env var envVarTwelveFactorMode is set
	lambdaMode       bool // true if envVarTwelveFactorMode is "lambda"
	twelveFactorVars = map[string]string{
		envVarCommand:  "",
		envVarLogLevel: "",
		envVarJob:      "",
	}
)

type twelveFactorAction struct {
	runnerFunc func() error
}

var twelveFactorActions = map[string]twelveFactorAction{
	"setup": {runnerFunc: func() error {
		setupCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunSetup(&setupCfg)
	}},
	"stream": {runnerFunc: func() error {
		streamCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunStream(&streamCfg)
	}},
	"paths": {runnerFunc: func() error {
		pathsCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunPaths(&pathsCfg)
	}},
}

// execute12FactorMode runs the action named by envVarCommand.
// Flags for the action have already been read from CP_<FLAG> environment variables by addFlag.
func execute12FactorMode(acts map[string]twelveFactorAction) (err error) {
	logLevel := helper.ReadValueFromEnvWithDefault(envVarLogLevel, "warn")
	log := logger.NewLogger(c.ServiceName, logLevel, stackDumpOnPanic)
	log.Info("cdcpipe is running in 12 Factor mode...")
	for k := range twelveFactorVars {
		twelveFactorVars[k] = os.Getenv(k)
		log.Debug(k, "=", twelveFactorVars[k])
	}
	command := strings.ToLower(twelveFactorVars[envVarCommand])
	a, ok := acts[command]
	if !ok {
		err = fmt.Errorf("invalid command %q: set %v to one of setup, stream or paths", twelveFactorVars[envVarCommand], envVarCommand)
		log.Error(err.Error())
		return
	}
	if err = a.runnerFunc(); err != nil {
		log.Error("Error: ", err)
	}
	return err
}
