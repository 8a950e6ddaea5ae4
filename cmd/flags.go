package cmd

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/relloyd/cdcpipe/actions"
	"github.com/relloyd/cdcpipe/config"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"mock": cliFlag{name: "mock", shortHand: "m", desc: "mock switch for testing"},
	"job": cliFlag{name: "job", shortHand: "j",
		desc: "The job file (.yaml or .json) describing the source, namespace, storage, \n" +
			"destination and tables to replicate"},
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug | trace\""},
	"output": cliFlag{name: "output", shortHand: "o",
		desc: "Output format: \"text\", \"yaml\" or \"json\""},
	"web-service": cliFlag{name: "web-service", shortHand: "w",
		desc: "Launch a web service to monitor and stop the streams"},
	"port": cliFlag{name: "port", shortHand: "p",
		desc: "Port for the web service to listen on"},
	"stats": cliFlag{name: "stats", shortHand: "L",
		desc: "Number of seconds between logging stream statistics \n" +
			"(use 0 to take the value from the job file)"},
	"reset": cliFlag{name: "reset", shortHand: "r",
		desc: "Drop destination tables and discard checkpoints and stored schemas before \n" +
			"streaming so every staged file is applied again"},
	"once": cliFlag{name: "once",
		desc: "Stop each stream once it has applied every staged file instead of polling forever"},
	"dry-run": cliFlag{name: "dry-run", shortHand: "d",
		desc: "Print the SQL query without executing it"},
	"print-header": cliFlag{name: "print-header", shortHand: "x",
		desc: "Print a header for SQL query results"},
	"target": cliFlag{name: "target", shortHand: "t",
		desc: fmt.Sprintf("Where to run the query: %q or %q", actions.QueryTargetSource, actions.QueryTargetDestination)},
}

// addFlag add a flag to cobra.Command c, based on the type of targetVar (which must be a pointer).
// The name of the flag is looked up in map, cliFlags.
// When running in twelveFactorMode, the targetVar is populated using the value of environment variable for the supplied
// name, or if not set then the supplied default value is used.
// When NOT running in twelveFactorMode, the default value is fetched from config if it exists else the supplied
// defaultValue is applied.
// The flag is marked as required in Cobra based on the value of required.
// Supply a value for desc2 to append to the existing description found in map cliFlags.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool, desc2 string) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue, config.Main.Get)
	desc := sw.desc + desc2
	switch p := targetVar.(type) {
	case *string:
		if twelveFactorMode {
			*p = sw.val
		} else {
			c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, desc)
			if sw.val != "" { // if there is a value via config or default...
				mustSetFlag(c.Flags(), sw.name, sw.val)
			}
		}
	case *bool:
		b := helper.GetTrueFalseStringAsBool(sw.val)
		if twelveFactorMode {
			*p = b
		} else {
			c.Flags().BoolVarP(p, sw.name, sw.shortHand, b, desc)
			mustSetFlag(c.Flags(), sw.name, strconv.FormatBool(b))
		}
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		if twelveFactorMode {
			*p = defaultInt
		} else {
			c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, desc)
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	// A required flag that already has a default from config is satisfied.
	if required && !twelveFactorMode && sw.val == "" {
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag fetches the value of name from the environment, when running in twelveFactorMode,
// else read the Main config file to find it.
// If a value cannot be found then use the supplied defaultValue in its place.
func (f *cliFlags) getCliFlag(name string, defaultValue string, fnGetConfig func(key string, out interface{}) error) cliFlag {
	s, ok := (*f)[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	if twelveFactorMode { // if we should read env vars...
		if err := helper.ReadValueFromEnv(flagNameToEnvVar(name), &s.val); err != nil {
			s.val = defaultValue
		}
	} else { // else check the config file or apply default...
		if err := fnGetConfig(s.name, &s.val); err != nil || s.val == "" { // if there was no key found...
			s.val = defaultValue
		}
	}
	return s
}

// flagNameToEnvVar is the variable read for flag name in twelveFactorMode.
func flagNameToEnvVar(name string) string {
	return helper.GetEnvVarName(name)
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	if err := f.Set(name, val); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// getQueryFromArgsFunc concatenates all args into a string.
// Returns an error if there are no args.
func getQueryFromArgsFunc(query *string, customErrMsg string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			if customErrMsg != "" {
				return errors.New(customErrMsg)
			}
			return errors.New("please supply a SQL query")
		}
		*query = strings.Join(args, " ")
		return nil
	}
}
