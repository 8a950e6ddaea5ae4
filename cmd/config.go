package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relloyd/cdcpipe/actions"
	"github.com/relloyd/cdcpipe/config"
	"github.com/spf13/cobra"
)

var (
	defaultAddCfg    = actions.DefaultAddConfig{}
	defaultRemoveCfg = actions.DefaultRemoveConfig{}
	defaultListCfg   = actions.DefaultListConfig{}
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the cdcpipe config file",
	Long:  fmt.Sprintf("Manage settings held in config file %q", config.Main.FullPath),
}

var defaultCmd = &cobra.Command{
	Use:     "default",
	Aliases: []string{"defaults"},
	Short:   "Manage default values for command flags",
	Long: fmt.Sprintf(`Manage default values for command flags.
A default is used whenever the flag is not given on the command line.
Keys are long flag names, one of: %v`, strings.Join(sortedSwitchNames(), ", ")),
}

var defaultAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Set the default value of a flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := switches[defaultAddCfg.Key]; !ok || defaultAddCfg.Key == "mock" {
			return fmt.Errorf("unknown flag %q", defaultAddCfg.Key)
		}
		defaultAddCfg.ConfigFile = config.Main
		defaultAddCfg.Writer = cmd.OutOrStdout()
		return actions.RunDefaultAdd(&defaultAddCfg)
	},
}

var defaultRemoveCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove the default value of a flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultRemoveCfg.ConfigFile = config.Main
		defaultRemoveCfg.Writer = cmd.OutOrStdout()
		return actions.RunDefaultRemove(&defaultRemoveCfg)
	},
}

var defaultListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Print every default flag value",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultListCfg.ConfigFile = config.Main
		defaultListCfg.Writer = cmd.OutOrStdout()
		return actions.RunDefaultList(&defaultListCfg)
	},
}

func sortedSwitchNames() []string {
	retval := make([]string, 0, len(switches))
	for k := range switches {
		if k != "mock" {
			retval = append(retval, k)
		}
	}
	sort.Strings(retval)
	return retval
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(defaultCmd)
	defaultCmd.AddCommand(defaultAddCmd, defaultRemoveCmd, defaultListCmd)

	defaultAddCmd.Flags().SortFlags = false
	defaultAddCmd.SilenceUsage = true
	defaultAddCmd.Flags().StringVarP(&defaultAddCfg.Key, "key", "k", "", "Long name of the flag to set a default for")
	defaultAddCmd.Flags().StringVarP(&defaultAddCfg.Value, "value", "v", "", "The default value")
	defaultAddCmd.Flags().BoolVarP(&defaultAddCfg.Force, "force", "f", false, "Overwrite an existing default")
	_ = defaultAddCmd.MarkFlagRequired("key")
	_ = defaultAddCmd.MarkFlagRequired("value")

	defaultRemoveCmd.SilenceUsage = true
	defaultRemoveCmd.Flags().StringVarP(&defaultRemoveCfg.Key, "key", "k", "", "Long name of the flag whose default is removed")
	_ = defaultRemoveCmd.MarkFlagRequired("key")

	defaultListCmd.SilenceUsage = true
	defaultListCmd.Flags().StringVarP(&defaultListCfg.Output, "output", "o", actions.OutputText, switches["output"].desc)
}
