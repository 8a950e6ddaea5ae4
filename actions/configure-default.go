package actions

import (
	"errors"
	"fmt"
	"io"

	"github.com/relloyd/cdcpipe/config"
	"github.com/relloyd/cdcpipe/helper"
)

type DefaultAddConfig struct {
	ConfigFile DefaultsStore `errorTxt:"config-file" mandatory:"yes"`
	Key        string        `errorTxt:"key" mandatory:"yes"`
	Value      string        `errorTxt:"value" mandatory:"yes"`
	Force      bool
	Writer     io.Writer
}

type DefaultRemoveConfig struct {
	ConfigFile DefaultsStore `errorTxt:"config-file" mandatory:"yes"`
	Key        string        `errorTxt:"key" mandatory:"yes"`
	Writer     io.Writer
}

type DefaultListConfig struct {
	ConfigFile DefaultsStore `errorTxt:"config-file" mandatory:"yes"`
	Output     string
	Writer     io.Writer
}

// RunDefaultAdd adds key+value to the given config file.
// If cfg.Force is not set then it returns an error when the key exists.
func RunDefaultAdd(cfg *DefaultAddConfig) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	var val string
	if err := cfg.ConfigFile.Get(cfg.Key, &val); err == nil && !cfg.Force { // if key exists and we're not allowed to overwrite...
		return fmt.Errorf("key %q exists, use force to update the value or remove it first", cfg.Key)
	} else if err != nil && !errors.As(err, &config.KeyNotFoundError{}) {
		return err
	}
	if err := cfg.ConfigFile.Set(cfg.Key, cfg.Value); err != nil {
		return fmt.Errorf("error writing config file after adding: %v", err)
	}
	_, err := fmt.Fprintf(writerOrStdout(cfg.Writer), "Key %q added\n", cfg.Key)
	return err
}

// RunDefaultRemove removes a key from the given config file.
func RunDefaultRemove(cfg *DefaultRemoveConfig) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	if err := cfg.ConfigFile.Delete(cfg.Key); err != nil {
		return fmt.Errorf("unable to delete key %q from config: %v", cfg.Key, err)
	}
	_, err := fmt.Fprintf(writerOrStdout(cfg.Writer), "Key %q removed\n", cfg.Key)
	return err
}

// RunDefaultList prints every default in key order, as key=value lines or as a YAML or JSON map.
func RunDefaultList(cfg *DefaultListConfig) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	keys, err := cfg.ConfigFile.GetAllKeys()
	if err != nil {
		return err
	}
	defaults := make(map[string]string, len(keys))
	for _, k := range keys {
		var val string
		if err := cfg.ConfigFile.Get(k, &val); err != nil {
			return err
		}
		defaults[k] = val
	}
	return printOutput(writerOrStdout(cfg.Writer), cfg.Output, defaults, func(w io.Writer) error {
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "%v=%v\n", k, defaults[k]); err != nil {
				return err
			}
		}
		return nil
	})
}
