package config

import (
	"fmt"
	"os"
	"path"

	"github.com/mitchellh/go-homedir"
)

// mustGetConfigHomeDir returns the full path to the home directory that stores all config files.
// Uses global variable.
func mustGetConfigHomeDir() string {
	if cdcpipeHomeDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		cdcpipeHomeDir = path.Join(home, MainDir)
	}
	return cdcpipeHomeDir
}

// makeDir will make the given directory if it does not already exist.
func makeDir(dir string) error {
	_, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("error creating directory %v: %v", dir, err)
		}
	} else if err != nil {
		return err
	}
	return nil
}

// ExpandPath resolves a leading ~ in p.
func ExpandPath(p string) (string, error) {
	return homedir.Expand(p)
}
