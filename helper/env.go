package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/relloyd/cdcpipe/constants"
)

var envVarNameReplacer = strings.NewReplacer("-", "_", ".", "_")

// GetEnvVarName maps a flag or job field name onto its environment variable,
// for example "storage-account" and "storage.account" both give CP_STORAGE_ACCOUNT.
func GetEnvVarName(name string) string {
	return constants.EnvVarPrefix + "_" + envVarNameReplacer.Replace(strings.ToUpper(strings.TrimSpace(name)))
}

// ReadValueFromEnv sets *val from the named environment variable.
// An unset or empty variable returns an error and leaves *val untouched.
func ReadValueFromEnv(name string, val *string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fmt.Errorf("value for environment variable %v not found", name)
	}
	*val = v
	return nil
}

// ReadValueFromEnvWithDefault returns the value of the named environment variable or defaultValue when it is unset.
func ReadValueFromEnvWithDefault(name string, defaultValue string) string {
	v := defaultValue
	_ = ReadValueFromEnv(name, &v)
	return v
}
