package source

import "fmt"

// QueryError is returned when an ad-hoc statement fails in the source warehouse.
type QueryError struct {
	Code    string // Snowflake error number, when available.
	Message string
	SQL     string
	Cause   error
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query failed with code %v: %v", e.Code, e.Message)
	}
	return fmt.Sprintf("query failed: %v", e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// ProvisioningError is returned when a setup step fails against the source warehouse.
// Setup can be retried since every step checks for existing objects first.
type ProvisioningError struct {
	Resource string
	Cause    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("error provisioning %v: %v", e.Resource, e.Cause)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Cause
}
