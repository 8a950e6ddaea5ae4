package config

import (
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/checkpoint"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/engine"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/rdbms"
	"github.com/relloyd/cdcpipe/rdbms/shared"
	"github.com/relloyd/cdcpipe/source"
	"github.com/relloyd/cdcpipe/storage"
	"github.com/relloyd/cdcpipe/table"
)

// Job is a replication job read from a YAML or JSON file.
type Job struct {
	Source      rdbms.SnowflakeConnectionDetails `json:"source"`
	Namespace   NamespaceSection                 `json:"namespace"`
	Storage     storage.Config                   `json:"storage"`
	Destination destination.DuckDBConfig         `json:"destination"`
	Checkpoint  checkpoint.Config                `json:"checkpoint"`
	Tables      []TableSection                   `json:"tables"`
	Stream      StreamSection                    `json:"stream"`
	Setup       SetupSection                     `json:"setup"`
}

// NamespaceSection is namespace.Config plus an optional abfss:// location that supplies the
// container, account and base path.
type NamespaceSection struct {
	namespace.Config
	StorageLocation string `json:"storageLocation,omitempty"`
}

// TableSection names a source table either by its parts or as "database.schema.table".
type TableSection struct {
	Name      string   `json:"name,omitempty"`
	Database  string   `json:"database,omitempty"`
	Schema    string   `json:"schema,omitempty"`
	Table     string   `json:"table,omitempty"`
	MergeKeys []string `json:"mergeKeys,omitempty"`
}

type StreamSection struct {
	PollInterval     Duration `json:"pollInterval"`
	MaxPollInterval  Duration `json:"maxPollInterval"`
	MaxFilesPerBatch int      `json:"maxFilesPerBatch"`
	MaxApplyRetries  int      `json:"maxApplyRetries"`
	RetryBackoff     Duration `json:"retryBackoff"`
	Concurrency      int      `json:"concurrency"`
	StatsInterval    Duration `json:"statsInterval"`
}

type SetupSection struct {
	TaskSchedule               string   `json:"taskSchedule"`
	TaskWarehouse              string   `json:"taskWarehouse"`
	RecreateAfterFailureWindow Duration `json:"recreateAfterFailureWindow"`
	Concurrency                int      `json:"concurrency"`
}

// Secrets may be kept out of job files and supplied as environment variables instead.
// Environment values take priority.
func (j *Job) envOverrides() map[string]*string {
	return map[string]*string{
		"source-account":             &j.Source.Account,
		"source-user":                &j.Source.User,
		"source-password":            &j.Source.Password,
		"source-role":                &j.Source.RoleName,
		"source-warehouse":           &j.Source.Warehouse,
		"namespace-credential-token": &j.Namespace.CredentialToken,
		"namespace-aws-key-id":       &j.Namespace.AwsKeyID,
		"namespace-aws-secret-key":   &j.Namespace.AwsSecretKey,
		"storage-azure-sas-token":    &j.Storage.AzureSasToken,
		"storage-azure-account-key":  &j.Storage.AzureAccountKey,
		"storage-aws-key-id":         &j.Storage.AwsKeyID,
		"storage-aws-secret-key":     &j.Storage.AwsSecretKey,
		"destination-dsn":            &j.Destination.Dsn,
	}
}

// LoadJob reads the job file at fileName, which may start with ~, then applies CP_ environment overrides.
func LoadJob(fileName string) (*Job, error) {
	p, err := ExpandPath(fileName)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "error reading job file")
	}
	j, err := ParseJob(b)
	if err != nil {
		return nil, errors.Wrapf(err, "error in job file %v", fileName)
	}
	return j, nil
}

// ParseJob decodes YAML or JSON job definition b.
func ParseJob(b []byte) (*Job, error) {
	j := &Job{}
	if err := yaml.Unmarshal(b, j); err != nil {
		return nil, err
	}
	for name, p := range j.envOverrides() {
		_ = helper.ReadValueFromEnv(helper.GetEnvVarName(name), p)
	}
	if err := j.resolveStorageLocation(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Job) resolveStorageLocation() error {
	if j.Namespace.StorageLocation == "" {
		return nil
	}
	container, account, basePath, err := namespace.ParseStorageLocation(j.Namespace.StorageLocation)
	if err != nil {
		return err
	}
	if j.Namespace.Container == "" {
		j.Namespace.Container = container
	}
	if j.Namespace.StorageAccount == "" {
		j.Namespace.StorageAccount = account
	}
	if j.Namespace.BasePath == "" {
		j.Namespace.BasePath = basePath
	}
	return nil
}

// Specs builds the table specs in file order.
func (j *Job) Specs() ([]table.Spec, error) {
	specs := make([]table.Spec, 0, len(j.Tables))
	for _, t := range j.Tables {
		var spec table.Spec
		var err error
		if t.Name != "" {
			spec, err = table.Parse(t.Name, t.MergeKeys)
		} else {
			spec, err = table.NewSpec(t.Database, t.Schema, t.Table, t.MergeKeys)
		}
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// NewNamespace returns a namespace with every table in the job registered.
func (j *Job) NewNamespace() (*namespace.Namespace, error) {
	ns, err := namespace.New(j.Namespace.Config)
	if err != nil {
		return nil, err
	}
	specs, err := j.Specs()
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if err = ns.Register(spec); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

// SourceDSN returns the Snowflake DSN for the source section.
func (j *Job) SourceDSN() (string, error) {
	if err := helper.ValidateStructIsPopulated(j.Source); err != nil {
		return "", errors.Wrap(err, "invalid source configuration")
	}
	return rdbms.SnowflakeGetDSN(&j.Source)
}

// SourceConnection describes the source warehouse for ad hoc queries.
func (j *Job) SourceConnection() (shared.ConnectionDetails, error) {
	dsn, err := j.SourceDSN()
	if err != nil {
		return shared.ConnectionDetails{}, err
	}
	return shared.ConnectionDetails{Type: constants.ConnectionTypeSnowflake, LogicalName: "source", Dsn: dsn}, nil
}

// DestinationConnection describes the destination database for ad hoc queries.
// A leading ~ in the database path is expanded.
func (j *Job) DestinationConnection() (shared.ConnectionDetails, error) {
	dsn, err := ExpandPath(j.Destination.Dsn)
	if err != nil {
		return shared.ConnectionDetails{}, err
	}
	return shared.ConnectionDetails{Type: constants.ConnectionTypeDuckDB, LogicalName: "destination", Dsn: dsn}, nil
}

func (j *Job) SourceConfig() source.Config {
	return source.Config{
		TaskWarehouse:              j.Setup.TaskWarehouse,
		TaskSchedule:               j.Setup.TaskSchedule,
		RecreateAfterFailureWindow: j.Setup.RecreateAfterFailureWindow.Duration,
	}
}

func (j *Job) SetupConcurrency() int {
	if j.Setup.Concurrency > 0 {
		return j.Setup.Concurrency
	}
	return constants.SetupConcurrencyDefault
}

// StorageConfig returns the storage section, falling back to the namespace provider and stage
// credentials for anything left unset.
func (j *Job) StorageConfig() storage.Config {
	s := j.Storage
	if s.Provider == "" {
		s.Provider = strings.ToLower(j.Namespace.StorageProvider)
	}
	if s.Provider == "" {
		s.Provider = constants.StorageProviderAzure
	}
	switch s.Provider {
	case constants.StorageProviderAzure:
		if s.AzureSasToken == "" && s.AzureAccountKey == "" {
			s.AzureSasToken = j.Namespace.CredentialToken
		}
	case constants.StorageProviderS3:
		if s.AwsKeyID == "" {
			s.AwsKeyID = j.Namespace.AwsKeyID
			s.AwsSecretKey = j.Namespace.AwsSecretKey
		}
	}
	return s
}

func (j *Job) CheckpointConfig() checkpoint.Config {
	return j.Checkpoint
}

func (j *Job) DestinationConfig() destination.DuckDBConfig {
	return j.Destination
}

func (j *Job) StreamConfig() engine.StreamConfig {
	return engine.StreamConfig{
		PollInterval:     j.Stream.PollInterval.Duration,
		MaxPollInterval:  j.Stream.MaxPollInterval.Duration,
		MaxFilesPerBatch: j.Stream.MaxFilesPerBatch,
		MaxApplyRetries:  j.Stream.MaxApplyRetries,
		RetryBackoff:     j.Stream.RetryBackoff.Duration,
	}
}

func (j *Job) StreamConcurrency() int {
	if j.Stream.Concurrency > 0 {
		return j.Stream.Concurrency
	}
	return constants.StreamConcurrencyDefault
}
