package namespace

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	om "github.com/cevaris/ordered_map"
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/helper"
	"github.com/relloyd/cdcpipe/stagefile"
	"github.com/relloyd/cdcpipe/table"
)

var ErrFrozen = errors.New("namespace is frozen: tables cannot be registered after setup or streaming has started")

// DuplicateTableError is returned when a table identity is registered twice.
type DuplicateTableError struct {
	Identity table.Identity
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("table %v is already registered in the namespace", e.Identity)
}

// Config is the shared configuration of a group of replicated tables.
type Config struct {
	FileFormatName  string `errorTxt:"file format name" mandatory:"yes"`
	CredentialToken string // SAS token used by the stage when the storage provider is azure.
	AwsKeyID        string // stage credentials when the storage provider is s3.
	AwsSecretKey    string
	StageName       string `errorTxt:"stage name" mandatory:"yes"`
	StorageProvider string // azure (default), s3 or local.
	StorageAccount  string `errorTxt:"storage account" mandatory:"yes"`
	Container       string `errorTxt:"container" mandatory:"yes"`
	Database        string `errorTxt:"database" mandatory:"yes"`
	Schema          string `errorTxt:"schema" mandatory:"yes"`
	BasePath        string
	FileFormat      stagefile.Format
}

// Namespace is the registry of tables that share a stage, file format and storage location.
type Namespace struct {
	cfg     Config
	mu      sync.RWMutex
	tables  *om.OrderedMap // table.Identity -> table.Spec
	frozen  bool
	setupMu sync.Mutex
}

// New validates cfg and returns an empty namespace.
func New(cfg Config) (*Namespace, error) {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid namespace configuration")
	}
	if cfg.StorageProvider == "" {
		cfg.StorageProvider = constants.StorageProviderAzure
	}
	switch cfg.StorageProvider {
	case constants.StorageProviderAzure, constants.StorageProviderS3, constants.StorageProviderLocal:
	default:
		return nil, errors.Errorf("unsupported storage provider %q", cfg.StorageProvider)
	}
	cfg.BasePath = strings.Trim(cfg.BasePath, "/")
	cfg.FileFormat = cfg.FileFormat.WithDefaults()
	if err := cfg.FileFormat.Validate(); err != nil {
		return nil, err
	}
	return &Namespace{cfg: cfg, tables: om.NewOrderedMap()}, nil
}

// Config returns a copy of the namespace configuration.
func (n *Namespace) Config() Config {
	return n.cfg
}

// Register adds spec to the namespace.
func (n *Namespace) Register(spec table.Spec) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.frozen {
		return ErrFrozen
	}
	id := spec.Identity()
	if _, ok := n.tables.Get(id); ok {
		return &DuplicateTableError{Identity: id}
	}
	n.tables.Set(id, spec)
	return nil
}

// Freeze stops further registration.
func (n *Namespace) Freeze() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frozen = true
}

func (n *Namespace) IsFrozen() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.frozen
}

// Tables returns the registered specs in registration order.
func (n *Namespace) Tables() []table.Spec {
	n.mu.RLock()
	defer n.mu.RUnlock()
	retval := make([]table.Spec, 0, n.tables.Len())
	iter := n.tables.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Value.(table.Spec))
	}
	return retval
}

func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tables.Len()
}

func (n *Namespace) Get(id table.Identity) (table.Spec, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.tables.Get(id)
	if !ok {
		return table.Spec{}, false
	}
	return v.(table.Spec), true
}

// LockSetup serialises provisioning against the source for this namespace.
// Call the returned func to release the lock.
func (n *Namespace) LockSetup() func() {
	n.setupMu.Lock()
	return n.setupMu.Unlock
}

// Root returns "<container>@<storage_account>".
func (n *Namespace) Root() string {
	return fmt.Sprintf("%v@%v", n.cfg.Container, n.cfg.StorageAccount)
}

func (n *Namespace) tablePath(spec table.Spec, elem string) string {
	parts := []string{n.Root()}
	if n.cfg.BasePath != "" {
		parts = append(parts, n.cfg.BasePath)
	}
	parts = append(parts, spec.Database(), spec.Schema(), spec.TableName(), elem)
	return strings.Join(parts, "/")
}

// CheckpointLocation returns the checkpoint root of a table.
func (n *Namespace) CheckpointLocation(spec table.Spec) string {
	return n.tablePath(spec, constants.PathElementCheckpoint)
}

// CheckpointPath returns the checkpoint location of a table stream in the given mode.
// Append and merge streams of the same table use different paths.
func (n *Namespace) CheckpointPath(spec table.Spec, mode table.Mode) string {
	return n.CheckpointLocation(spec) + "/" + string(mode)
}

func (n *Namespace) SchemaPath(spec table.Spec) string {
	return n.tablePath(spec, constants.PathElementSchema)
}

func (n *Namespace) DataPath(spec table.Spec) string {
	return n.tablePath(spec, constants.PathElementData)
}

// StagePath returns the directory, relative to the stage, that the export task writes to.
func (n *Namespace) StagePath(spec table.Spec) string {
	return strings.Join([]string{spec.Database(), spec.Schema(), spec.TableName(), constants.PathElementData}, "/") + "/"
}

// StageURL returns the external location that backs the stage.
func (n *Namespace) StageURL() (string, error) {
	var u string
	switch n.cfg.StorageProvider {
	case constants.StorageProviderAzure:
		u = fmt.Sprintf("azure://%v.blob.core.windows.net/%v", n.cfg.StorageAccount, n.cfg.Container)
	case constants.StorageProviderS3:
		u = fmt.Sprintf("s3://%v", n.cfg.Container)
	default:
		return "", errors.Errorf("storage provider %q cannot back an external stage", n.cfg.StorageProvider)
	}
	if n.cfg.BasePath != "" {
		u += "/" + n.cfg.BasePath
	}
	return u + "/", nil
}

// FullyQualified returns database.schema.name for an object created in the namespace schema.
func (n *Namespace) FullyQualified(name string) string {
	return strings.Join([]string{n.cfg.Database, n.cfg.Schema, name}, ".")
}

// ParseStorageLocation splits "abfss://<container>@<account>.dfs.core.windows.net/<path>" into its parts.
func ParseStorageLocation(location string) (container string, account string, path string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", errors.Wrapf(err, "error parsing storage location %q", location)
	}
	switch u.Scheme {
	case "abfss", "abfs", "wasbs", "wasb":
	default:
		return "", "", "", errors.Errorf("unsupported storage location scheme %q", u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return "", "", "", errors.Errorf("storage location %q has no container", location)
	}
	container = u.User.Username()
	account, _ = helper.Split(u.Hostname(), ".")
	if account == "" {
		return "", "", "", errors.Errorf("storage location %q has no account", location)
	}
	return container, account, strings.Trim(u.Path, "/"), nil
}
