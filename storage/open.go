package storage

import (
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
)

// Config selects and configures a Store backend.
type Config struct {
	Provider        string `json:"provider,omitempty"`
	AzureSasToken   string `json:"azureSasToken,omitempty"`
	AzureAccountKey string `json:"azureAccountKey,omitempty"`
	AzureEndpoint   string `json:"azureEndpoint,omitempty"`
	S3Region        string `json:"s3Region,omitempty"`
	AwsKeyID        string `json:"awsKeyId,omitempty"`
	AwsSecretKey    string `json:"awsSecretKey,omitempty"`
	LocalRoot       string `json:"localRoot,omitempty"`
}

// Open returns the Store for cfg.Provider.
func Open(cfg Config) (s Store, err error) {
	switch cfg.Provider {
	case constants.StorageProviderAzure, "":
		var a *AzureStore
		if a, err = NewAzureStore(cfg.AzureSasToken, cfg.AzureAccountKey, cfg.AzureEndpoint); err == nil {
			s = a
		}
	case constants.StorageProviderS3:
		if cfg.S3Region == "" {
			return nil, errors.New("s3 storage requires a region")
		}
		var a *S3Store
		if a, err = NewS3Store(cfg.S3Region, cfg.AwsKeyID, cfg.AwsSecretKey); err == nil {
			s = a
		}
	case constants.StorageProviderLocal:
		if cfg.LocalRoot == "" {
			return nil, errors.New("local storage requires a root directory")
		}
		var l *LocalStore
		if l, err = NewLocalStore(cfg.LocalRoot); err == nil {
			s = l
		}
	default:
		err = errors.Errorf("unsupported storage provider %q", cfg.Provider)
	}
	return
}
