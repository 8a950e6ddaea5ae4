package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/pkg/errors"
)

// AzureStore implements Store on Azure Blob Storage.
// One client is created per storage account found in the paths it is given.
type AzureStore struct {
	sasToken   string
	accountKey string
	endpoint   string // format string taking the account name, e.g. https://%s.blob.core.windows.net/
	mu         sync.Mutex
	clients    map[string]*azblob.Client
}

// NewAzureStore authenticates with a SAS token, or with a shared account key when sasToken is empty.
// An empty endpoint uses the public cloud blob endpoint.
func NewAzureStore(sasToken, accountKey, endpoint string) (*AzureStore, error) {
	if sasToken == "" && accountKey == "" {
		return nil, errors.New("azure storage requires a SAS token or an account key")
	}
	if endpoint == "" {
		endpoint = "https://%s.blob.core.windows.net/"
	}
	return &AzureStore{
		sasToken:   strings.TrimPrefix(sasToken, "?"),
		accountKey: accountKey,
		endpoint:   endpoint,
		clients:    make(map[string]*azblob.Client),
	}, nil
}

func (a *AzureStore) client(account string) (*azblob.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[account]; ok {
		return c, nil
	}
	serviceURL := fmt.Sprintf(a.endpoint, account)
	var c *azblob.Client
	var err error
	if a.sasToken != "" {
		c, err = azblob.NewClientWithNoCredential(serviceURL+"?"+a.sasToken, nil)
	} else {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(account, a.accountKey)
		if err != nil {
			return nil, errors.Wrap(err, "create shared key credential")
		}
		c, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create Azure blob client for account %v", account)
	}
	a.clients[account] = c
	return c, nil
}

func (a *AzureStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	loc, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}
	c, err := a.client(loc.Account)
	if err != nil {
		return nil, err
	}
	retval := make([]ObjectInfo, 0)
	pager := c.NewListBlobsFlatPager(loc.Container, &azblob.ListBlobsFlatOptions{Prefix: &loc.Key})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "error listing %v", prefix)
		}
		for _, b := range resp.Segment.BlobItems {
			if b.Name == nil {
				continue
			}
			oi := ObjectInfo{Key: Location{Container: loc.Container, Account: loc.Account, Key: *b.Name}.String()}
			if b.Properties != nil {
				if b.Properties.ContentLength != nil {
					oi.Size = *b.Properties.ContentLength
				}
				if b.Properties.LastModified != nil {
					oi.LastModified = *b.Properties.LastModified
				}
			}
			retval = append(retval, oi)
		}
	}
	return retval, nil
}

func (a *AzureStore) Get(ctx context.Context, path string) ([]byte, error) {
	loc, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	c, err := a.client(loc.Account)
	if err != nil {
		return nil, err
	}
	resp, err := c.DownloadStream(ctx, loc.Container, loc.Key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "error fetching %v", path)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (a *AzureStore) Put(ctx context.Context, path string, data []byte) error {
	loc, err := ParsePath(path)
	if err != nil {
		return err
	}
	c, err := a.client(loc.Account)
	if err != nil {
		return err
	}
	_, err = c.UploadBuffer(ctx, loc.Container, loc.Key, data, nil)
	return errors.Wrapf(err, "error writing %v", path)
}

func (a *AzureStore) Delete(ctx context.Context, path string) error {
	loc, err := ParsePath(path)
	if err != nil {
		return err
	}
	c, err := a.client(loc.Account)
	if err != nil {
		return err
	}
	_, err = c.DeleteBlob(ctx, loc.Container, loc.Key, nil)
	if err != nil && bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	return errors.Wrapf(err, "error deleting %v", path)
}
