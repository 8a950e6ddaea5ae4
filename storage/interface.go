package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relloyd/cdcpipe/helper"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one stored object. Key is the full namespace path of the object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store reads and writes objects addressed by namespace paths of the form "<container>@<account>/<key>".
type Store interface {
	Lister
	Getter
	Putter
	Deleter
}

type Lister interface {
	// List returns every object whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type Getter interface {
	// Get returns ErrObjectNotFound if the given path doesn't exist.
	Get(ctx context.Context, path string) ([]byte, error)
}

type Putter interface {
	Put(ctx context.Context, path string, data []byte) error
}

type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Location is a parsed namespace path.
type Location struct {
	Container string
	Account   string
	Key       string
}

func (l Location) String() string {
	if l.Key == "" {
		return fmt.Sprintf("%v@%v", l.Container, l.Account)
	}
	return fmt.Sprintf("%v@%v/%v", l.Container, l.Account, l.Key)
}

// ParsePath splits "<container>@<account>/<key>" into its parts.
// The key may be empty.
func ParsePath(path string) (Location, error) {
	root, key := helper.Split(path, "/")
	container, account := helper.Split(root, "@")
	if container == "" || !strings.Contains(root, "@") {
		return Location{}, fmt.Errorf("invalid storage path %q: expected <container>@<account>/<key>", path)
	}
	return Location{Container: container, Account: account, Key: key}, nil
}
