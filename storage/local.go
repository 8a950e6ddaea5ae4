package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const localTempPrefix = ".tmp-"

// LocalStore implements Store on the local filesystem under root.
// Objects live at <root>/<container>@<account>/<key>.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve local storage root")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create local storage root")
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) fullPath(path string) (string, error) {
	loc, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	p := filepath.Join(l.root, filepath.FromSlash(loc.String()))
	if !strings.HasPrefix(p, filepath.Clean(l.root)) {
		return "", errors.Errorf("path %q escapes the storage root", path)
	}
	return p, nil
}

func (l *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full, err := l.fullPath(prefix)
	if err != nil {
		return nil, err
	}
	// Walk from the deepest directory containing the prefix and filter on the full prefix.
	dir := full
	if fi, err := os.Stat(full); err != nil || !fi.IsDir() {
		dir = filepath.Dir(full)
	}
	retval := make([]ObjectInfo, 0)
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), localTempPrefix) || !strings.HasPrefix(p, full) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		retval = append(retval, ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error listing %v", prefix)
	}
	sort.Slice(retval, func(i, j int) bool { return retval[i].Key < retval[j].Key })
	return retval, nil
}

func (l *LocalStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := l.fullPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %v", path)
	}
	return b, nil
}

// Put writes data to a temp file and renames it so readers never see a partial object.
func (l *LocalStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.fullPath(path)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return errors.Wrapf(err, "error creating directory for %v", path)
	}
	f, err := os.CreateTemp(filepath.Dir(full), localTempPrefix+"*")
	if err != nil {
		return errors.Wrapf(err, "error creating temp file for %v", path)
	}
	tmp := f.Name()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "error writing %v", path)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "error closing %v", path)
	}
	if err = os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "error renaming %v", path)
	}
	return nil
}

func (l *LocalStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.fullPath(path)
	if err != nil {
		return err
	}
	if err = os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "error deleting %v", path)
	}
	return nil
}
