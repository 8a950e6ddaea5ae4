package checkpoint

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/storage"
)

// StorageStore keeps each State as a JSON object under the checkpoint path in the staged-file store.
type StorageStore struct {
	objects storage.Store
}

func NewStorageStore(objects storage.Store) *StorageStore {
	return &StorageStore{objects: objects}
}

func objectPath(path string) string {
	return path + "/" + constants.CheckpointFileName
}

func (s *StorageStore) Load(ctx context.Context, path string) (State, error) {
	st := State{}
	b, err := s.objects.Get(ctx, objectPath(path))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return st, nil
	}
	if err != nil {
		return st, errors.Wrapf(err, "error loading checkpoint %v", path)
	}
	if err = json.Unmarshal(b, &st); err != nil {
		return st, errors.Wrapf(err, "error decoding checkpoint %v", path)
	}
	return st, nil
}

func (s *StorageStore) Save(ctx context.Context, path string, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrapf(err, "error encoding checkpoint %v", path)
	}
	return errors.Wrapf(s.objects.Put(ctx, objectPath(path), b), "error saving checkpoint %v", path)
}
