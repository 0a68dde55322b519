package repositories

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements [Store] on a Pebble database. Keys are "namespace/key".
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (or creates) a Pebble database directory at path.
func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func pebbleKey(namespace, key string) []byte {
	return []byte(namespace + "/" + key)
}

func (s *PebbleStore) Get(namespace, key string) (string, bool, error) {
	v, closer, err := s.db.Get(pebbleKey(namespace, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	defer closer.Close()
	return string(v), true, nil
}

func (s *PebbleStore) Put(namespace, key, value string) error {
	if err := s.db.Set(pebbleKey(namespace, key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PebbleStore) Delete(namespace, key string) error {
	if err := s.db.Delete(pebbleKey(namespace, key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PebbleStore) List(namespace string) (map[string]string, error) {
	prefix := []byte(namespace + "/")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", namespace, err)
	}
	defer iter.Close()

	entries := make(map[string]string)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		entries[string(iter.Key()[len(prefix):])] = string(iter.Value())
	}
	return entries, iter.Error()
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
