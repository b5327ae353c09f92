package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("embeddings")

// BoltStore keeps vectors in a local bbolt file. Suitable for the CLI and
// single-node deployments.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) GetEmbeddings(_ context.Context, ids []string) (map[string]Record, error) {
	result := make(map[string]Record, len(ids))

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, id := range ids {
			raw := b.Get([]byte(id))
			if raw == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode embedding %s: %w", id, err)
			}
			result[id] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *BoltStore) PutEmbedding(_ context.Context, rec Record) error {
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}
	if rec.JobPostingID == "" {
		return errors.New("job posting id is required")
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode embedding %s: %w", rec.JobPostingID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(rec.JobPostingID), raw)
	})
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
