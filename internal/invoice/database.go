package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const resultsBucketName = "results"

// DB defines the interface for persisting processed invoice results
type DB interface {
	// SaveResult saves a processed invoice result, keyed by file name
	SaveResult(result *Result) error

	// GetResult retrieves a result by file name
	GetResult(fileName string) (*Result, error)

	// ListResults returns all persisted results
	ListResults() ([]*Result, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveResult saves a processed invoice result to the database
func (b *BoltDB) SaveResult(result *Result) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultsBucketName))
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		return bucket.Put([]byte(result.FileName), data)
	})
}

// GetResult retrieves a result by file name
func (b *BoltDB) GetResult(fileName string) (*Result, error) {
	var result Result
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultsBucketName))
		data := bucket.Get([]byte(fileName))
		if data == nil {
			return fmt.Errorf("result not found: %s", fileName)
		}
		return json.Unmarshal(data, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResults returns all persisted results
func (b *BoltDB) ListResults() ([]*Result, error) {
	var results []*Result
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultsBucketName))
		return bucket.ForEach(func(_, data []byte) error {
			var result Result
			if err := json.Unmarshal(data, &result); err != nil {
				return fmt.Errorf("unmarshaling result: %w", err)
			}
			results = append(results, &result)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
