package ingest

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var checkpointBucket = []byte("ingest_checkpoints")

// Checkpoint records how many rows of a named source have been fully
// committed, so an interrupted run can resume at the next batch.
type Checkpoint struct {
	db *bolt.DB
}

// OpenCheckpoint opens (creating if needed) a checkpoint database at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint bucket: %w", err)
	}

	return &Checkpoint{db: db}, nil
}

// Close closes the checkpoint database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// RowsDone returns the committed row count for a source, zero if unseen.
func (c *Checkpoint) RowsDone(source string) (uint64, error) {
	var done uint64
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(checkpointBucket).Get([]byte(source))
		if len(v) == 8 {
			done = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading checkpoint: %w", err)
	}
	return done, nil
}

// SetRowsDone records the committed row count for a source.
func (c *Checkpoint) SetRowsDone(source string, rows uint64) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], rows)
		return tx.Bucket(checkpointBucket).Put([]byte(source), v[:])
	})
	if err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint for a source.
func (c *Checkpoint) Clear(source string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Delete([]byte(source))
	})
	if err != nil {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}
	return nil
}
