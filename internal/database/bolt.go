// Package database persists debrid magnets uploaded on behalf of users so the
// cleanup service can remove them later. Storage is a single bbolt bucket.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	dbFileMode = 0600
	dbDirMode  = 0755

	defaultDBFile = "data.db"
)

var magnetsBucket = []byte("magnets")

// Magnet is one upload made to a queue-and-poll debrid provider.
type Magnet struct {
	ID       string    `json:"id"`
	Hash     string    `json:"hash"`
	Name     string    `json:"name"`
	AddedAt  time.Time `json:"added_at"`
	Provider string    `json:"provider"`
	RemoteID string    `json:"remote_id"` // provider-side magnet id
	APIKey   string    `json:"api_key"`   // credential needed to delete it
}

// Database is the magnet store used by the resolver and the cleanup service.
type Database interface {
	StoreMagnet(magnet *Magnet) error
	GetMagnets() ([]Magnet, error)
	// GetOldMagnets returns magnets added more than olderThan ago.
	GetOldMagnets(olderThan time.Duration) ([]Magnet, error)
	DeleteMagnet(id string) error
	Close() error
}

// BoltDB implements Database on go.etcd.io/bbolt.
type BoltDB struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBolt opens (or creates) the database file. An empty path uses ./data.db.
func NewBolt(dbPath string) (*BoltDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", defaultDBFile)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirMode); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, dbFileMode, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(magnetsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create magnets bucket: %w", err)
	}

	return &BoltDB{db: db, now: time.Now}, nil
}

func (d *BoltDB) Close() error {
	return d.db.Close()
}

// StoreMagnet upserts by ID. AddedAt is stamped when left zero.
func (d *BoltDB) StoreMagnet(magnet *Magnet) error {
	if magnet == nil || magnet.ID == "" {
		return errors.New("magnet id is required")
	}
	m := *magnet
	if m.AddedAt.IsZero() {
		m.AddedAt = d.now()
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode magnet: %w", err)
	}

	err = d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).Put([]byte(m.ID), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to store magnet: %w", err)
	}
	return nil
}

func (d *BoltDB) GetMagnets() ([]Magnet, error) {
	return d.find(func(Magnet) bool { return true })
}

func (d *BoltDB) GetOldMagnets(olderThan time.Duration) ([]Magnet, error) {
	cutoff := d.now().Add(-olderThan)
	return d.find(func(m Magnet) bool { return m.AddedAt.Before(cutoff) })
}

// DeleteMagnet is a no-op for unknown ids.
func (d *BoltDB) DeleteMagnet(id string) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete magnet: %w", err)
	}
	return nil
}

func (d *BoltDB) find(keep func(Magnet) bool) ([]Magnet, error) {
	magnets := []Magnet{}
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).ForEach(func(k, v []byte) error {
			var m Magnet
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("corrupt magnet %q: %w", k, err)
			}
			if keep(m) {
				magnets = append(magnets, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read magnets: %w", err)
	}
	return magnets, nil
}
