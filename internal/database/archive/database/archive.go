package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/partyhub-games/partyhub/internal/database"
	"github.com/partyhub-games/partyhub/internal/database/archive/model"
	bolt "go.etcd.io/bbolt"
)

const prefix = "archive"

var (
	ErrNotFound       = fmt.Errorf("not found")
	ErrBucketNotFound = fmt.Errorf("bucket not found")
)

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

type DB struct {
	sDB *database.DB
}

func (db *DB) Add(m model.Report) error {
	tx, err := db.sDB.DB.Begin(true)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer tx.Rollback() // nolint

	b := tx.Bucket([]byte(prefix))
	if b == nil {
		bs, err := tx.CreateBucket([]byte(prefix))
		if err != nil {
			return fmt.Errorf("can not create bucket: %w", err)
		}
		b = bs
	}

	bytes, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := b.Put([]byte(m.LobbyID), bytes); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (db *DB) Fetch(lobbyID string) (model.Report, error) {
	var report model.Report

	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix))
		if b == nil {
			return ErrNotFound
		}

		raw := b.Get([]byte(lobbyID))
		if raw == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(raw, &report); err != nil {
			return fmt.Errorf("json unmarshal error, %w", err)
		}

		return nil
	}); err != nil {
		return report, err
	}

	return report, nil
}

func (db *DB) FetchAll() ([]model.Report, error) {
	var list []model.Report

	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix))
		if b == nil {
			return ErrNotFound
		}

		if err := b.ForEach(func(k, v []byte) error {
			var report model.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("json unmarshal error, %w", err)
			}
			list = append(list, report)
			return nil
		}); err != nil {
			return fmt.Errorf("bucket for each: %w", err)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return list, nil
}

func (db *DB) Delete(lobbyID string) error {
	tx, err := db.sDB.DB.Begin(true)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer tx.Rollback() // nolint

	b := tx.Bucket([]byte(prefix))
	if b == nil {
		return ErrBucketNotFound
	}

	if err := b.Delete([]byte(lobbyID)); err != nil {
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return ErrBucketNotFound
		}
		return fmt.Errorf("delete from bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
