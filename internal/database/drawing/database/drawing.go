package database

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/partyhub-games/partyhub/internal/byteutil"
	"github.com/partyhub-games/partyhub/internal/cache"
	"github.com/partyhub-games/partyhub/internal/database"
	"github.com/partyhub-games/partyhub/internal/database/drawing/model"
	bolt "go.etcd.io/bbolt"
)

const prefix = "drawings"

var ErrNotFound = fmt.Errorf("not found")

func New(db *database.DB, cache cache.Cache) *DB {
	return &DB{sDB: db, cache: cache}
}

type DB struct {
	sDB *database.DB

	cache cache.Cache
}

// Put persists the drawing unless its slot is already filled. The second
// upload for a slot reports stored=false and leaves the first one untouched,
// which is what makes retries idempotent.
func (db *DB) Put(m model.Drawing) (bool, error) {
	var stored bool

	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(prefix))
		if err != nil {
			return fmt.Errorf("can not create bucket: %w", err)
		}

		key := []byte(m.SlotID())
		if b.Get(key) != nil {
			return nil
		}

		bytes, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}

		if err := b.Put(key, bytes); err != nil {
			return fmt.Errorf("put to bucket error: %w", err)
		}

		stored = true
		return nil
	}); err != nil {
		return false, fmt.Errorf("update transaction error: %w", err)
	}

	if stored {
		db.cache.Add(m.SlotID(), m)
	}

	return stored, nil
}

func (db *DB) Fetch(lobbyID string, round int, team string) (model.Drawing, error) {
	slot := model.SlotID(lobbyID, round, team)
	if cached, ok := db.cache.Get(slot); ok {
		return cached.(model.Drawing), nil
	}

	var drawing model.Drawing
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix))
		if b == nil {
			return ErrNotFound
		}

		raw := b.Get([]byte(slot))
		if raw == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(raw, &drawing); err != nil {
			return fmt.Errorf("json unmarshal error, %w", err)
		}

		return nil
	}); err != nil {
		return drawing, err
	}

	db.cache.Add(slot, drawing)
	return drawing, nil
}

func (db *DB) FetchByLobby(lobbyID string) ([]model.Drawing, error) {
	var list []model.Drawing

	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		seek := []byte(lobbyID + "/")
		for k, v := c.Seek(seek); k != nil && strings.HasPrefix(byteutil.BytesToString(k), lobbyID+"/"); k, v = c.Next() {
			var drawing model.Drawing
			if err := json.Unmarshal(v, &drawing); err != nil {
				return fmt.Errorf("json unmarshal error, %w", err)
			}
			list = append(list, drawing)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return list, nil
}

func (db *DB) DeleteLobby(lobbyID string) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix))
		if b == nil {
			return nil
		}

		var keys [][]byte
		c := b.Cursor()
		seek := []byte(lobbyID + "/")
		for k, _ := c.Seek(seek); k != nil && strings.HasPrefix(byteutil.BytesToString(k), lobbyID+"/"); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}

		for _, k := range keys {
			db.cache.Delete(string(k))
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete from bucket error: %w", err)
			}
		}

		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}
