package database

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/partyhub-games/partyhub/internal/cache"
	"github.com/partyhub-games/partyhub/internal/database"
	"github.com/partyhub-games/partyhub/internal/database/drawing/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o600, nil)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	lru, err := cache.NewLRU(16)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	return New(&database.DB{DB: db}, lru)
}

func testDrawing(lobby string, round int, team string) model.Drawing {
	return model.Drawing{
		ID:         "d-" + team,
		LobbyID:    lobby,
		Round:      round,
		Team:       team,
		Key:        "house",
		UploadedBy: "p-" + team,
		ImageData:  []byte("png-bytes-" + team),
		CreatedAt:  time.Now(),
	}
}

func TestPutIsPutIfAbsent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	stored, err := db.Put(testDrawing("lobby1", 0, "red"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !stored {
		t.Fatalf("first put must store")
	}

	second := testDrawing("lobby1", 0, "red")
	second.ImageData = []byte("other-bytes")
	stored, err = db.Put(second)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if stored {
		t.Fatalf("second put for a filled slot must not store")
	}

	got, err := db.Fetch("lobby1", 0, "red")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(got.ImageData) != "png-bytes-red" {
		t.Fatalf("slot overwritten: %q", got.ImageData)
	}
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if _, err := db.Fetch("lobby1", 0, "red"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchByLobbyScopesPrefix(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	for _, d := range []model.Drawing{
		testDrawing("lobby1", 0, "red"),
		testDrawing("lobby1", 1, "red"),
		testDrawing("lobby1", 0, "blue"),
		testDrawing("lobby2", 0, "red"),
	} {
		if _, err := db.Put(d); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	list, err := db.FetchByLobby("lobby1")
	if err != nil {
		t.Fatalf("fetch by lobby: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 drawings for lobby1, got %d", len(list))
	}
	for _, d := range list {
		if d.LobbyID != "lobby1" {
			t.Fatalf("foreign lobby leaked: %+v", d)
		}
	}
}

func TestDeleteLobby(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if _, err := db.Put(testDrawing("lobby1", 0, "red")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := db.Put(testDrawing("lobby2", 0, "red")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := db.DeleteLobby("lobby1"); err != nil {
		t.Fatalf("delete lobby: %v", err)
	}

	if _, err := db.Fetch("lobby1", 0, "red"); err != ErrNotFound {
		t.Fatalf("lobby1 drawing survived delete: %v", err)
	}
	if _, err := db.Fetch("lobby2", 0, "red"); err != nil {
		t.Fatalf("lobby2 drawing must survive: %v", err)
	}
}
