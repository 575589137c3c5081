package database

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/partyhub-games/partyhub/internal/database"
	"github.com/partyhub-games/partyhub/internal/database/archive/model"
	"github.com/partyhub-games/partyhub/internal/scoring"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o600, nil)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return New(&database.DB{DB: db})
}

func testReport(lobby string) model.Report {
	return model.Report{
		LobbyID:    lobby,
		Code:       "ABC123",
		Mode:       "quiz",
		FinishedAt: time.Now(),
		Ranking:    []scoring.TeamTotal{{Team: "red", Points: 10}},
		Events:     []scoring.Event{{LobbyID: lobby, Team: "red", Round: 0, Points: 10, Reason: "answer validated"}},
	}
}

func TestAddFetchRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if err := db.Add(testReport("lobby1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := db.Fetch("lobby1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Code != "ABC123" || len(got.Ranking) != 1 || got.Ranking[0].Team != "red" {
		t.Fatalf("report mismatch: %+v", got)
	}
}

func TestAddOverwritesSameLobby(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if err := db.Add(testReport("lobby1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	updated := testReport("lobby1")
	updated.Code = "XYZ789"
	if err := db.Add(updated); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	got, err := db.Fetch("lobby1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Code != "XYZ789" {
		t.Fatalf("latest report must win, got %s", got.Code)
	}

	all, err := db.FetchAll()
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one report per lobby, got %d", len(all))
	}
}

func TestFetchMissing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if _, err := db.Fetch("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	if err := db.Delete("lobby1"); err != ErrBucketNotFound {
		t.Fatalf("expected ErrBucketNotFound on empty db, got %v", err)
	}

	if err := db.Add(testReport("lobby1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := db.Delete("lobby1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Fetch("lobby1"); err != ErrNotFound {
		t.Fatalf("report survived delete: %v", err)
	}
}
