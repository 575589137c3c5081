package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	"github.com/partyhub-games/partyhub/internal/cache"
	"github.com/partyhub-games/partyhub/internal/content"
	"github.com/partyhub-games/partyhub/internal/database"
	archiveDb "github.com/partyhub-games/partyhub/internal/database/archive/database"
	drawingDb "github.com/partyhub-games/partyhub/internal/database/drawing/database"
	"github.com/partyhub-games/partyhub/internal/quiz"
	"github.com/partyhub-games/partyhub/internal/scoring"
	"github.com/partyhub-games/partyhub/internal/session"
	"github.com/partyhub-games/partyhub/internal/timer"
)

func newTestManager(t *testing.T) *Manager {
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

	sdb := &database.DB{DB: db}
	ctx := context.Background()

	m := NewManager(
		&Config{JoinCodeLength: 6, GraceDelay: 3 * time.Second, CelebrateDelay: 4 * time.Second, RevealDelay: 4 * time.Second},
		timer.New(ctx, clockwork.NewFakeClock()),
		broadcast.NewHub(ctx),
		scoring.NewLedger(),
		drawingDb.New(sdb, lru),
		archiveDb.New(sdb),
	)
	m.Run(ctx)
	t.Cleanup(m.Shutdown)
	return m
}

func quizSettings() quiz.Settings {
	return quiz.Settings{Questions: []content.Question{{Text: "q", Answer: "a", Points: 10, Type: content.QuestionKindOpen}}}
}

func TestCreateRequiresRun(t *testing.T) {
	t.Parallel()

	m := NewManager(&Config{JoinCodeLength: 6}, nil, broadcast.NewHub(context.Background()), scoring.NewLedger(), nil, nil)
	if _, err := m.CreateQuiz(context.Background(), "admin", quizSettings()); err == nil {
		t.Fatalf("create before run must fail")
	}
}

func TestCreateAndJoinByCode(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	e, err := m.CreateQuiz(context.Background(), "admin", quizSettings())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sess := e.Session()
	if len(sess.Code) != 6 {
		t.Fatalf("unexpected code %q", sess.Code)
	}
	if m.SessionLen() != 1 {
		t.Fatalf("expected one live session")
	}

	p, err := m.JoinByCode(context.Background(), sess.Code, "alice", "red")
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if got, ok := sess.Participant(p.ID); !ok || got.DisplayName != "alice" {
		t.Fatalf("participant not registered")
	}

	if _, err := m.JoinByCode(context.Background(), "NOSUCH", "bob", "blue"); !session.IsKind(err, session.KindNotFound) {
		t.Fatalf("expected not found for a bad code, got %v", err)
	}
}

func TestCodesAreUnique(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		e, err := m.CreateQuiz(context.Background(), "admin", quizSettings())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		code := e.Session().Code
		if seen[code] {
			t.Fatalf("duplicate join code %q", code)
		}
		seen[code] = true
	}
}

func TestTypedGetters(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	e, err := m.CreateQuiz(context.Background(), "admin", quizSettings())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := e.Session().ID

	if _, err := m.Quiz(id); err != nil {
		t.Fatalf("quiz getter: %v", err)
	}
	if _, err := m.Pictionary(id); !session.IsKind(err, session.KindInvalidState) {
		t.Fatalf("expected invalid state for wrong mode, got %v", err)
	}
	if _, err := m.Quiz("missing"); !session.IsKind(err, session.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRequiresMaster(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	e, err := m.CreateQuiz(context.Background(), "admin", quizSettings())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := e.Session().ID

	p, err := m.Join(context.Background(), id, "alice", "red")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := m.Delete(context.Background(), id, p.ID); !session.IsKind(err, session.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := m.Delete(context.Background(), id, "admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.Get(id); ok {
		t.Fatalf("session survived delete")
	}
	if m.SessionLen() != 0 {
		t.Fatalf("session map not empty")
	}
}

func TestArchiveKeepsReport(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	e, err := m.CreateQuiz(context.Background(), "admin", quizSettings())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sess := e.Session()

	if _, err := m.Join(context.Background(), sess.ID, "alice", "red"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.Start(context.Background(), sess.ID, "admin"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Advance(context.Background(), "admin"); err != nil {
		t.Fatalf("advance to finish: %v", err)
	}
	if sess.Status() != session.StatusFinished {
		t.Fatalf("expected finished, got %s", sess.Status())
	}

	if err := m.Archive(context.Background(), sess.ID, "admin"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, ok := m.Get(sess.ID); ok {
		t.Fatalf("archived session must leave the live map")
	}

	reports, err := m.Reports()
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 || reports[0].LobbyID != sess.ID {
		t.Fatalf("archived report missing: %+v", reports)
	}
}
