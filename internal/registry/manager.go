package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	archiveDb "github.com/partyhub-games/partyhub/internal/database/archive/database"
	archiveModel "github.com/partyhub-games/partyhub/internal/database/archive/model"
	drawingDb "github.com/partyhub-games/partyhub/internal/database/drawing/database"
	"github.com/partyhub-games/partyhub/internal/engine"
	"github.com/partyhub-games/partyhub/internal/hashutil"
	"github.com/partyhub-games/partyhub/internal/logging"
	"github.com/partyhub-games/partyhub/internal/pictionary"
	"github.com/partyhub-games/partyhub/internal/quiz"
	"github.com/partyhub-games/partyhub/internal/relay"
	"github.com/partyhub-games/partyhub/internal/scoring"
	"github.com/partyhub-games/partyhub/internal/session"
	"github.com/partyhub-games/partyhub/internal/timer"
)

func NewManager(config *Config, timers *timer.Service, hub *broadcast.Hub, ledger *scoring.Ledger, drawings *drawingDb.DB, archive *archiveDb.DB) *Manager {
	return &Manager{
		config:   config,
		timers:   timers,
		hub:      hub,
		ledger:   ledger,
		drawings: drawings,
		archive:  archive,
		sessions: map[string]engine.Engine{},
		codes:    map[string]string{},
	}
}

// Manager is the authoritative directory of active sessions. The maps only
// track membership; all per-session state mutations run on each session's
// own mailbox.
type Manager struct {
	mtx sync.RWMutex

	config   *Config
	timers   *timer.Service
	hub      *broadcast.Hub
	ledger   *scoring.Ledger
	drawings *drawingDb.DB
	archive  *archiveDb.DB

	// key: session id
	sessions map[string]engine.Engine
	// key: join code
	codes map[string]string

	sema       sync.Once
	ctxSess    context.Context
	cancelSess func()
}

func (m *Manager) Run(ctx context.Context) {
	m.sema.Do(func() {
		sessCtx := logging.WithLogger(context.Background(), logging.FromContext(ctx))
		m.ctxSess, m.cancelSess = context.WithCancel(sessCtx)
	})
}

// Shutdown tears every live session down, cancelling its timers before the
// mailbox closes.
func (m *Manager) Shutdown() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for id, eng := range m.sessions {
		eng.Shutdown()
		m.hub.DropSession(id)
	}

	m.sessions = map[string]engine.Engine{}
	m.codes = map[string]string{}

	if m.cancelSess != nil {
		m.cancelSess()
	}
}

func (m *Manager) CreateQuiz(ctx context.Context, creatorID string, settings quiz.Settings) (*quiz.Engine, error) {
	if settings.GraceDelay <= 0 {
		settings.GraceDelay = m.config.GraceDelay
	}

	var eng *quiz.Engine
	err := m.register(ctx, func(sess *session.Session) engine.Engine {
		eng = quiz.New(sess, m.timers, m.hub, m.ledger, quiz.Config{
			Settings: settings,
			DoneFn:   m.doneFn(sess),
		})
		return eng
	}, session.ModeQuiz, creatorID)

	return eng, err
}

func (m *Manager) CreatePictionary(ctx context.Context, creatorID string, settings pictionary.Settings) (*pictionary.Engine, error) {
	if settings.CelebrateDelay <= 0 {
		settings.CelebrateDelay = m.config.CelebrateDelay
	}
	if settings.RevealDelay <= 0 {
		settings.RevealDelay = m.config.RevealDelay
	}

	var eng *pictionary.Engine
	err := m.register(ctx, func(sess *session.Session) engine.Engine {
		eng = pictionary.New(sess, m.timers, m.hub, m.ledger, m.drawings, pictionary.Config{
			Settings: settings,
			DoneFn:   m.doneFn(sess),
		})
		return eng
	}, session.ModePictionary, creatorID)

	return eng, err
}

func (m *Manager) CreateRelay(ctx context.Context, creatorID string, settings relay.Settings) (*relay.Engine, error) {
	var eng *relay.Engine
	err := m.register(ctx, func(sess *session.Session) engine.Engine {
		eng = relay.New(sess, m.timers, m.hub, m.drawings, relay.Config{
			Settings: settings,
			DoneFn:   m.doneFn(sess),
		})
		return eng
	}, session.ModeRelay, creatorID)

	return eng, err
}

func (m *Manager) register(ctx context.Context, build func(*session.Session) engine.Engine, mode session.GameMode, creatorID string) error {
	logger := logging.FromContext(ctx).Named("registry.register")

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.ctxSess == nil {
		return fmt.Errorf("manager is not running")
	}

	var code string
	for {
		code = hashutil.JoinCode(m.config.JoinCodeLength)
		if _, taken := m.codes[code]; !taken {
			break
		}
	}

	sess := session.New(mode, code, creatorID)
	eng := build(sess)
	eng.Run(m.ctxSess)

	m.sessions[sess.ID] = eng
	m.codes[code] = sess.ID

	logger.Infof("The %s session created, code: %s, author: %s", mode, code, creatorID)
	return nil
}

// doneFn archives the finish report. Engines call it from their own mailbox
// when a session reaches its natural end.
func (m *Manager) doneFn(sess *session.Session) func(report archiveModel.Report) error {
	return func(report archiveModel.Report) error {
		if err := m.archive.Add(report); err != nil {
			return fmt.Errorf("archive db add: %w", err)
		}

		logging.FromContext(m.ctxSess).Named("registry.done").
			Infof("The %s session is complete, code: %s", sess.Mode, sess.Code)
		return nil
	}
}

func (m *Manager) Get(sessionID string) (engine.Engine, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	eng, ok := m.sessions[sessionID]
	return eng, ok
}

func (m *Manager) ByCode(code string) (engine.Engine, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, false
	}
	eng, ok := m.sessions[id]
	return eng, ok
}

func (m *Manager) Quiz(sessionID string) (*quiz.Engine, error) {
	eng, ok := m.Get(sessionID)
	if !ok {
		return nil, session.NotFound("session %s", sessionID)
	}

	q, ok := eng.(*quiz.Engine)
	if !ok {
		return nil, session.InvalidState("session %s is not a quiz", sessionID)
	}
	return q, nil
}

func (m *Manager) Pictionary(sessionID string) (*pictionary.Engine, error) {
	eng, ok := m.Get(sessionID)
	if !ok {
		return nil, session.NotFound("session %s", sessionID)
	}

	p, ok := eng.(*pictionary.Engine)
	if !ok {
		return nil, session.InvalidState("session %s is not a pictionary", sessionID)
	}
	return p, nil
}

func (m *Manager) Relay(sessionID string) (*relay.Engine, error) {
	eng, ok := m.Get(sessionID)
	if !ok {
		return nil, session.NotFound("session %s", sessionID)
	}

	r, ok := eng.(*relay.Engine)
	if !ok {
		return nil, session.InvalidState("session %s is not a relay", sessionID)
	}
	return r, nil
}

// Join adds a fresh participant to a session, honoring the per-mode
// late-join rule.
func (m *Manager) Join(ctx context.Context, sessionID, displayName, teamName string) (*session.Participant, error) {
	eng, ok := m.Get(sessionID)
	if !ok {
		return nil, session.NotFound("session %s", sessionID)
	}

	p := session.NewParticipant(displayName, teamName)
	if err := eng.Join(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) JoinByCode(ctx context.Context, code, displayName, teamName string) (*session.Participant, error) {
	eng, ok := m.ByCode(code)
	if !ok {
		return nil, session.NotFound("session with code %s", code)
	}
	return m.Join(ctx, eng.Session().ID, displayName, teamName)
}

func (m *Manager) Leave(ctx context.Context, sessionID, participantID string) error {
	eng, ok := m.Get(sessionID)
	if !ok {
		return session.NotFound("session %s", sessionID)
	}
	return eng.Leave(ctx, participantID)
}

func (m *Manager) Start(ctx context.Context, sessionID, actorID string) error {
	eng, ok := m.Get(sessionID)
	if !ok {
		return session.NotFound("session %s", sessionID)
	}
	return eng.Start(ctx, actorID)
}

func (m *Manager) Stop(ctx context.Context, sessionID, actorID string) error {
	eng, ok := m.Get(sessionID)
	if !ok {
		return session.NotFound("session %s", sessionID)
	}
	return eng.StopGame(ctx, actorID)
}

// Archive moves a finished session to archived: the report stays in the
// archive store, everything live is released.
func (m *Manager) Archive(ctx context.Context, sessionID, actorID string) error {
	eng, ok := m.Get(sessionID)
	if !ok {
		return session.NotFound("session %s", sessionID)
	}

	sess := eng.Session()
	if !sess.IsMaster(actorID) {
		return session.Forbidden("only the session master can archive")
	}

	if err := sess.SetStatus(session.StatusArchived); err != nil {
		return err
	}

	m.release(sessionID, sess.Code)
	eng.Shutdown()
	m.ledger.Drop(sessionID)

	logging.FromContext(ctx).Named("registry.archive").
		Infof("The session archived, code: %s", sess.Code)
	return nil
}

// Delete removes a session and everything it owns: timers, subscribers,
// ledger events, drawings and any archived report.
func (m *Manager) Delete(ctx context.Context, sessionID, actorID string) error {
	eng, ok := m.Get(sessionID)
	if !ok {
		return session.NotFound("session %s", sessionID)
	}

	sess := eng.Session()
	if !sess.IsMaster(actorID) {
		return session.Forbidden("only the session master can delete")
	}

	m.release(sessionID, sess.Code)
	eng.Shutdown()
	m.ledger.Drop(sessionID)

	if err := m.drawings.DeleteLobby(sessionID); err != nil {
		return fmt.Errorf("delete lobby drawings: %w", err)
	}

	if err := m.archive.Delete(sessionID); err != nil && err != archiveDb.ErrBucketNotFound {
		return fmt.Errorf("delete archived report: %w", err)
	}

	logging.FromContext(ctx).Named("registry.delete").
		Infof("The session deleted, code: %s", sess.Code)
	return nil
}

func (m *Manager) release(sessionID, code string) {
	m.mtx.Lock()
	delete(m.sessions, sessionID)
	delete(m.codes, code)
	m.mtx.Unlock()

	m.hub.DropSession(sessionID)
}

func (m *Manager) SessionLen() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.sessions)
}

// Reports lists archived finish reports, newest first.
func (m *Manager) Reports() ([]archiveModel.Report, error) {
	reports, err := m.archive.FetchAll()
	if err != nil {
		if err == archiveDb.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("archive db fetch all: %w", err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].FinishedAt.After(reports[j].FinishedAt)
	})

	return reports, nil
}
