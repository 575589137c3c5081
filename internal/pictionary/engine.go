package pictionary

import (
	"context"
	"fmt"
	"time"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	"github.com/partyhub-games/partyhub/internal/content"
	archiveModel "github.com/partyhub-games/partyhub/internal/database/archive/model"
	drawingDb "github.com/partyhub-games/partyhub/internal/database/drawing/database"
	drawingModel "github.com/partyhub-games/partyhub/internal/database/drawing/model"
	"github.com/partyhub-games/partyhub/internal/engine"
	"github.com/partyhub-games/partyhub/internal/hashutil"
	"github.com/partyhub-games/partyhub/internal/scoring"
	"github.com/partyhub-games/partyhub/internal/session"
	"github.com/partyhub-games/partyhub/internal/textutil"
	"github.com/partyhub-games/partyhub/internal/timer"
	"github.com/valyala/fastrand"
)

type Settings struct {
	ActualRounds      int
	TimePerRound      int // seconds
	TimePerDrawer     int // seconds, 0 disables drawer rotation
	PointsFirstGuess  int
	PointsOtherGuess  int
	PointsDrawingTeam int
	Words             []content.Word

	// CelebrateDelay runs between full coverage and the next passage,
	// RevealDelay between a timed-out round's reveal and the next passage.
	CelebrateDelay time.Duration
	RevealDelay    time.Duration
}

type Config struct {
	Settings
	DoneFn func(report archiveModel.Report) error
}

func New(sess *session.Session, timers *timer.Service, hub *broadcast.Hub, ledger *scoring.Ledger, drawings *drawingDb.DB, config Config) *Engine {
	e := &Engine{
		Core:      engine.NewCore(sess, timers, hub),
		ledger:    ledger,
		drawings:  drawings,
		config:    config,
		usedWords: map[string]struct{}{},
	}
	e.OnMutate = e.broadcastSnapshot
	return e
}

var _ engine.Engine = (*Engine)(nil)

// Engine drives one pictionary session. One passage = one team drawing one
// word; a full game is actualRounds passes over every team. State below Core
// is mailbox-only.
type Engine struct {
	engine.Core

	ledger   *scoring.Ledger
	drawings *drawingDb.DB
	config   Config

	epoch       uint64
	teams       []string
	passageIdx  int
	drawingTeam string
	currentWord content.Word
	usedWords   map[string]struct{}
	drawerIdx   int
	roundStart  time.Time
	roundOpen   bool
	teamsFound  []string
}

func (e *Engine) totalPassages() int {
	return e.config.ActualRounds * len(e.teams)
}

func (e *Engine) Start(ctx context.Context, actorID string) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can start")
		}

		teams := e.Sess.Teams()
		if len(teams) < 2 {
			return session.PreconditionFailed("pictionary needs at least 2 teams, have %d", len(teams))
		}

		if e.config.ActualRounds < 1 {
			return session.PreconditionFailed("actualRounds must be positive")
		}

		if need := e.config.ActualRounds * len(teams); len(e.config.Words) < need {
			return session.PreconditionFailed("word pool has %d words, need %d", len(e.config.Words), need)
		}

		if err := e.Sess.SetStatus(session.StatusPlaying); err != nil {
			return err
		}

		e.teams = teams
		e.passageIdx = 0
		e.usedWords = map[string]struct{}{}
		e.openPassage()
		return nil
	})
}

// openPassage rotates the drawing team by passage index, which is what makes
// every team draw exactly actualRounds times and never twice within one
// teamCount-length cycle.
func (e *Engine) openPassage() {
	e.epoch++
	e.drawingTeam = e.teams[e.passageIdx%len(e.teams)]
	e.currentWord = e.pickWord()
	e.usedWords[e.currentWord.ID] = struct{}{}
	e.teamsFound = nil
	e.drawerIdx = 0
	e.roundStart = time.Now()
	e.roundOpen = true

	epoch := e.epoch
	e.Timers.Start(e.Sess.ID, timer.SlotRound, time.Duration(e.config.TimePerRound)*time.Second,
		e.publishTick,
		func() {
			e.Box.Post(func() error { return e.roundTimeout(epoch) })
		})

	if e.config.TimePerDrawer > 0 {
		e.armRotation(epoch)
	}

	e.broadcastSnapshot()
}

func (e *Engine) pickWord() content.Word {
	var unused []content.Word
	for _, w := range e.config.Words {
		if _, used := e.usedWords[w.ID]; !used {
			unused = append(unused, w)
		}
	}

	return unused[fastrand.Uint32n(uint32(len(unused)))]
}

// armRotation schedules the next drawer hand-off. The rotation lets every
// member of the drawing team hold the pencil without ending the round.
func (e *Engine) armRotation(epoch uint64) {
	e.Timers.Start(e.Sess.ID, timer.SlotRotation, time.Duration(e.config.TimePerDrawer)*time.Second, nil, func() {
		e.Box.Post(func() error { return e.rotateDrawer(epoch) })
	})
}

func (e *Engine) rotateDrawer(epoch uint64) error {
	if e.epoch != epoch || !e.roundOpen {
		return nil
	}

	members := e.Sess.TeamMembers(e.drawingTeam)
	if len(members) > 0 {
		e.drawerIdx = (e.drawerIdx + 1) % len(members)
	}

	e.armRotation(epoch)
	e.broadcastSnapshot()
	return nil
}

// Guess resolves one team's guess. Case and diacritics are ignored. A wrong
// guess is a legal, unscored action; a guess from the drawing team is
// Forbidden; a guess from a team that already found the word is a no-op.
func (e *Engine) Guess(ctx context.Context, participantID, text string) error {
	return e.Box.Do(ctx, func() error {
		if e.Sess.Status() != session.StatusPlaying || !e.roundOpen {
			return session.InvalidState("no round in progress")
		}

		participant, ok := e.Sess.Participant(participantID)
		if !ok {
			return session.NotFound("participant %s", participantID)
		}

		team := participant.TeamName
		if team == e.drawingTeam {
			return session.Forbidden("the drawing team cannot guess")
		}

		for _, found := range e.teamsFound {
			if found == team {
				return nil
			}
		}

		if !textutil.Equal(text, e.currentWord.Word) {
			e.Hub.Publish(broadcast.Event{
				Type:      broadcast.TypeResult,
				SessionID: e.Sess.ID,
				Payload:   GuessResult{Team: team, Correct: false},
			})
			return nil
		}

		e.teamsFound = append(e.teamsFound, team)

		points, reason := e.config.PointsOtherGuess, "correct guess"
		if len(e.teamsFound) == 1 {
			points, reason = e.config.PointsFirstGuess, "first correct guess"
		}
		e.ledger.Add(e.Sess.ID, team, e.passageIdx, points, reason)
		e.ledger.Add(e.Sess.ID, e.drawingTeam, e.passageIdx, e.config.PointsDrawingTeam, "drawing team reward")

		e.Hub.Publish(broadcast.Event{
			Type:      broadcast.TypeResult,
			SessionID: e.Sess.ID,
			Payload:   GuessResult{Team: team, Correct: true, Order: len(e.teamsFound)},
		})
		e.broadcastSnapshot()

		// Full coverage: every non-drawing team has found the word, so the
		// round ends early after a short celebration.
		if len(e.teamsFound) == len(e.teams)-1 {
			e.roundOpen = false
			e.Timers.Cancel(e.Sess.ID, timer.SlotRound)
			e.Timers.Cancel(e.Sess.ID, timer.SlotRotation)

			epoch := e.epoch
			e.Timers.Start(e.Sess.ID, timer.SlotAdvance, e.config.CelebrateDelay, nil, func() {
				e.Box.Post(func() error { return e.closePassage(epoch) })
			})
		}

		return nil
	})
}

func (e *Engine) roundTimeout(epoch uint64) error {
	if e.epoch != epoch || !e.roundOpen {
		return nil
	}

	e.roundOpen = false
	e.Timers.Cancel(e.Sess.ID, timer.SlotRotation)

	e.Hub.Publish(broadcast.Event{
		Type:      broadcast.TypeResult,
		SessionID: e.Sess.ID,
		Payload:   Reveal{Word: e.currentWord.Word, TeamsFound: append([]string(nil), e.teamsFound...)},
	})

	e.Timers.Start(e.Sess.ID, timer.SlotAdvance, e.config.RevealDelay, nil, func() {
		e.Box.Post(func() error { return e.closePassage(epoch) })
	})

	return nil
}

func (e *Engine) closePassage(epoch uint64) error {
	if e.epoch != epoch || e.Sess.Status() != session.StatusPlaying {
		return nil
	}

	e.passageIdx++
	if e.passageIdx >= e.totalPassages() {
		return e.finish()
	}

	e.openPassage()
	return nil
}

// SaveDrawing persists the drawing team's final canvas for this passage.
// Uploads from anyone but the designated uploader, and repeats for an
// already-filled slot, are silently ignored so that the shared canvas cannot
// produce conflicting snapshots.
func (e *Engine) SaveDrawing(ctx context.Context, participantID string, imageData []byte) error {
	return e.Box.Do(ctx, func() error {
		if e.Sess.Status() != session.StatusPlaying {
			return nil
		}

		uploader, ok := e.Sess.Uploader(e.drawingTeam)
		if !ok || uploader.ID != participantID {
			return nil
		}

		drawing := drawingModel.Drawing{
			ID:         hashutil.SerializedSha1FromTime(),
			LobbyID:    e.Sess.ID,
			Round:      e.passageIdx,
			Team:       e.drawingTeam,
			Key:        e.currentWord.Word,
			UploadedBy: participantID,
			ImageData:  imageData,
			CreatedAt:  time.Now(),
		}

		if _, err := e.drawings.Put(drawing); err != nil {
			return fmt.Errorf("put drawing: %w", err)
		}

		return nil
	})
}

// Stroke relays a live canvas stroke to viewers. Fire-and-forget: no reply,
// loss and reordering are tolerated, correctness rests on SaveDrawing. With
// rotation enabled only the current drawer holds draw permission.
func (e *Engine) Stroke(participantID string, payload interface{}) {
	e.Box.Post(func() error {
		if e.Sess.Status() != session.StatusPlaying || !e.roundOpen {
			return nil
		}

		members := e.Sess.TeamMembers(e.drawingTeam)
		if len(members) == 0 {
			return nil
		}

		allowed := false
		if e.config.TimePerDrawer > 0 {
			allowed = members[e.drawerIdx%len(members)].ID == participantID
		} else {
			for _, m := range members {
				if m.ID == participantID {
					allowed = true
					break
				}
			}
		}
		if !allowed {
			return nil
		}

		e.Hub.Publish(broadcast.Event{Type: broadcast.TypeStroke, SessionID: e.Sess.ID, Payload: payload})
		return nil
	})
}

func (e *Engine) finish() error {
	if err := e.Sess.SetStatus(session.StatusFinished); err != nil {
		return err
	}

	e.Timers.CancelSession(e.Sess.ID)

	drawings, err := e.drawings.FetchByLobby(e.Sess.ID)
	if err != nil {
		return fmt.Errorf("fetch drawings: %w", err)
	}

	report := archiveModel.Report{
		LobbyID:    e.Sess.ID,
		Code:       e.Sess.Code,
		Mode:       e.Sess.Mode.String(),
		FinishedAt: time.Now(),
		Ranking:    e.ledger.Ranking(e.Sess.ID),
		Events:     e.ledger.Events(e.Sess.ID),
		Drawings:   drawings,
	}

	if e.config.DoneFn != nil {
		if err := e.config.DoneFn(report); err != nil {
			return err
		}
	}

	e.Hub.Publish(broadcast.Event{Type: broadcast.TypeResult, SessionID: e.Sess.ID, Payload: report})
	e.broadcastSnapshot()
	return nil
}

func (e *Engine) StopGame(ctx context.Context, actorID string) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can stop")
		}

		if err := e.Sess.SetStatus(session.StatusWaiting); err != nil {
			return err
		}

		e.Timers.CancelSession(e.Sess.ID)

		// The aborted game's canvases must not occupy slots a restarted
		// game will write to.
		if err := e.drawings.DeleteLobby(e.Sess.ID); err != nil {
			return fmt.Errorf("delete lobby drawings: %w", err)
		}

		e.epoch++
		e.passageIdx = 0
		e.roundOpen = false
		e.teamsFound = nil
		e.usedWords = map[string]struct{}{}
		e.ledger.Drop(e.Sess.ID)

		e.broadcastSnapshot()
		return nil
	})
}

func (e *Engine) publishTick(remaining int) {
	e.Hub.Publish(broadcast.Event{
		Type:      broadcast.TypeTick,
		SessionID: e.Sess.ID,
		Payload:   map[string]int{"remaining": remaining},
	})
}

func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.Box.Do(ctx, func() error {
		snap = e.snapshot()
		return nil
	})
	return snap, err
}

func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:        e.Sess.ID,
		Code:             e.Sess.Code,
		Mode:             e.Sess.Mode.String(),
		Status:           e.Sess.Status().String(),
		PassageIndex:     e.passageIdx,
		TotalPassages:    e.totalPassages(),
		DrawingTeam:      e.drawingTeam,
		TeamsFound:       append([]string(nil), e.teamsFound...),
		RemainingSeconds: e.RemainingSeconds(timer.SlotRound),
		Totals:           e.ledger.Totals(e.Sess.ID),
	}

	if members := e.Sess.TeamMembers(e.drawingTeam); len(members) > 0 && e.roundOpen {
		snap.CurrentDrawer = members[e.drawerIdx%len(members)].ID
	}

	for _, p := range e.Sess.Participants() {
		snap.Participants = append(snap.Participants, ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			TeamName:    p.TeamName,
			Online:      p.Online,
		})
	}

	return snap
}

// broadcastSnapshot hides the current word from peers; only admin
// subscribers see it while the round runs.
func (e *Engine) broadcastSnapshot() {
	snap := e.snapshot()
	e.Hub.Publish(broadcast.Event{Type: broadcast.TypeSnapshot, SessionID: e.Sess.ID, Payload: snap})
	e.Hub.Publish(broadcast.Event{
		Type:      broadcast.TypeSnapshot,
		SessionID: e.Sess.ID,
		AdminOnly: true,
		Payload:   AdminSnapshot{Snapshot: snap, Word: e.currentWord.Word},
	})
}
