package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	"github.com/partyhub-games/partyhub/internal/content"
	archiveModel "github.com/partyhub-games/partyhub/internal/database/archive/model"
	drawingDb "github.com/partyhub-games/partyhub/internal/database/drawing/database"
	drawingModel "github.com/partyhub-games/partyhub/internal/database/drawing/model"
	"github.com/partyhub-games/partyhub/internal/engine"
	"github.com/partyhub-games/partyhub/internal/hashutil"
	"github.com/partyhub-games/partyhub/internal/session"
	"github.com/partyhub-games/partyhub/internal/timer"
	"github.com/valyala/fastrand"
)

type Phase uint8

const (
	PhaseObservation Phase = iota + 1
	PhaseDrawing
)

func (p Phase) String() string {
	switch p {
	case PhaseObservation:
		return "observation"
	case PhaseDrawing:
		return "drawing"
	}
	return "unknown"
}

type Settings struct {
	Passages        int
	ObservationTime int // seconds
	DrawingTime     int // seconds
	References      []content.Reference
}

type Config struct {
	Settings
	DoneFn func(report archiveModel.Report) error
}

func New(sess *session.Session, timers *timer.Service, hub *broadcast.Hub, drawings *drawingDb.DB, config Config) *Engine {
	e := &Engine{
		Core:     engine.NewCore(sess, timers, hub),
		drawings: drawings,
		config:   config,
	}
	e.OnMutate = e.broadcastSnapshot
	return e
}

var _ engine.Engine = (*Engine)(nil)

// Engine drives one relay session: every team starts a chain from a
// reference image, and each round the chains rotate one team forward, drawn
// from memory of the previous team's drawing. Relay rounds are unscored.
type Engine struct {
	engine.Core

	drawings *drawingDb.DB
	config   Config

	epoch       uint64
	teams       []string
	chainRefs   []content.Reference
	roundIdx    int
	phase       Phase
	phaseStart  time.Time
	assignments []Assignment
}

// chainFor inverts the rotation: the chain held by team index t at round r.
func (e *Engine) chainFor(teamIdx, round int) int {
	n := len(e.teams)
	return ((teamIdx-round)%n + n) % n
}

// holder is the team holding chain c at round r: the origin holder advanced
// r positions.
func (e *Engine) holder(chain, round int) string {
	return e.teams[(chain+round)%len(e.teams)]
}

// Start runs relay preconditions: at least two teams, a positive passage
// count and one reference per team. Passages may exceed the team count, in
// which case chains revisit teams.
func (e *Engine) Start(ctx context.Context, actorID string) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can start a relay lobby")
		}

		teams := e.Sess.Teams()
		if len(teams) < 2 {
			return session.PreconditionFailed("relay needs at least 2 teams, have %d", len(teams))
		}

		if e.config.Passages < 1 {
			return session.PreconditionFailed("passages must be positive")
		}

		if len(e.config.References) < len(teams) {
			return session.PreconditionFailed("reference pool has %d images, need %d", len(e.config.References), len(teams))
		}

		if err := e.Sess.SetStatus(session.StatusPlaying); err != nil {
			return err
		}

		e.teams = teams
		e.chainRefs = pickReferences(e.config.References, len(teams))
		e.roundIdx = 0
		return e.openObservation()
	})
}

func pickReferences(pool []content.Reference, n int) []content.Reference {
	shuffled := content.CloneReferences(pool)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(fastrand.Uint32n(uint32(i + 1)))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}

// openObservation assigns every team the image it must memorize this round:
// the original reference at round 0, the previous holder's drawing
// afterwards. Painting stays disabled for the whole phase.
func (e *Engine) openObservation() error {
	assignments, err := e.buildAssignments()
	if err != nil {
		return err
	}

	e.epoch++
	e.phase = PhaseObservation
	e.phaseStart = time.Now()
	e.assignments = assignments

	epoch := e.epoch
	e.Timers.Start(e.Sess.ID, timer.SlotRound, time.Duration(e.config.ObservationTime)*time.Second,
		e.publishTick,
		func() {
			e.Box.Post(func() error { return e.startDrawing(epoch) })
		})

	e.broadcastSnapshot()
	return nil
}

func (e *Engine) buildAssignments() ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(e.teams))
	for teamIdx, team := range e.teams {
		chain := e.chainFor(teamIdx, e.roundIdx)
		a := Assignment{Team: team, Chain: chain}

		if e.roundIdx == 0 {
			a.ReferenceURL = e.chainRefs[chain].ImageURL
		} else {
			prevHolder := e.holder(chain, e.roundIdx-1)
			d, err := e.drawings.Fetch(e.Sess.ID, e.roundIdx-1, prevHolder)
			switch {
			case err == nil:
				a.ImageData = d.ImageData
			case errors.Is(err, drawingDb.ErrNotFound):
				// The previous uploader disconnected before saving; the
				// chain carries a gap rather than stalling the session.
				a.Missing = true
			default:
				return nil, fmt.Errorf("fetch drawing round %d team %s: %w", e.roundIdx-1, prevHolder, err)
			}
		}

		assignments = append(assignments, a)
	}
	return assignments, nil
}

func (e *Engine) startDrawing(epoch uint64) error {
	if e.epoch != epoch || e.Sess.Status() != session.StatusPlaying {
		return nil
	}

	e.phase = PhaseDrawing
	e.phaseStart = time.Now()

	e.Timers.Start(e.Sess.ID, timer.SlotRound, time.Duration(e.config.DrawingTime)*time.Second,
		e.publishTick,
		func() {
			e.Box.Post(func() error { return e.closeRound(epoch) })
		})

	e.broadcastSnapshot()
	return nil
}

// SaveDrawing persists a team's canvas for the running round. Only the first
// team member by join order is accepted as uploader; anything else, including
// a second upload for the same slot, is silently ignored.
func (e *Engine) SaveDrawing(ctx context.Context, participantID string, imageData []byte) error {
	return e.Box.Do(ctx, func() error {
		if e.Sess.Status() != session.StatusPlaying || e.phase != PhaseDrawing {
			return nil
		}

		participant, ok := e.Sess.Participant(participantID)
		if !ok {
			return nil
		}

		uploader, ok := e.Sess.Uploader(participant.TeamName)
		if !ok || uploader.ID != participantID {
			return nil
		}

		teamIdx := e.teamIndex(participant.TeamName)
		if teamIdx < 0 {
			return nil
		}

		drawing := drawingModel.Drawing{
			ID:         hashutil.SerializedSha1FromTime(),
			LobbyID:    e.Sess.ID,
			Round:      e.roundIdx,
			Team:       participant.TeamName,
			Key:        strconv.Itoa(e.chainFor(teamIdx, e.roundIdx)),
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

// Stroke relays a live stroke during the drawing phase. The whole team may
// paint concurrently; loss and reordering are tolerated.
func (e *Engine) Stroke(participantID string, payload interface{}) {
	e.Box.Post(func() error {
		if e.Sess.Status() != session.StatusPlaying || e.phase != PhaseDrawing {
			return nil
		}

		if _, ok := e.Sess.Participant(participantID); !ok {
			return nil
		}

		e.Hub.Publish(broadcast.Event{Type: broadcast.TypeStroke, SessionID: e.Sess.ID, Payload: payload})
		return nil
	})
}

func (e *Engine) teamIndex(team string) int {
	for i, t := range e.teams {
		if t == team {
			return i
		}
	}
	return -1
}

func (e *Engine) closeRound(epoch uint64) error {
	if e.epoch != epoch || e.Sess.Status() != session.StatusPlaying {
		return nil
	}

	e.roundIdx++
	if e.roundIdx < e.config.Passages {
		return e.openObservation()
	}

	return e.finish()
}

// finish reconstructs every chain from the persisted drawings: the original
// reference followed by each round's drawing in order. A round whose upload
// was lost leaves a gap in the chain.
func (e *Engine) finish() error {
	if err := e.Sess.SetStatus(session.StatusFinished); err != nil {
		return err
	}

	e.Timers.CancelSession(e.Sess.ID)

	drawings, err := e.drawings.FetchByLobby(e.Sess.ID)
	if err != nil {
		return fmt.Errorf("fetch drawings: %w", err)
	}

	chains, err := e.reconstructChains()
	if err != nil {
		return fmt.Errorf("reconstruct chains: %w", err)
	}

	report := archiveModel.Report{
		LobbyID:    e.Sess.ID,
		Code:       e.Sess.Code,
		Mode:       e.Sess.Mode.String(),
		FinishedAt: time.Now(),
		Drawings:   drawings,
		Chains:     chains,
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

func (e *Engine) reconstructChains() ([]archiveModel.Chain, error) {
	chains := make([]archiveModel.Chain, 0, len(e.teams))
	for c := range e.teams {
		chain := archiveModel.Chain{Chain: c, Reference: e.chainRefs[c]}

		for r := 0; r < e.config.Passages; r++ {
			team := e.holder(c, r)
			d, err := e.drawings.Fetch(e.Sess.ID, r, team)
			if err != nil {
				if errors.Is(err, drawingDb.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("fetch drawing round %d team %s: %w", r, team, err)
			}

			chain.Links = append(chain.Links, archiveModel.Link{Round: r, Team: team, ImageData: d.ImageData})
		}

		chains = append(chains, chain)
	}
	return chains, nil
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
		e.roundIdx = 0
		e.phase = 0
		e.assignments = nil
		e.chainRefs = nil

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
		RoundIndex:       e.roundIdx,
		Passages:         e.config.Passages,
		Phase:            e.phase.String(),
		RemainingSeconds: e.RemainingSeconds(timer.SlotRound),
		Assignments:      append([]Assignment(nil), e.assignments...),
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

func (e *Engine) broadcastSnapshot() {
	e.Hub.Publish(broadcast.Event{Type: broadcast.TypeSnapshot, SessionID: e.Sess.ID, Payload: e.snapshot()})
}
