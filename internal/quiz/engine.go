package quiz

import (
	"context"
	"time"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	"github.com/partyhub-games/partyhub/internal/content"
	model "github.com/partyhub-games/partyhub/internal/database/archive/model"
	"github.com/partyhub-games/partyhub/internal/engine"
	"github.com/partyhub-games/partyhub/internal/scoring"
	"github.com/partyhub-games/partyhub/internal/session"
	"github.com/partyhub-games/partyhub/internal/timer"
)

type Settings struct {
	Questions []content.Question
	// GraceDelay runs between the last participant answering and the
	// auto-advance, leaving room for late edits of the admin's mind.
	GraceDelay time.Duration
}

type Config struct {
	Settings
	DoneFn func(report model.Report) error
}

type Answer struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func New(sess *session.Session, timers *timer.Service, hub *broadcast.Hub, ledger *scoring.Ledger, config Config) *Engine {
	e := &Engine{
		Core:        engine.NewCore(sess, timers, hub),
		ledger:      ledger,
		config:      config,
		answers:     map[string]map[int]Answer{},
		validations: map[string]map[int]bool{},
		advanced:    map[int]bool{},
	}
	e.AllowLate = true
	e.OnMutate = e.broadcastSnapshot
	return e
}

var _ engine.Engine = (*Engine)(nil)

// Engine drives one quiz session. All fields below Core are touched only
// from mailbox commands.
type Engine struct {
	engine.Core

	ledger *scoring.Ledger
	config Config

	epoch         uint64
	questionIdx   int
	questionStart time.Time
	answers       map[string]map[int]Answer
	validations   map[string]map[int]bool
	advanced      map[int]bool
}

func (e *Engine) Start(ctx context.Context, actorID string) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can start")
		}

		if len(e.config.Questions) == 0 {
			return session.PreconditionFailed("quiz needs at least one question")
		}

		if err := e.Sess.SetStatus(session.StatusPlaying); err != nil {
			return err
		}

		e.questionIdx = 0
		e.openQuestion()
		return nil
	})
}

// openQuestion arms the per-question timer and snapshots. It runs inside the
// mailbox; epoch bumps here invalidate every callback of the previous
// question.
func (e *Engine) openQuestion() {
	e.epoch++
	e.questionStart = time.Now()

	question := e.config.Questions[e.questionIdx]
	if question.Timer > 0 {
		idx, epoch := e.questionIdx, e.epoch
		e.Timers.Start(e.Sess.ID, timer.SlotRound, time.Duration(question.Timer)*time.Second,
			e.publishTick,
			func() {
				e.Box.Post(func() error { return e.advance(idx, epoch) })
			})
	}

	e.broadcastSnapshot()
}

// SubmitAnswer records the participant's answer for the current question.
// Only the first answer per question counts; repeats are a no-op success.
func (e *Engine) SubmitAnswer(ctx context.Context, participantID, text string) error {
	return e.Box.Do(ctx, func() error {
		if e.Sess.Status() != session.StatusPlaying {
			return session.InvalidState("quiz is not playing")
		}

		participant, ok := e.Sess.Participant(participantID)
		if !ok {
			return session.NotFound("participant %s", participantID)
		}

		slots, ok := e.answers[participant.ID]
		if !ok {
			slots = map[int]Answer{}
			e.answers[participant.ID] = slots
		}

		if _, answered := slots[e.questionIdx]; answered {
			// Idempotent: the slot is already filled.
			return nil
		}

		slots[e.questionIdx] = Answer{Text: text, At: time.Now()}
		e.broadcastSnapshot()

		if e.allAnswered() {
			idx, epoch := e.questionIdx, e.epoch
			e.Timers.Start(e.Sess.ID, timer.SlotAdvance, e.config.GraceDelay, nil, func() {
				e.Box.Post(func() error { return e.graceAdvance(idx, epoch) })
			})
		}

		return nil
	})
}

// graceAdvance fires when the everyone-answered grace window elapses. A
// participant who joined inside the window reopens the question, so the
// condition is checked again before moving on.
func (e *Engine) graceAdvance(idx int, epoch uint64) error {
	if !e.allAnswered() {
		return nil
	}
	return e.advance(idx, epoch)
}

func (e *Engine) allAnswered() bool {
	for _, p := range e.Sess.Participants() {
		if !p.Online {
			continue
		}
		if _, ok := e.answers[p.ID][e.questionIdx]; !ok {
			return false
		}
	}
	return e.Sess.OnlineLen() > 0
}

// advance moves past question idx. Both triggers (everyone answered, timer
// expired) may fire within the same tick; the advanced guard plus the epoch
// make the second one a silent no-op.
func (e *Engine) advance(idx int, epoch uint64) error {
	if e.Sess.Status() != session.StatusPlaying || e.epoch != epoch || e.questionIdx != idx || e.advanced[idx] {
		return nil
	}

	e.advanced[idx] = true
	e.Timers.Cancel(e.Sess.ID, timer.SlotRound)
	e.Timers.Cancel(e.Sess.ID, timer.SlotAdvance)

	if idx+1 >= len(e.config.Questions) {
		return e.finish()
	}

	e.questionIdx++
	e.openQuestion()
	return nil
}

// Advance is the admin's manual skip.
func (e *Engine) Advance(ctx context.Context, actorID string) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can advance")
		}

		if e.Sess.Status() != session.StatusPlaying {
			return session.InvalidState("quiz is not playing")
		}

		return e.advance(e.questionIdx, e.epoch)
	})
}

// ValidateAnswer marks an answer correct or incorrect, post hoc, and applies
// the score delta exactly once per slot value. Re-validating with the same
// verdict changes nothing; flipping the verdict emits a compensating ledger
// event so totals follow the latest verdict.
func (e *Engine) ValidateAnswer(ctx context.Context, actorID, participantID string, questionIdx int, correct bool) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can validate answers")
		}

		if questionIdx < 0 || questionIdx >= len(e.config.Questions) {
			return session.NotFound("question %d", questionIdx)
		}

		participant, ok := e.Sess.Participant(participantID)
		if !ok {
			return session.NotFound("participant %s", participantID)
		}

		if _, answered := e.answers[participant.ID][questionIdx]; !answered {
			return session.NotFound("participant %s has no answer for question %d", participantID, questionIdx)
		}

		slots, ok := e.validations[participant.ID]
		if !ok {
			slots = map[int]bool{}
			e.validations[participant.ID] = slots
		}

		prev, validated := slots[questionIdx]
		if validated && prev == correct {
			return nil
		}

		slots[questionIdx] = correct
		points := e.config.Questions[questionIdx].Points
		switch {
		case correct:
			e.ledger.Add(e.Sess.ID, participant.TeamName, questionIdx, points, "answer validated")
		case validated:
			e.ledger.Add(e.Sess.ID, participant.TeamName, questionIdx, -points, "validation reversed")
		}

		e.broadcastSnapshot()
		return nil
	})
}

func (e *Engine) finish() error {
	if err := e.Sess.SetStatus(session.StatusFinished); err != nil {
		return err
	}

	e.Timers.CancelSession(e.Sess.ID)

	report := model.Report{
		LobbyID:    e.Sess.ID,
		Code:       e.Sess.Code,
		Mode:       e.Sess.Mode.String(),
		FinishedAt: time.Now(),
		Ranking:    e.ledger.Ranking(e.Sess.ID),
		Events:     e.ledger.Events(e.Sess.ID),
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

// StopGame returns the session to waiting, wiping the in-game state. This is
// the admin interrupt, distinct from a natural finish.
func (e *Engine) StopGame(ctx context.Context, actorID string) error {
	return e.Box.Do(ctx, func() error {
		if !e.Sess.IsMaster(actorID) {
			return session.Forbidden("only the session master can stop")
		}

		if err := e.Sess.SetStatus(session.StatusWaiting); err != nil {
			return err
		}

		e.Timers.CancelSession(e.Sess.ID)
		e.epoch++
		e.questionIdx = 0
		e.answers = map[string]map[int]Answer{}
		e.validations = map[string]map[int]bool{}
		e.advanced = map[int]bool{}
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

// Snapshot returns the peer view, consistent because it runs on the session
// goroutine.
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
		QuestionIndex:    e.questionIdx,
		QuestionCount:    len(e.config.Questions),
		RemainingSeconds: e.RemainingSeconds(timer.SlotRound),
		Totals:           e.ledger.Totals(e.Sess.ID),
	}

	if snap.Status == session.StatusPlaying.String() {
		q := e.config.Questions[e.questionIdx]
		snap.Question = &QuestionView{Text: q.Text, Choices: q.Choices, Points: q.Points, Timer: q.Timer}
	}

	for _, p := range e.Sess.Participants() {
		_, answered := e.answers[p.ID][e.questionIdx]
		snap.Participants = append(snap.Participants, ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			TeamName:    p.TeamName,
			Online:      p.Online,
			HasAnswered: answered,
		})
	}

	return snap
}

// broadcastSnapshot pushes the peer view to everyone and the full answer
// content to admin subscribers only. Peers never see answer text, just the
// has-answered flag.
func (e *Engine) broadcastSnapshot() {
	snap := e.snapshot()
	e.Hub.Publish(broadcast.Event{Type: broadcast.TypeSnapshot, SessionID: e.Sess.ID, Payload: snap})

	admin := AdminSnapshot{Snapshot: snap, Answers: map[string]map[int]Answer{}, Validations: map[string]map[int]bool{}}
	for id, slots := range e.answers {
		cp := make(map[int]Answer, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		admin.Answers[id] = cp
	}
	for id, slots := range e.validations {
		cp := make(map[int]bool, len(slots))
		for k, v := range slots {
			cp[k] = v
		}
		admin.Validations[id] = cp
	}

	e.Hub.Publish(broadcast.Event{Type: broadcast.TypeSnapshot, SessionID: e.Sess.ID, AdminOnly: true, Payload: admin})
}
