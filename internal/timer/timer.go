package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/partyhub-games/partyhub/internal/logging"
)

// Well-known slot names. A session owns at most one timer per slot; starting
// a new one cancels whatever was running there, so two countdowns can never
// advance the same state twice.
const (
	SlotRound    = "round"
	SlotRotation = "rotation"
	SlotAdvance  = "advance"
)

type Key struct {
	Session string
	Slot    string
}

func New(ctx context.Context, clock clockwork.Clock) *Service {
	return &Service{
		ctx:   ctx,
		clock: clock,
		slots: map[Key]*slot{},
	}
}

// Service schedules countdown timers for all sessions. Remaining time is
// always derived from the absolute deadline, never from a decremented
// counter, so every observer computes the same value.
type Service struct {
	ctx   context.Context
	clock clockwork.Clock

	mtx   sync.Mutex
	epoch uint64
	slots map[Key]*slot
}

type slot struct {
	epoch    uint64
	deadline time.Time
	cancel   func()
}

// Start arms the timer for (sessionID, slotName), cancelling any previous
// one. onTick is invoked once a second with the whole seconds remaining;
// onExpire exactly once when the deadline passes. Either may be nil.
func (s *Service) Start(sessionID, slotName string, d time.Duration, onTick func(remaining int), onExpire func()) {
	key := Key{Session: sessionID, Slot: slotName}

	if d <= 0 {
		if onExpire != nil {
			go s.protect(onExpire)
		}
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)

	s.mtx.Lock()
	if prev, ok := s.slots[key]; ok {
		prev.cancel()
	}
	s.epoch++
	sl := &slot{epoch: s.epoch, deadline: s.clock.Now().Add(d), cancel: cancel}
	s.slots[key] = sl
	s.mtx.Unlock()

	go s.run(ctx, key, sl, onTick, onExpire)
}

func (s *Service) run(ctx context.Context, key Key, sl *slot, onTick func(int), onExpire func()) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			remaining := sl.deadline.Sub(s.clock.Now())
			if remaining > 0 {
				if onTick != nil {
					s.protect(func() { onTick(int(remaining.Round(time.Second) / time.Second)) })
				}
				continue
			}

			// Expired. Drop the slot first so that onExpire may re-arm it.
			s.mtx.Lock()
			if cur, ok := s.slots[key]; ok && cur.epoch == sl.epoch {
				delete(s.slots, key)
			}
			s.mtx.Unlock()

			if onExpire != nil {
				s.protect(onExpire)
			}
			return
		}
	}
}

// protect keeps a faulty callback from taking the scheduler down with it.
func (s *Service) protect(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(s.ctx).Named("timer").Errorf("timer callback panic: %v", rec)
		}
	}()
	fn()
}

func (s *Service) Cancel(sessionID, slotName string) {
	key := Key{Session: sessionID, Slot: slotName}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if sl, ok := s.slots[key]; ok {
		sl.cancel()
		delete(s.slots, key)
	}
}

// CancelSession drops every pending timer of a session. Stopping or deleting
// a session without calling this leaks timers that later fire into dead
// state.
func (s *Service) CancelSession(sessionID string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for key, sl := range s.slots {
		if key.Session == sessionID {
			sl.cancel()
			delete(s.slots, key)
		}
	}
}

// Remaining returns max(0, deadline-now) for an armed slot, zero otherwise.
func (s *Service) Remaining(sessionID, slotName string) time.Duration {
	key := Key{Session: sessionID, Slot: slotName}

	s.mtx.Lock()
	sl, ok := s.slots[key]
	s.mtx.Unlock()
	if !ok {
		return 0
	}

	remaining := sl.deadline.Sub(s.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Service) Active(sessionID, slotName string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.slots[Key{Session: sessionID, Slot: slotName}]
	return ok
}
