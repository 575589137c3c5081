package engine

import (
	"context"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	"github.com/partyhub-games/partyhub/internal/session"
	"github.com/partyhub-games/partyhub/internal/timer"
)

// Engine is the mode-agnostic surface the registry drives. Mode-specific
// commands (guesses, answers, validations, canvas uploads) live on the
// concrete engines.
type Engine interface {
	Session() *session.Session
	Run(ctx context.Context)
	Shutdown()

	AllowLateJoin() bool
	Join(ctx context.Context, p *session.Participant) error
	Leave(ctx context.Context, participantID string) error

	Start(ctx context.Context, actorID string) error
	StopGame(ctx context.Context, actorID string) error
}

// Core carries what every engine needs: the session, its serializing
// mailbox, the timer scheduler and the broadcast hub. Concrete engines embed
// it and set OnMutate to their snapshot publisher.
type Core struct {
	Sess   *session.Session
	Box    *session.Mailbox
	Timers *timer.Service
	Hub    *broadcast.Hub

	// AllowLate permits joining while the session is playing.
	AllowLate bool

	// OnMutate publishes the engine's current snapshot. Called inside the
	// mailbox after every membership change; engine commands call it on
	// their own.
	OnMutate func()
}

func NewCore(sess *session.Session, timers *timer.Service, hub *broadcast.Hub) Core {
	return Core{
		Sess:   sess,
		Box:    session.NewMailbox(32),
		Timers: timers,
		Hub:    hub,
	}
}

func (c *Core) Session() *session.Session {
	return c.Sess
}

func (c *Core) Run(ctx context.Context) {
	c.Box.Run(ctx)
}

// Shutdown tears the session down: every pending timer is cancelled before
// the mailbox closes, so no stale callback can fire into dead state.
func (c *Core) Shutdown() {
	c.Timers.CancelSession(c.Sess.ID)
	c.Box.Close()
}

func (c *Core) AllowLateJoin() bool {
	return c.AllowLate
}

func (c *Core) Join(ctx context.Context, p *session.Participant) error {
	return c.Box.Do(ctx, func() error {
		if !c.AllowLate && c.Sess.Status() != session.StatusWaiting {
			return session.InvalidState("session %s no longer accepts joins", c.Sess.Code)
		}

		if err := c.Sess.Join(p); err != nil {
			return err
		}

		c.OnMutate()
		return nil
	})
}

func (c *Core) Leave(ctx context.Context, participantID string) error {
	return c.Box.Do(ctx, func() error {
		if err := c.Sess.Leave(participantID); err != nil {
			return err
		}

		c.OnMutate()
		return nil
	})
}

// RemainingSeconds reports the whole seconds left on a timer slot, derived
// from the absolute deadline.
func (c *Core) RemainingSeconds(slot string) int {
	return int(c.Timers.Remaining(c.Sess.ID, slot).Seconds())
}
