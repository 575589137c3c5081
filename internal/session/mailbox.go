package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/partyhub-games/partyhub/internal/logging"
)

// Mailbox serializes every mutation of one session: commands run one at a
// time on a single goroutine, so no two mutations to the same session ever
// interleave. Timer callbacks are posted back here as commands, which is what
// lets a superseded timer be recognized and discarded inside session state.
type Mailbox struct {
	cmdCh  chan command
	sema   sync.Once
	mtx    sync.RWMutex
	ctx    context.Context
	cancel func()
}

type command struct {
	fn    func() error
	errCh chan error
}

func NewMailbox(buffer int) *Mailbox {
	return &Mailbox{cmdCh: make(chan command, buffer)}
}

func (m *Mailbox) Run(ctx context.Context) {
	m.sema.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		m.mtx.Lock()
		m.ctx, m.cancel = ctx, cancel
		m.mtx.Unlock()
		go m.loop(ctx)
	})
}

func (m *Mailbox) Close() {
	m.mtx.RLock()
	cancel := m.cancel
	m.mtx.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Mailbox) loop(ctx context.Context) {
	logger := logging.FromContext(ctx).Named("session.mailbox")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-m.cmdCh:
			err := m.execute(ctx, cmd.fn)
			if err != nil {
				logger.Debugf("command rejected: %v", err)
			}
			if cmd.errCh != nil {
				cmd.errCh <- err
			}
		}
	}
}

// execute isolates a panicking command to this session. The mailbox keeps
// draining afterwards; other sessions are untouched.
func (m *Mailbox) execute(ctx context.Context, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).Named("session.mailbox").Errorf("command panic: %v", rec)
			err = fmt.Errorf("internal fault: %v", rec)
		}
	}()

	return fn()
}

// Do submits fn and waits for its result. All-or-nothing: fn either ran to
// completion on the session goroutine or the error explains why not.
func (m *Mailbox) Do(ctx context.Context, fn func() error) error {
	m.mtx.RLock()
	own := m.ctx
	m.mtx.RUnlock()
	if own == nil {
		return InvalidState("session is not running")
	}

	errCh := make(chan error, 1)
	select {
	case m.cmdCh <- command{fn: fn, errCh: errCh}:
	case <-own.Done():
		return InvalidState("session is closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-own.Done():
		return InvalidState("session is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post submits fn without waiting. Used by timer callbacks; a post into a
// stopped or deleted session is silently dropped.
func (m *Mailbox) Post(fn func() error) {
	m.mtx.RLock()
	own := m.ctx
	m.mtx.RUnlock()
	if own == nil {
		return
	}

	select {
	case m.cmdCh <- command{fn: fn}:
	case <-own.Done():
	}
}
