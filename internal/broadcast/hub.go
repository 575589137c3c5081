package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/partyhub-games/partyhub/internal/logging"
)

type Role uint8

const (
	// RoleViewer receives the peer view of a session.
	RoleViewer Role = iota + 1
	// RoleAdmin additionally receives admin-only events, e.g. quiz answer
	// content that must not leak to peers.
	RoleAdmin
)

const (
	TypeSnapshot = "snapshot"
	TypeStroke   = "stroke"
	TypeTick     = "tick"
	TypeResult   = "result"
)

type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	AdminOnly bool        `json:"-"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload"`
}

// Subscriber is a connected viewer. Send may block on the wire; the hub
// calls it from a dedicated goroutine per subscriber.
type Subscriber interface {
	ID() string
	Role() Role
	Send(ev Event) error
	Close() error
}

func NewHub(ctx context.Context) *Hub {
	return &Hub{
		ctx:      ctx,
		sessions: map[string]map[string]*pipe{},
	}
}

// Hub fans session events out to subscribed viewers. Delivery is
// fire-and-forget: a slow subscriber drops events rather than stalling the
// session, and correctness relies on the next snapshot superseding anything
// missed.
type Hub struct {
	ctx context.Context

	mtx      sync.RWMutex
	sessions map[string]map[string]*pipe
}

type pipe struct {
	sub   Subscriber
	queue chan Event
	done  chan struct{}
	once  sync.Once
}

func (p *pipe) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.sub.Close()
	})
}

const pipeDepth = 64

func (h *Hub) Subscribe(sessionID string, sub Subscriber) {
	p := &pipe{sub: sub, queue: make(chan Event, pipeDepth), done: make(chan struct{})}

	h.mtx.Lock()
	pipes, ok := h.sessions[sessionID]
	if !ok {
		pipes = map[string]*pipe{}
		h.sessions[sessionID] = pipes
	}
	if prev, ok := pipes[sub.ID()]; ok {
		prev.close()
	}
	pipes[sub.ID()] = p
	h.mtx.Unlock()

	go h.writer(p)
}

func (h *Hub) writer(p *pipe) {
	logger := logging.FromContext(h.ctx).Named("broadcast.writer")
	for {
		select {
		case <-h.ctx.Done():
			p.close()
			return
		case <-p.done:
			return
		case ev := <-p.queue:
			if err := p.sub.Send(ev); err != nil {
				logger.Debugf("subscriber %s dropped: %v", p.sub.ID(), err)
				p.close()
				return
			}
		}
	}
}

func (h *Hub) Unsubscribe(sessionID, subID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if pipes, ok := h.sessions[sessionID]; ok {
		if p, ok := pipes[subID]; ok {
			p.close()
			delete(pipes, subID)
		}
		if len(pipes) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// Publish queues ev for every matching subscriber of the session. A full
// queue drops the event for that subscriber only.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mtx.RLock()
	defer h.mtx.RUnlock()

	logger := logging.FromContext(h.ctx).Named("broadcast.publish")
	for _, p := range h.sessions[ev.SessionID] {
		if ev.AdminOnly && p.sub.Role() != RoleAdmin {
			continue
		}

		select {
		case p.queue <- ev:
		default:
			logger.Warnf("subscriber %s queue full, event %s dropped", p.sub.ID(), ev.Type)
		}
	}
}

// DropSession disconnects every subscriber of a deleted session.
func (h *Hub) DropSession(sessionID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for _, p := range h.sessions[sessionID] {
		p.close()
	}
	delete(h.sessions, sessionID)
}

func (h *Hub) SubscriberLen(sessionID string) int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.sessions[sessionID])
}
