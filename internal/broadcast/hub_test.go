package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memorySubscriber struct {
	id   string
	role Role

	mtx    sync.Mutex
	events []Event
	recv   chan struct{}
}

func newMemorySubscriber(id string, role Role) *memorySubscriber {
	return &memorySubscriber{id: id, role: role, recv: make(chan struct{}, 128)}
}

func (s *memorySubscriber) ID() string { return s.id }

func (s *memorySubscriber) Role() Role { return s.role }

func (s *memorySubscriber) Send(ev Event) error {
	s.mtx.Lock()
	s.events = append(s.events, ev)
	s.mtx.Unlock()
	s.recv <- struct{}{}
	return nil
}

func (s *memorySubscriber) Close() error { return nil }

func (s *memorySubscriber) wait(t *testing.T) Event {
	t.Helper()
	select {
	case <-s.recv:
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.events[len(s.events)-1]
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx)
}

func TestPublishFanOut(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t)
	a := newMemorySubscriber("a", RoleViewer)
	b := newMemorySubscriber("b", RoleViewer)
	hub.Subscribe("s1", a)
	hub.Subscribe("s1", b)

	hub.Publish(Event{Type: TypeSnapshot, SessionID: "s1", Payload: "hello"})

	if got := a.wait(t); got.Payload != "hello" {
		t.Errorf("subscriber a got %v", got.Payload)
	}
	if got := b.wait(t); got.Payload != "hello" {
		t.Errorf("subscriber b got %v", got.Payload)
	}
}

func TestAdminOnlyEventSkipsViewers(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t)
	viewer := newMemorySubscriber("viewer", RoleViewer)
	admin := newMemorySubscriber("admin", RoleAdmin)
	hub.Subscribe("s1", viewer)
	hub.Subscribe("s1", admin)

	hub.Publish(Event{Type: TypeSnapshot, SessionID: "s1", AdminOnly: true, Payload: "secret"})

	if got := admin.wait(t); got.Payload != "secret" {
		t.Errorf("admin got %v", got.Payload)
	}

	select {
	case <-viewer.recv:
		t.Fatal("viewer must not receive admin-only events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishOtherSessionIgnored(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t)
	sub := newMemorySubscriber("a", RoleViewer)
	hub.Subscribe("s1", sub)

	hub.Publish(Event{Type: TypeSnapshot, SessionID: "s2"})

	select {
	case <-sub.recv:
		t.Fatal("event leaked across sessions")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDropSession(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t)
	sub := newMemorySubscriber("a", RoleViewer)
	hub.Subscribe("s1", sub)

	hub.DropSession("s1")
	if n := hub.SubscriberLen("s1"); n != 0 {
		t.Errorf("subscriber len = %d after drop, want 0", n)
	}
}
