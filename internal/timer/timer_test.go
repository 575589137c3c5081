package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestService(t *testing.T) (*Service, *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clock := clockwork.NewFakeClock()
	return New(ctx, clock), clock
}

func waitTick(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no tick arrived")
		return 0
	}
}

func TestStartTickExpire(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	tickCh := make(chan int, 8)
	expireCh := make(chan struct{}, 1)

	svc.Start("s1", SlotRound, 3*time.Second, func(remaining int) {
		tickCh <- remaining
	}, func() {
		expireCh <- struct{}{}
	})

	clock.BlockUntil(1)

	clock.Advance(time.Second)
	if got := waitTick(t, tickCh); got != 2 {
		t.Errorf("first tick remaining = %d, want 2", got)
	}

	clock.Advance(time.Second)
	if got := waitTick(t, tickCh); got != 1 {
		t.Errorf("second tick remaining = %d, want 1", got)
	}

	clock.Advance(time.Second)
	select {
	case <-expireCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}

	if svc.Active("s1", SlotRound) {
		t.Error("slot must be dropped after expiry")
	}
}

func TestRestartCancelsPrevious(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	firstExpired := make(chan struct{}, 1)
	secondExpired := make(chan struct{}, 1)

	svc.Start("s1", SlotRound, 10*time.Second, nil, func() {
		firstExpired <- struct{}{}
	})
	clock.BlockUntil(1)

	svc.Start("s1", SlotRound, 2*time.Second, nil, func() {
		secondExpired <- struct{}{}
	})
	// The superseded goroutine still counts as a clock waiter until it sees
	// the cancellation and stops its ticker, so BlockUntil(1) alone can pass
	// before the replacement registers. Let it wind down first.
	time.Sleep(100 * time.Millisecond)
	clock.BlockUntil(1)

	clock.Advance(2 * time.Second)
	select {
	case <-secondExpired:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement timer did not expire")
	}

	clock.Advance(10 * time.Second)
	select {
	case <-firstExpired:
		t.Fatal("superseded timer must never fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRemainingFromDeadline(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	svc.Start("s1", SlotRound, 10*time.Second, nil, nil)
	clock.BlockUntil(1)

	first := svc.Remaining("s1", SlotRound)
	clock.Advance(time.Second)
	second := svc.Remaining("s1", SlotRound)

	if diff := first - second; diff != time.Second {
		t.Errorf("remaining drifted by %v across one second, want exactly 1s", diff)
	}

	if svc.Remaining("s1", SlotRotation) != 0 {
		t.Error("unarmed slot must report zero remaining")
	}
}

func TestCancelSessionDropsAllSlots(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	expired := make(chan struct{}, 2)

	svc.Start("s1", SlotRound, time.Second, nil, func() { expired <- struct{}{} })
	svc.Start("s1", SlotRotation, time.Second, nil, func() { expired <- struct{}{} })
	clock.BlockUntil(2)

	svc.CancelSession("s1")
	clock.Advance(2 * time.Second)

	select {
	case <-expired:
		t.Fatal("cancelled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestZeroDurationFiresImmediately(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	expired := make(chan struct{}, 1)

	svc.Start("s1", SlotAdvance, 0, nil, func() { expired <- struct{}{} })

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("zero-duration timer must expire at once")
	}
}
