package streams

import (
	"testing"
	"time"
)

func fired(w *Waiter) bool {
	select {
	case <-w.C:
		return true
	default:
		return false
	}
}

func TestNotifyWakesRegisteredWaiter(t *testing.T) {
	ws := NewWaiters()
	w := ws.Register("a")
	if fired(w) {
		t.Fatal("waiter fired before any notify")
	}
	ws.Notify("a")
	if !fired(w) {
		t.Fatal("waiter not woken by notify")
	}
}

func TestNotifyOtherKeyDoesNotWake(t *testing.T) {
	ws := NewWaiters()
	w := ws.Register("a")
	ws.Notify("b")
	if fired(w) {
		t.Fatal("waiter woken by unrelated key")
	}
	ws.Unregister(w, "a")
}

func TestMultiKeyWaiterFiresOnce(t *testing.T) {
	ws := NewWaiters()
	w := ws.Register("a", "b")

	ws.Notify("a")
	ws.Notify("b") // second notify must not panic on the closed channel
	if !fired(w) {
		t.Fatal("waiter not woken")
	}
	ws.Unregister(w, "a", "b")
}

func TestUnregisterStopsDelivery(t *testing.T) {
	ws := NewWaiters()
	w := ws.Register("a")
	ws.Unregister(w, "a")
	ws.Notify("a")
	if fired(w) {
		t.Fatal("unregistered waiter still woken")
	}
}

func TestNotifyWakesAllParkedWaiters(t *testing.T) {
	ws := NewWaiters()
	first := ws.Register("a")
	second := ws.Register("a")
	ws.Notify("a")

	for _, w := range []*Waiter{first, second} {
		select {
		case <-w.C:
		case <-time.After(time.Second):
			t.Fatal("parked waiter never woken")
		}
	}
}
