package streams

import "sync"

// Waiter is one parked XREAD BLOCK call. C is closed (at most once) the
// first time any stream it registered for receives an append.
type Waiter struct {
	C    chan struct{}
	once sync.Once
}

func (w *Waiter) fire() {
	w.once.Do(func() { close(w.C) })
}

// Waiters tracks XREAD BLOCK callers parked on specific stream keys. A
// single Waiter may be registered under several keys at once; firing is
// idempotent, so an append on any of them wakes the caller exactly once.
type Waiters struct {
	mu sync.Mutex
	m  map[string][]*Waiter
}

func NewWaiters() *Waiters {
	return &Waiters{m: make(map[string][]*Waiter)}
}

// Register parks a new waiter under every key in keys. The caller must
// Unregister it when it stops waiting, whether it was woken or timed out.
func (ws *Waiters) Register(keys ...string) *Waiter {
	w := &Waiter{C: make(chan struct{})}
	ws.mu.Lock()
	for _, key := range keys {
		ws.m[key] = append(ws.m[key], w)
	}
	ws.mu.Unlock()
	return w
}

func (ws *Waiters) Unregister(w *Waiter, keys ...string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, key := range keys {
		list := ws.m[key]
		for i, c := range list {
			if c == w {
				ws.m[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(ws.m[key]) == 0 {
			delete(ws.m, key)
		}
	}
}

// Notify wakes every waiter currently parked on key. Must be called after
// the triggering XADD has been committed to the keyspace, so woken readers
// observe the new entry.
func (ws *Waiters) Notify(key string) {
	ws.mu.Lock()
	list := ws.m[key]
	delete(ws.m, key)
	ws.mu.Unlock()
	for _, w := range list {
		w.fire()
	}
}
