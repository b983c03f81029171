package replication

import (
	"io"
	"sync"
)

// Replica is the leader's handle on one attached follower connection: a
// place to write propagated command frames plus the offset it last
// acknowledged via REPLCONF ACK.
type Replica struct {
	ID         int64
	Conn       io.Writer
	ListenPort int

	mu        sync.Mutex
	ackOffset int64
}

func (r *Replica) SetAck(offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ackOffset = offset
}

func (r *Replica) Ack() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ackOffset
}

// LeaderState tracks everything the leader side of replication needs:
// its fixed replication ID, the backlog, and the set of attached
// replicas.
type LeaderState struct {
	ReplID  string
	Backlog *Backlog

	mu       sync.Mutex
	nextID   int64
	replicas map[int64]*Replica
}

func NewLeaderState(backlogBytes int) *LeaderState {
	return &LeaderState{
		ReplID:   GenerateReplID(),
		Backlog:  NewBacklog(backlogBytes),
		replicas: make(map[int64]*Replica),
	}
}

// Attach registers a newly PSYNC'd connection as a replica and returns its
// handle.
func (l *LeaderState) Attach(conn io.Writer, listenPort int) *Replica {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	r := &Replica{ID: l.nextID, Conn: conn, ListenPort: listenPort, ackOffset: l.Backlog.Offset()}
	l.replicas[r.ID] = r
	return r
}

func (l *LeaderState) Detach(r *Replica) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.replicas, r.ID)
}

func (l *LeaderState) Replicas() []*Replica {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Replica, 0, len(l.replicas))
	for _, r := range l.replicas {
		out = append(out, r)
	}
	return out
}

func (l *LeaderState) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.replicas)
}

// Propagate appends frame to the backlog and forwards it to every attached
// replica, returning the new stream offset. A write failure on one
// replica's connection does not stop delivery to the others; the caller is
// expected to detach a replica whose connection has gone bad.
func (l *LeaderState) Propagate(frame []byte) int64 {
	offset := l.Backlog.Append(frame)
	for _, r := range l.Replicas() {
		_, _ = r.Conn.Write(frame)
	}
	return offset
}

// ResolvePSYNC decides whether a PSYNC request can be served as a partial
// resync. replid "?" or a mismatched replid always forces a full resync.
func (l *LeaderState) ResolvePSYNC(requestedReplID string, requestedOffset int64) (partial bool, backlogTail []byte) {
	if requestedReplID != l.ReplID || requestedOffset < 0 {
		return false, nil
	}
	tail, ok := l.Backlog.Since(requestedOffset)
	if !ok {
		return false, nil
	}
	return true, tail
}
