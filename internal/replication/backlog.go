package replication

import "sync"

// Backlog is the leader's bounded replication ring buffer: it remembers
// the most recent window of propagated bytes so a replica that briefly
// drops and reconnects with a recent offset can partial-resync instead of
// re-reading a full RDB snapshot.
type Backlog struct {
	mu sync.Mutex

	buf   []byte
	limit int

	// baseOffset is the absolute stream offset of buf[0]; bytes before it
	// have fallen out of the window and can no longer be served.
	baseOffset int64
	offset     int64 // absolute offset of the next byte to be written
}

func NewBacklog(limit int) *Backlog {
	if limit <= 0 {
		limit = 1 << 20
	}
	return &Backlog{limit: limit}
}

// Append writes data to the backlog, evicting the oldest bytes once the
// buffer exceeds its limit, and returns the stream offset immediately
// after the appended bytes.
func (b *Backlog) Append(data []byte) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, data...)
	b.offset += int64(len(data))
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
		b.baseOffset += int64(over)
	}
	return b.offset
}

// Offset returns the current absolute write offset.
func (b *Backlog) Offset() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offset
}

// Since returns the bytes the backlog holds starting at fromOffset,
// and ok=false if fromOffset has already fallen outside the window (the
// caller must fall back to a full resync in that case).
func (b *Backlog) Since(fromOffset int64) (data []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fromOffset < b.baseOffset || fromOffset > b.offset {
		return nil, false
	}
	rel := fromOffset - b.baseOffset
	out := make([]byte, len(b.buf)-int(rel))
	copy(out, b.buf[rel:])
	return out, true
}
