// Package streams implements the append-only entry log backing XADD/XRANGE/
// XREAD: monotonic (ms, seq) ids, auto-id expansion, and inclusive range
// queries.
package streams

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotGreater is returned when a resolved id would not be strictly
// greater than the stream's last id.
var ErrNotGreater = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")

// ErrZeroID is returned for the reserved 0-0 id.
var ErrZeroID = errors.New("ERR The ID specified in XADD must be greater than 0-0")

// ID is a stream entry identifier: milliseconds since epoch plus a
// per-millisecond sequence number. IDs order lexicographically on
// (Ms, Seq).
type ID struct {
	Ms  uint64
	Seq uint64
}

func (a ID) Compare(b ID) int {
	switch {
	case a.Ms < b.Ms:
		return -1
	case a.Ms > b.Ms:
		return 1
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	default:
		return 0
	}
}

func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

var minID = ID{}
var maxID = ID{Ms: ^uint64(0), Seq: ^uint64(0)}

// ParseID parses a literal "ms-seq" or bare "ms" (seq defaults to 0) id.
func ParseID(s string) (ID, error) {
	ms, seq, ok := splitID(s)
	if !ok {
		return ID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	m, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	if seq == "" {
		return ID{Ms: m, Seq: 0}, nil
	}
	sq, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	return ID{Ms: m, Seq: sq}, nil
}

func splitID(s string) (ms, seq string, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 1 {
		return parts[0], "", true
	}
	return parts[0], parts[1], true
}

// Field is one ordered field/value pair of a stream entry.
type Field struct {
	Name  []byte
	Value []byte
}

// Entry is a single appended stream record.
type Entry struct {
	ID     ID
	Fields []Field
}

// Stream is the ordered, append-only log for one stream key.
type Stream struct {
	Entries []Entry
	LastID  ID
}

func New() *Stream {
	return &Stream{}
}

// ResolveID expands idSpec ("*", "ms-*", or a literal "ms-seq") against the
// stream's current last id and nowMs (caller's view of current time), and
// validates monotonicity.
func (s *Stream) ResolveID(idSpec string, nowMs int64) (ID, error) {
	var candidate ID
	switch {
	case idSpec == "*":
		ms := uint64(nowMs)
		if ms < s.LastID.Ms {
			ms = s.LastID.Ms
		}
		candidate = ID{Ms: ms, Seq: s.nextSeq(ms)}

	case strings.HasSuffix(idSpec, "-*"):
		msPart := strings.TrimSuffix(idSpec, "-*")
		ms, err := strconv.ParseUint(msPart, 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
		}
		candidate = ID{Ms: ms, Seq: s.nextSeq(ms)}

	default:
		id, err := ParseID(idSpec)
		if err != nil {
			return ID{}, err
		}
		candidate = id
	}

	if candidate == minID {
		return ID{}, ErrZeroID
	}
	if len(s.Entries) > 0 || s.LastID != minID {
		if candidate.Compare(s.LastID) <= 0 {
			return ID{}, ErrNotGreater
		}
	}
	return candidate, nil
}

// nextSeq picks the smallest seq such that {ms, seq} > LastID when ms is at
// or past LastID.Ms; for an earlier ms it returns 0, which ResolveID rejects.
func (s *Stream) nextSeq(ms uint64) uint64 {
	if len(s.Entries) == 0 && s.LastID == minID {
		if ms == 0 {
			return 1
		}
		return 0
	}
	if ms < s.LastID.Ms {
		return 0
	}
	if ms == s.LastID.Ms {
		return s.LastID.Seq + 1
	}
	return 0
}

// Append adds an entry at id, which must already have been validated by
// ResolveID (or be otherwise known-greater than LastID).
func (s *Stream) Append(id ID, fields []Field) {
	s.Entries = append(s.Entries, Entry{ID: id, Fields: fields})
	s.LastID = id
}

// ParseRangeBound parses the '-'/'+' sentinels and literal ids used by
// XRANGE's start/end arguments. A bare "ms" end bound covers every seq at
// that millisecond.
func ParseRangeBound(s string, isStart bool) (ID, error) {
	switch s {
	case "-":
		return minID, nil
	case "+":
		return maxID, nil
	default:
		id, err := ParseID(s)
		if err == nil && !isStart && !strings.Contains(s, "-") {
			id.Seq = ^uint64(0)
		}
		return id, err
	}
}

// Range returns entries with start <= id <= end, in ascending id order.
func (s *Stream) Range(start, end ID) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.ID.Compare(start) >= 0 && e.ID.Compare(end) <= 0 {
			out = append(out, e)
		}
	}
	return out
}

// After returns entries with id strictly greater than after, in ascending
// order — the shape XREAD needs.
func (s *Stream) After(after ID) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.ID.Compare(after) > 0 {
			out = append(out, e)
		}
	}
	return out
}

func (s *Stream) Clone() *Stream {
	cp := &Stream{LastID: s.LastID}
	cp.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		fields := make([]Field, len(e.Fields))
		for j, f := range e.Fields {
			fields[j] = Field{Name: append([]byte(nil), f.Name...), Value: append([]byte(nil), f.Value...)}
		}
		cp.Entries[i] = Entry{ID: e.ID, Fields: fields}
	}
	return cp
}
