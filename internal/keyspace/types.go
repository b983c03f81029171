package keyspace

import (
	"errors"
	"time"

	"github.com/coolcache/coolcache/internal/streams"
)

// Kind identifies which variant of Value.* is populated.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindList
	KindSet
	KindHash
	KindZSet
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindZSet:
		return "zset"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// Value is the tagged union a keyspace entry holds: exactly one of its
// fields is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Str    []byte
	List   [][]byte
	Set    map[string]struct{}
	Hash   *Hash
	ZSet   *ZSet
	Stream *streams.Stream
}

// entry is the internal keyspace record: a value plus its optional
// expiry. expiresAt is nil when the key never expires.
type entry struct {
	value     Value
	expiresAt *time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.expiresAt != nil && !now.Before(*e.expiresAt)
}

// ErrWrongType is returned when a command targets a key holding a
// different Value variant than the one it expects.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ExpiryKind selects how SetOptions.Expiry should be interpreted.
type ExpiryKind int

const (
	ExpiryUnspecified ExpiryKind = iota // clear any existing expiry (plain SET)
	ExpiryKeepTTL                       // KEEPTTL: retain whatever expiry the key had
	ExpiryAt                            // EX/PX: set an absolute expiry
)

type Expiry struct {
	Kind ExpiryKind
	At   time.Time
}

// SetOptions mirrors SET's EX/PX/NX/XX/KEEPTTL modifiers.
type SetOptions struct {
	Expiry Expiry
	NX     bool
	XX     bool
}
