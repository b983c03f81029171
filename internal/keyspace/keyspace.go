// Package keyspace implements CoolCache's typed key space: a single
// mutating map from key to a tagged Value, with lazy TTL expiry and a
// change counter the auto-save policy consults.
//
// Every exported method takes the keyspace's lock itself; callers never
// see a torn intermediate state, so each command observes and mutates the
// keyspace atomically.
package keyspace

import (
	"sync"
	"time"

	"github.com/coolcache/coolcache/internal/glob"
	"github.com/coolcache/coolcache/internal/streams"
)

// Keyspace is a single coordinating mutex guarding a map[string]*entry.
// It is an instance rather than a package global so tests (and a future
// multi-db SELECT) don't share state.
type Keyspace struct {
	mu            sync.RWMutex
	data          map[string]*entry
	changeCounter uint64
}

func New() *Keyspace {
	return &Keyspace{data: make(map[string]*entry)}
}

// now is a var so tests can freeze time; production code always uses the
// zero-argument form.
var now = time.Now

func (k *Keyspace) lookupLocked(key string) (*entry, bool) {
	e, ok := k.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(now()) {
		delete(k.data, key)
		return nil, false
	}
	return e, true
}

func (k *Keyspace) bumpChangeCounter() {
	k.changeCounter++
}

// ChangeCounter returns the number of successful writes since the last
// ResetChangeCounter call (i.e. since the last completed save).
func (k *Keyspace) ChangeCounter() uint64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.changeCounter
}

func (k *Keyspace) ResetChangeCounter() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.changeCounter = 0
}

// Get returns the string value of key, or ok=false if it is absent, lazily
// expired, or holds a different kind.
func (k *Keyspace) Get(key string) (val []byte, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists || e.value.Kind != KindString {
		return nil, false
	}
	return e.value.Str, true
}

// Set stores key=val subject to opts. stored is false when an NX/XX
// precondition blocked the write (not an error).
func (k *Keyspace) Set(key string, val []byte, opts SetOptions) (stored bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	existing, exists := k.lookupLocked(key)
	if exists && opts.NX {
		return false
	}
	if !exists && opts.XX {
		return false
	}

	e := &entry{value: Value{Kind: KindString, Str: val}}
	switch opts.Expiry.Kind {
	case ExpiryAt:
		at := opts.Expiry.At
		e.expiresAt = &at
	case ExpiryKeepTTL:
		if exists {
			e.expiresAt = existing.expiresAt
		}
	case ExpiryUnspecified:
		// no expiry
	}

	k.data[key] = e
	k.bumpChangeCounter()
	return true
}

func (k *Keyspace) Del(keys ...string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, key := range keys {
		if _, exists := k.lookupLocked(key); exists {
			delete(k.data, key)
			n++
		}
	}
	if n > 0 {
		k.bumpChangeCounter()
	}
	return n
}

func (k *Keyspace) Exists(keys ...string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, key := range keys {
		if _, exists := k.lookupLocked(key); exists {
			n++
		}
	}
	return n
}

func (k *Keyspace) TypeOf(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return "", false
	}
	return e.value.Kind.String(), true
}

func (k *Keyspace) Keys(pattern string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	t := now()
	var out []string
	for key, e := range k.data {
		if e.expired(t) {
			delete(k.data, key)
			continue
		}
		if glob.Match(pattern, key) {
			out = append(out, key)
		}
	}
	return out
}

func (k *Keyspace) DBSize() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	t := now()
	for key, e := range k.data {
		if e.expired(t) {
			delete(k.data, key)
		}
	}
	return len(k.data)
}

func (k *Keyspace) FlushAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data = make(map[string]*entry)
	k.bumpChangeCounter()
}

// Expire sets key's TTL to d from now. Returns false if key does not exist.
func (k *Keyspace) Expire(key string, d time.Duration) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return false
	}
	at := now().Add(d)
	e.expiresAt = &at
	k.bumpChangeCounter()
	return true
}

// Persist removes key's TTL. Returns false if key does not exist or has no
// TTL.
func (k *Keyspace) Persist(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists || e.expiresAt == nil {
		return false
	}
	e.expiresAt = nil
	k.bumpChangeCounter()
	return true
}

// TTL returns the remaining time to live, ok=false if the key doesn't
// exist, and ttl<0 sentinel -1 if it exists but has no expiry.
func (k *Keyspace) TTL(key string) (ttl time.Duration, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, false
	}
	if e.expiresAt == nil {
		return -1, true
	}
	remaining := e.expiresAt.Sub(now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// getOrCreateLocked returns the entry for key, creating it with the given
// kind if absent, or returns ErrWrongType if it holds a different kind.
func (k *Keyspace) getOrCreateLocked(key string, kind Kind, create func() Value) (*entry, error) {
	e, exists := k.lookupLocked(key)
	if !exists {
		e = &entry{value: create()}
		k.data[key] = e
		return e, nil
	}
	if e.value.Kind != kind {
		return nil, ErrWrongType
	}
	return e, nil
}

// --- Lists ---

func (k *Keyspace) RPush(key string, values ...[]byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.getOrCreateLocked(key, KindList, func() Value { return Value{Kind: KindList} })
	if err != nil {
		return 0, err
	}
	e.value.List = append(e.value.List, values...)
	k.bumpChangeCounter()
	return len(e.value.List), nil
}

func (k *Keyspace) LPush(key string, values ...[]byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.getOrCreateLocked(key, KindList, func() Value { return Value{Kind: KindList} })
	if err != nil {
		return 0, err
	}
	rev := make([][]byte, len(values))
	for i, v := range values {
		rev[len(values)-1-i] = v
	}
	e.value.List = append(rev, e.value.List...)
	k.bumpChangeCounter()
	return len(e.value.List), nil
}

func (k *Keyspace) LLen(key string) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, nil
	}
	if e.value.Kind != KindList {
		return 0, ErrWrongType
	}
	return len(e.value.List), nil
}

func (k *Keyspace) LRange(key string, start, end int) ([][]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindList {
		return nil, ErrWrongType
	}
	list := e.value.List
	n := len(list)
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n || n == 0 {
		return nil, nil
	}
	out := make([][]byte, end-start+1)
	copy(out, list[start:end+1])
	return out, nil
}

func (k *Keyspace) LIndex(key string, idx int) ([]byte, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, false, nil
	}
	if e.value.Kind != KindList {
		return nil, false, ErrWrongType
	}
	n := len(e.value.List)
	idx = clampIndex(idx, n)
	if idx < 0 || idx >= n {
		return nil, false, nil
	}
	return e.value.List[idx], true, nil
}

func (k *Keyspace) LSet(key string, idx int, val []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return errNoSuchKey
	}
	if e.value.Kind != KindList {
		return ErrWrongType
	}
	n := len(e.value.List)
	idx = clampIndex(idx, n)
	if idx < 0 || idx >= n {
		return errIndexOutOfRange
	}
	e.value.List[idx] = val
	k.bumpChangeCounter()
	return nil
}

// LPop/RPop pop up to count elements; a single-element pop (count==1 from
// the command layer's perspective) is disambiguated by the caller.
func (k *Keyspace) LPop(key string, count int) ([][]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.popLocked(key, count, true)
}

func (k *Keyspace) RPop(key string, count int) ([][]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.popLocked(key, count, false)
}

func (k *Keyspace) popLocked(key string, count int, fromLeft bool) ([][]byte, error) {
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindList {
		return nil, ErrWrongType
	}
	list := e.value.List
	n := len(list)
	if n == 0 {
		return nil, nil
	}
	if count > n {
		count = n
	}
	var popped [][]byte
	if fromLeft {
		popped = list[:count]
		e.value.List = list[count:]
	} else {
		popped = list[n-count:]
		e.value.List = list[:n-count]
	}
	if len(e.value.List) == 0 {
		delete(k.data, key)
	}
	if count > 0 {
		k.bumpChangeCounter()
	}
	return popped, nil
}

// --- Sets ---

func (k *Keyspace) SAdd(key string, members ...[]byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.getOrCreateLocked(key, KindSet, func() Value {
		return Value{Kind: KindSet, Set: make(map[string]struct{})}
	})
	if err != nil {
		return 0, err
	}
	added := 0
	for _, m := range members {
		ms := string(m)
		if _, exists := e.value.Set[ms]; !exists {
			e.value.Set[ms] = struct{}{}
			added++
		}
	}
	if added > 0 {
		k.bumpChangeCounter()
	}
	return added, nil
}

func (k *Keyspace) SRem(key string, members ...[]byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, nil
	}
	if e.value.Kind != KindSet {
		return 0, ErrWrongType
	}
	removed := 0
	for _, m := range members {
		ms := string(m)
		if _, exists := e.value.Set[ms]; exists {
			delete(e.value.Set, ms)
			removed++
		}
	}
	if len(e.value.Set) == 0 {
		delete(k.data, key)
	}
	if removed > 0 {
		k.bumpChangeCounter()
	}
	return removed, nil
}

func (k *Keyspace) SMembers(key string) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindSet {
		return nil, ErrWrongType
	}
	out := make([]string, 0, len(e.value.Set))
	for m := range e.value.Set {
		out = append(out, m)
	}
	return out, nil
}

func (k *Keyspace) SIsMember(key string, member []byte) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return false, nil
	}
	if e.value.Kind != KindSet {
		return false, ErrWrongType
	}
	_, ok := e.value.Set[string(member)]
	return ok, nil
}

func (k *Keyspace) SCard(key string) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, nil
	}
	if e.value.Kind != KindSet {
		return 0, ErrWrongType
	}
	return len(e.value.Set), nil
}

// --- Hashes ---

func (k *Keyspace) HSet(key string, field string, val []byte) (created bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.getOrCreateLocked(key, KindHash, func() Value { return Value{Kind: KindHash, Hash: newHash()} })
	if err != nil {
		return false, err
	}
	created = e.value.Hash.Set(field, val)
	k.bumpChangeCounter()
	return created, nil
}

func (k *Keyspace) HGet(key, field string) ([]byte, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, false, nil
	}
	if e.value.Kind != KindHash {
		return nil, false, ErrWrongType
	}
	v, ok := e.value.Hash.Get(field)
	return v, ok, nil
}

func (k *Keyspace) HGetAll(key string) ([]HashField, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindHash {
		return nil, ErrWrongType
	}
	return e.value.Hash.All(), nil
}

func (k *Keyspace) HDel(key string, fields ...string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, nil
	}
	if e.value.Kind != KindHash {
		return 0, ErrWrongType
	}
	removed := 0
	for _, f := range fields {
		if e.value.Hash.Del(f) {
			removed++
		}
	}
	if e.value.Hash.Len() == 0 {
		delete(k.data, key)
	}
	if removed > 0 {
		k.bumpChangeCounter()
	}
	return removed, nil
}

func (k *Keyspace) HLen(key string) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, nil
	}
	if e.value.Kind != KindHash {
		return 0, ErrWrongType
	}
	return e.value.Hash.Len(), nil
}

func (k *Keyspace) HExists(key, field string) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return false, nil
	}
	if e.value.Kind != KindHash {
		return false, ErrWrongType
	}
	return e.value.Hash.Exists(field), nil
}

func (k *Keyspace) HKeys(key string) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindHash {
		return nil, ErrWrongType
	}
	return e.value.Hash.Keys(), nil
}

func (k *Keyspace) HVals(key string) ([][]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindHash {
		return nil, ErrWrongType
	}
	return e.value.Hash.Vals(), nil
}

// --- Sorted sets ---

func (k *Keyspace) ZAdd(key string, member string, score float64, nx, xx bool) (added bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.getOrCreateLocked(key, KindZSet, func() Value { return Value{Kind: KindZSet, ZSet: newZSet()} })
	if err != nil {
		return false, err
	}
	added, changed := e.value.ZSet.Add(member, score, nx, xx)
	if changed {
		k.bumpChangeCounter()
	}
	return added, nil
}

func (k *Keyspace) ZRem(key, member string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return false, nil
	}
	if e.value.Kind != KindZSet {
		return false, ErrWrongType
	}
	removed := e.value.ZSet.Rem(member)
	if e.value.ZSet.Len() == 0 {
		delete(k.data, key)
	}
	if removed {
		k.bumpChangeCounter()
	}
	return removed, nil
}

func (k *Keyspace) ZRange(key string, start, end int) ([]ZMember, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindZSet {
		return nil, ErrWrongType
	}
	return e.value.ZSet.Range(start, end), nil
}

func (k *Keyspace) ZRangeByScore(key string, min, max float64) ([]ZMember, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindZSet {
		return nil, ErrWrongType
	}
	return e.value.ZSet.RangeByScore(min, max), nil
}

func (k *Keyspace) ZRank(key, member string) (int, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, false, nil
	}
	if e.value.Kind != KindZSet {
		return 0, false, ErrWrongType
	}
	rank, ok := e.value.ZSet.Rank(member)
	return rank, ok, nil
}

func (k *Keyspace) ZScore(key, member string) (float64, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, false, nil
	}
	if e.value.Kind != KindZSet {
		return 0, false, ErrWrongType
	}
	score, ok := e.value.ZSet.Score(member)
	return score, ok, nil
}

func (k *Keyspace) ZCard(key string) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return 0, nil
	}
	if e.value.Kind != KindZSet {
		return 0, ErrWrongType
	}
	return e.value.ZSet.Len(), nil
}

// --- Streams ---

func (k *Keyspace) XAdd(key string, idSpec string, fields []streams.Field, nowMs int64) (streams.ID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.getOrCreateLocked(key, KindStream, func() Value { return Value{Kind: KindStream, Stream: streams.New()} })
	if err != nil {
		return streams.ID{}, err
	}
	id, err := e.value.Stream.ResolveID(idSpec, nowMs)
	if err != nil {
		return streams.ID{}, err
	}
	e.value.Stream.Append(id, fields)
	k.bumpChangeCounter()
	return id, nil
}

func (k *Keyspace) XRange(key string, start, end streams.ID) ([]streams.Entry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindStream {
		return nil, ErrWrongType
	}
	return e.value.Stream.Range(start, end), nil
}

// XReadAfter returns entries after `after` for key, used by both the
// non-blocking and just-woken blocking paths of XREAD.
func (k *Keyspace) XReadAfter(key string, after streams.ID) ([]streams.Entry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return nil, nil
	}
	if e.value.Kind != KindStream {
		return nil, ErrWrongType
	}
	return e.value.Stream.After(after), nil
}

// LastStreamID returns the stream's last id, used to resolve XREAD's "$"
// shorthand at the moment the read begins.
func (k *Keyspace) LastStreamID(key string) (streams.ID, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, exists := k.lookupLocked(key)
	if !exists {
		return streams.ID{}, nil
	}
	if e.value.Kind != KindStream {
		return streams.ID{}, ErrWrongType
	}
	return e.value.Stream.LastID, nil
}
