package keyspace

import "time"

// Record is a single exported key for RDB serialization: the stored value
// plus its absolute expiry, if any.
type Record struct {
	Key       string
	Value     Value
	ExpiresAt *time.Time
}

// Snapshot takes a point-in-time, deep-copied view of every live key under
// the write lock, the way BGSAVE's fork-free clone-then-release pattern
// needs: the returned records are safe to serialize after the lock is
// dropped, unaffected by concurrent writes.
func (k *Keyspace) Snapshot() []Record {
	k.mu.Lock()
	defer k.mu.Unlock()
	t := now()
	out := make([]Record, 0, len(k.data))
	for key, e := range k.data {
		if e.expired(t) {
			delete(k.data, key)
			continue
		}
		out = append(out, Record{Key: key, Value: cloneValue(e.value), ExpiresAt: e.expiresAt})
	}
	return out
}

func cloneValue(v Value) Value {
	cp := Value{Kind: v.Kind}
	switch v.Kind {
	case KindString:
		cp.Str = append([]byte(nil), v.Str...)
	case KindList:
		cp.List = make([][]byte, len(v.List))
		for i, e := range v.List {
			cp.List[i] = append([]byte(nil), e...)
		}
	case KindSet:
		cp.Set = make(map[string]struct{}, len(v.Set))
		for m := range v.Set {
			cp.Set[m] = struct{}{}
		}
	case KindHash:
		cp.Hash = v.Hash.clone()
	case KindZSet:
		cp.ZSet = v.ZSet.clone()
	case KindStream:
		cp.Stream = v.Stream.Clone()
	}
	return cp
}

// Load replaces the keyspace's contents wholesale, used by RDB import at
// startup and by the replication follower after a full resync.
func (k *Keyspace) Load(records []Record) {
	k.mu.Lock()
	defer k.mu.Unlock()
	data := make(map[string]*entry, len(records))
	for _, r := range records {
		data[r.Key] = &entry{value: r.Value, expiresAt: r.ExpiresAt}
	}
	k.data = data
	k.changeCounter = 0
}

// Restore inserts or overwrites a single key, used while an RDB file is
// being streamed in incrementally rather than built up as a slice first.
func (k *Keyspace) Restore(rec Record) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[rec.Key] = &entry{value: rec.Value, expiresAt: rec.ExpiresAt}
}
