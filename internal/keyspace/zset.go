package keyspace

import "sort"

// ZMember is one (member, score) pair. ZSet.Range and friends return these
// in the set's canonical order: ascending score, ties broken lexically by
// member.
type ZMember struct {
	Member string
	Score  float64
}

// ZSet orders members by (score, member), mirroring the reference
// implementation's SortedSet wrapper around a balanced tree, but as a plain
// sorted slice — CoolCache's sets are small enough that shifting on insert
// is not the bottleneck, and it keeps Range/Rank trivial.
type ZSet struct {
	order  []ZMember
	scores map[string]float64
}

func newZSet() *ZSet {
	return &ZSet{scores: make(map[string]float64)}
}

func less(a, b ZMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

func (z *ZSet) find(m ZMember) int {
	return sort.Search(len(z.order), func(i int) bool {
		return !less(z.order[i], m)
	})
}

// Add sets member's score, honoring nx/xx. Returns (added, changed): added
// is true only when the member did not previously exist; changed is true
// whenever the stored score differs from before.
func (z *ZSet) Add(member string, score float64, nx, xx bool) (added, changed bool) {
	old, existed := z.scores[member]
	if existed && nx {
		return false, false
	}
	if !existed && xx {
		return false, false
	}
	if existed {
		if old == score {
			return false, false
		}
		idx := z.find(ZMember{Member: member, Score: old})
		for idx < len(z.order) && z.order[idx].Member != member {
			idx++
		}
		z.order = append(z.order[:idx], z.order[idx+1:]...)
	}
	z.scores[member] = score
	nm := ZMember{Member: member, Score: score}
	idx := z.find(nm)
	z.order = append(z.order, ZMember{})
	copy(z.order[idx+1:], z.order[idx:])
	z.order[idx] = nm
	return !existed, true
}

func (z *ZSet) Rem(member string) bool {
	score, ok := z.scores[member]
	if !ok {
		return false
	}
	idx := z.find(ZMember{Member: member, Score: score})
	for idx < len(z.order) && z.order[idx].Member != member {
		idx++
	}
	z.order = append(z.order[:idx], z.order[idx+1:]...)
	delete(z.scores, member)
	return true
}

func (z *ZSet) Len() int { return len(z.order) }

func (z *ZSet) Score(member string) (float64, bool) {
	s, ok := z.scores[member]
	return s, ok
}

func (z *ZSet) Rank(member string) (int, bool) {
	score, ok := z.scores[member]
	if !ok {
		return 0, false
	}
	idx := z.find(ZMember{Member: member, Score: score})
	for idx < len(z.order) && z.order[idx].Member != member {
		idx++
	}
	return idx, true
}

// Range returns members in [start, end] (inclusive, Redis-style negative
// indices counted from the end).
func (z *ZSet) Range(start, end int) []ZMember {
	n := len(z.order)
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end || start >= n {
		return nil
	}
	if end >= n {
		end = n - 1
	}
	out := make([]ZMember, end-start+1)
	copy(out, z.order[start:end+1])
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = n + i
		if i < 0 {
			i = 0
		}
	}
	return i
}

// RangeByScore returns members with min <= score <= max, in ascending order.
func (z *ZSet) RangeByScore(min, max float64) []ZMember {
	lo := sort.Search(len(z.order), func(i int) bool {
		return z.order[i].Score >= min
	})
	var out []ZMember
	for i := lo; i < len(z.order) && z.order[i].Score <= max; i++ {
		out = append(out, z.order[i])
	}
	return out
}

func (z *ZSet) clone() *ZSet {
	cp := newZSet()
	cp.order = append([]ZMember(nil), z.order...)
	for k, v := range z.scores {
		cp.scores[k] = v
	}
	return cp
}
