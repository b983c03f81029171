package server

import (
	"testing"

	"github.com/coolcache/coolcache/internal/resp"
)

func arrayStrings(t *testing.T, f *resp.Frame) []string {
	t.Helper()
	if f == nil || f.Type != resp.TypeArray || f.IsNull {
		t.Fatalf("want array frame, got %+v", f)
	}
	out := make([]string, len(f.Array))
	for i, item := range f.Array {
		out[i] = string(item.Bulk)
	}
	return out
}

func wantStrings(t *testing.T, f *resp.Frame, want ...string) {
	t.Helper()
	got := arrayStrings(t, f)
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestListPushPopRange(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantInt(t, do(t, s, c, "RPUSH", "l", "b", "c"), 2)
	wantInt(t, do(t, s, c, "LPUSH", "l", "a"), 3)
	wantStrings(t, do(t, s, c, "LRANGE", "l", "0", "-1"), "a", "b", "c")
	wantInt(t, do(t, s, c, "LLEN", "l"), 3)

	wantBulk(t, do(t, s, c, "LPOP", "l"), "a")
	wantBulk(t, do(t, s, c, "RPOP", "l"), "c")
	wantStrings(t, do(t, s, c, "LPOP", "l", "5"), "b")
	wantNullBulk(t, do(t, s, c, "LPOP", "l"))

	// popping the last element removes the key
	wantInt(t, do(t, s, c, "EXISTS", "l"), 0)
}

func TestListIndexAndSet(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "RPUSH", "l", "a", "b", "c")
	wantBulk(t, do(t, s, c, "LINDEX", "l", "0"), "a")
	wantBulk(t, do(t, s, c, "LINDEX", "l", "-1"), "c")
	wantNullBulk(t, do(t, s, c, "LINDEX", "l", "9"))

	wantSimple(t, do(t, s, c, "LSET", "l", "1", "B"), "OK")
	wantBulk(t, do(t, s, c, "LINDEX", "l", "1"), "B")
	wantErrPrefix(t, do(t, s, c, "LSET", "l", "9", "x"), "ERR")
	wantErrPrefix(t, do(t, s, c, "LSET", "missing", "0", "x"), "ERR")
}

func TestLRangeNegativeIndexes(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "RPUSH", "l", "a", "b", "c", "d")
	wantStrings(t, do(t, s, c, "LRANGE", "l", "-2", "-1"), "c", "d")
	wantStrings(t, do(t, s, c, "LRANGE", "l", "2", "1"))
	wantStrings(t, do(t, s, c, "LRANGE", "missing", "0", "-1"))
}

func TestSetOperations(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantInt(t, do(t, s, c, "SADD", "s", "a", "b", "a"), 2)
	wantInt(t, do(t, s, c, "SCARD", "s"), 2)
	wantInt(t, do(t, s, c, "SISMEMBER", "s", "a"), 1)
	wantInt(t, do(t, s, c, "SISMEMBER", "s", "z"), 0)

	members := arrayStrings(t, do(t, s, c, "SMEMBERS", "s"))
	if len(members) != 2 {
		t.Fatalf("want 2 members, got %v", members)
	}

	wantInt(t, do(t, s, c, "SREM", "s", "a", "z"), 1)
	wantInt(t, do(t, s, c, "SCARD", "s"), 1)
	wantInt(t, do(t, s, c, "SREM", "s", "b"), 1)
	wantInt(t, do(t, s, c, "EXISTS", "s"), 0)
}

func TestHashOperations(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantInt(t, do(t, s, c, "HSET", "h", "f1", "v1", "f2", "v2"), 2)
	wantInt(t, do(t, s, c, "HSET", "h", "f1", "updated"), 0)
	wantBulk(t, do(t, s, c, "HGET", "h", "f1"), "updated")
	wantNullBulk(t, do(t, s, c, "HGET", "h", "missing"))
	wantInt(t, do(t, s, c, "HLEN", "h"), 2)
	wantInt(t, do(t, s, c, "HEXISTS", "h", "f2"), 1)
	wantInt(t, do(t, s, c, "HEXISTS", "h", "nope"), 0)

	all := arrayStrings(t, do(t, s, c, "HGETALL", "h"))
	if len(all) != 4 {
		t.Fatalf("want flat field,value pairs, got %v", all)
	}

	wantInt(t, do(t, s, c, "HDEL", "h", "f1", "nope"), 1)
	wantInt(t, do(t, s, c, "HDEL", "h", "f2"), 1)
	wantInt(t, do(t, s, c, "EXISTS", "h"), 0)
}

func TestHSetOddPairsRejected(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()
	wantErrPrefix(t, do(t, s, c, "HSET", "h", "f1", "v1", "dangling"), "ERR wrong number of arguments")
}

func TestZSetAddRangeScore(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantInt(t, do(t, s, c, "ZADD", "z", "2", "b", "1", "a", "3", "c"), 3)
	wantInt(t, do(t, s, c, "ZADD", "z", "10", "a"), 0) // update, not add
	wantStrings(t, do(t, s, c, "ZRANGE", "z", "0", "-1"), "b", "c", "a")
	wantStrings(t, do(t, s, c, "ZRANGE", "z", "0", "0", "WITHSCORES"), "b", "2")

	wantBulk(t, do(t, s, c, "ZSCORE", "z", "a"), "10")
	wantNullBulk(t, do(t, s, c, "ZSCORE", "z", "nope"))
	wantInt(t, do(t, s, c, "ZRANK", "z", "c"), 1)
	wantNullBulk(t, do(t, s, c, "ZRANK", "z", "nope"))
	wantInt(t, do(t, s, c, "ZCARD", "z"), 3)
}

func TestZSetNXXXFlags(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantInt(t, do(t, s, c, "ZADD", "z", "NX", "1", "a"), 1)
	wantInt(t, do(t, s, c, "ZADD", "z", "NX", "5", "a"), 0)
	wantBulk(t, do(t, s, c, "ZSCORE", "z", "a"), "1")

	wantInt(t, do(t, s, c, "ZADD", "z", "XX", "7", "a"), 0)
	wantBulk(t, do(t, s, c, "ZSCORE", "z", "a"), "7")
	wantInt(t, do(t, s, c, "ZADD", "z", "XX", "9", "newmember"), 0)
	wantInt(t, do(t, s, c, "ZCARD", "z"), 1)

	wantErrPrefix(t, do(t, s, c, "ZADD", "z", "NX", "XX", "1", "m"), "ERR XX and NX")
}

func TestZRangeByScore(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "ZADD", "z", "1", "a", "2", "b", "3", "c")
	wantStrings(t, do(t, s, c, "ZRANGEBYSCORE", "z", "2", "3"), "b", "c")
	wantStrings(t, do(t, s, c, "ZRANGEBYSCORE", "z", "-inf", "+inf"), "a", "b", "c")
	wantStrings(t, do(t, s, c, "ZRANGEBYSCORE", "z", "-inf", "1"), "a")
	wantErrPrefix(t, do(t, s, c, "ZRANGEBYSCORE", "z", "x", "3"), "ERR min or max is not a float")
}

func TestZRem(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "ZADD", "z", "1", "a", "2", "b")
	wantInt(t, do(t, s, c, "ZREM", "z", "a", "nope"), 1)
	wantInt(t, do(t, s, c, "ZCARD", "z"), 1)
	wantInt(t, do(t, s, c, "ZREM", "z", "b"), 1)
	wantInt(t, do(t, s, c, "EXISTS", "z"), 0)
}
