package keyspace

import (
	"testing"
	"time"
)

func TestSetGetBasic(t *testing.T) {
	k := New()
	if !k.Set("a", []byte("1"), SetOptions{}) {
		t.Fatal("expected set to succeed")
	}
	v, ok := k.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
}

func TestSetNXXX(t *testing.T) {
	k := New()
	if k.Set("a", []byte("1"), SetOptions{XX: true}) {
		t.Fatal("XX on missing key should not store")
	}
	if _, ok := k.Get("a"); ok {
		t.Fatal("XX should not have stored")
	}
	if !k.Set("a", []byte("1"), SetOptions{NX: true}) {
		t.Fatal("NX on missing key should store")
	}
	if k.Set("a", []byte("2"), SetOptions{NX: true}) {
		t.Fatal("NX on existing key should fail")
	}
}

func TestExpireLazy(t *testing.T) {
	k := New()
	k.Set("a", []byte("1"), SetOptions{})
	fixed := time.Now()
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	k.Expire("a", time.Second)
	if _, ok := k.Get("a"); !ok {
		t.Fatal("should still exist before expiry")
	}
	now = func() time.Time { return fixed.Add(2 * time.Second) }
	if _, ok := k.Get("a"); ok {
		t.Fatal("should have lazily expired")
	}
}

func TestWrongType(t *testing.T) {
	k := New()
	k.Set("a", []byte("1"), SetOptions{})
	if _, err := k.LPush("a", []byte("x")); err != ErrWrongType {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestListOps(t *testing.T) {
	k := New()
	k.RPush("l", []byte("a"), []byte("b"), []byte("c"))
	k.LPush("l", []byte("z"))
	vals, err := k.LRange("l", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"z", "a", "b", "c"}
	if len(vals) != len(want) {
		t.Fatalf("got %v", vals)
	}
	for i, w := range want {
		if string(vals[i]) != w {
			t.Fatalf("index %d: got %s want %s", i, vals[i], w)
		}
	}
	popped, _ := k.LPop("l", 1)
	if len(popped) != 1 || string(popped[0]) != "z" {
		t.Fatalf("unexpected pop: %v", popped)
	}
}

func TestSetOps(t *testing.T) {
	k := New()
	n, _ := k.SAdd("s", []byte("a"), []byte("b"), []byte("a"))
	if n != 2 {
		t.Fatalf("expected 2 added, got %d", n)
	}
	ok, _ := k.SIsMember("s", []byte("a"))
	if !ok {
		t.Fatal("expected member a")
	}
	card, _ := k.SCard("s")
	if card != 2 {
		t.Fatalf("expected card 2, got %d", card)
	}
}

func TestHashOps(t *testing.T) {
	k := New()
	k.HSet("h", "f1", []byte("v1"))
	k.HSet("h", "f2", []byte("v2"))
	all, _ := k.HGetAll("h")
	if len(all) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(all))
	}
	n, _ := k.HDel("h", "f1")
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
}

func TestZSetOps(t *testing.T) {
	k := New()
	k.ZAdd("z", "a", 1, false, false)
	k.ZAdd("z", "b", 2, false, false)
	k.ZAdd("z", "c", 1.5, false, false)
	members, err := k.ZRange("z", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "c", "b"}
	for i, w := range want {
		if members[i].Member != w {
			t.Fatalf("index %d: got %s want %s", i, members[i].Member, w)
		}
	}
	rank, ok, _ := k.ZRank("z", "b")
	if !ok || rank != 2 {
		t.Fatalf("expected rank 2, got %d ok=%v", rank, ok)
	}
}

func TestXAddAndRange(t *testing.T) {
	k := New()
	id1, err := k.XAdd("stream", "*", nil, 1000)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := k.XAdd("stream", "*", nil, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if id1.Compare(id2) >= 0 {
		t.Fatalf("expected id1 < id2: %v %v", id1, id2)
	}
	entries, err := k.XReadAfter("stream", id1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != id2 {
		t.Fatalf("unexpected entries: %v", entries)
	}
}

func TestSnapshotIsolated(t *testing.T) {
	k := New()
	k.Set("a", []byte("1"), SetOptions{})
	snap := k.Snapshot()
	k.Set("a", []byte("2"), SetOptions{})
	if string(snap[0].Value.Str) != "1" {
		t.Fatalf("snapshot was not isolated from later writes: %s", snap[0].Value.Str)
	}
}

func TestKeysGlob(t *testing.T) {
	k := New()
	k.Set("user:1", []byte("x"), SetOptions{})
	k.Set("user:2", []byte("x"), SetOptions{})
	k.Set("other", []byte("x"), SetOptions{})
	matches := k.Keys("user:*")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}
}
