package server

import (
	"testing"
	"time"

	"github.com/coolcache/coolcache/internal/resp"
)

func TestXAddExplicitAndAutoIDs(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantBulk(t, do(t, s, c, "XADD", "st", "1-1", "f", "v"), "1-1")
	wantBulk(t, do(t, s, c, "XADD", "st", "1-*", "f", "v"), "1-2")

	auto := do(t, s, c, "XADD", "st", "*", "f", "v")
	if auto.Type != resp.TypeBulk || len(auto.Bulk) == 0 {
		t.Fatalf("want auto-generated id, got %+v", auto)
	}
}

func TestXAddRejectsNonIncreasingIDs(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "XADD", "st", "5-5", "f", "v")
	wantErrPrefix(t, do(t, s, c, "XADD", "st", "5-5", "f", "v"), "ERR The ID specified in XADD is equal or smaller")
	wantErrPrefix(t, do(t, s, c, "XADD", "st", "4-9", "f", "v"), "ERR The ID specified in XADD is equal or smaller")
	wantErrPrefix(t, do(t, s, c, "XADD", "st", "0-0", "f", "v"), "ERR The ID specified in XADD must be greater than 0-0")
}

func TestXAddRejectsDanglingField(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()
	wantErrPrefix(t, do(t, s, c, "XADD", "st", "1-1", "f", "v", "dangling"), "ERR wrong number of arguments")
}

func TestXRange(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "XADD", "st", "1-1", "a", "1")
	do(t, s, c, "XADD", "st", "2-1", "b", "2")
	do(t, s, c, "XADD", "st", "3-1", "c", "3")

	f := do(t, s, c, "XRANGE", "st", "-", "+")
	if f.Type != resp.TypeArray || len(f.Array) != 3 {
		t.Fatalf("want 3 entries, got %+v", f)
	}
	entry := f.Array[0]
	wantBulk(t, entry.Array[0], "1-1")
	wantStrings(t, entry.Array[1], "a", "1")

	mid := do(t, s, c, "XRANGE", "st", "2", "2")
	if len(mid.Array) != 1 {
		t.Fatalf("want 1 entry for 2..2, got %+v", mid)
	}
	wantBulk(t, mid.Array[0].Array[0], "2-1")
}

func TestXReadNonBlocking(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "XADD", "st", "1-1", "f", "v")
	do(t, s, c, "XADD", "st", "2-1", "g", "w")

	f := do(t, s, c, "XREAD", "STREAMS", "st", "1-1")
	if f.Type != resp.TypeArray || len(f.Array) != 1 {
		t.Fatalf("want 1 stream in reply, got %+v", f)
	}
	stream := f.Array[0]
	wantBulk(t, stream.Array[0], "st")
	entries := stream.Array[1]
	if len(entries.Array) != 1 {
		t.Fatalf("want only entries after 1-1, got %+v", entries)
	}
	wantBulk(t, entries.Array[0].Array[0], "2-1")

	// nothing past the top id
	empty := do(t, s, c, "XREAD", "STREAMS", "st", "2-1")
	if empty.Type != resp.TypeArray || !empty.IsNull {
		t.Fatalf("want null array when caught up, got %+v", empty)
	}
}

func TestXReadBlockWakesOnXAdd(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()
	writer, _ := testClient()

	do(t, s, c, "XADD", "st", "1-1", "f", "v")

	done := make(chan *resp.Frame, 1)
	go func() {
		done <- do(t, s, c, "XREAD", "BLOCK", "0", "STREAMS", "st", "$")
	}()

	// give the reader time to park before appending
	time.Sleep(50 * time.Millisecond)
	do(t, s, writer, "XADD", "st", "2-1", "g", "w")

	select {
	case f := <-done:
		if f.Type != resp.TypeArray || len(f.Array) != 1 {
			t.Fatalf("want woken reply with 1 stream, got %+v", f)
		}
		entries := f.Array[0].Array[1]
		wantBulk(t, entries.Array[0].Array[0], "2-1")
	case <-time.After(2 * time.Second):
		t.Fatal("blocked XREAD never woke up")
	}
}

func TestXReadBlockTimesOut(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	start := time.Now()
	f := do(t, s, c, "XREAD", "BLOCK", "50", "STREAMS", "st", "$")
	if f.Type != resp.TypeArray || !f.IsNull {
		t.Fatalf("want null array on timeout, got %+v", f)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("returned before the block timeout elapsed")
	}
}

func TestXReadUnbalancedStreams(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()
	wantErrPrefix(t, do(t, s, c, "XREAD", "STREAMS", "a", "b", "1-1"), "ERR Unbalanced XREAD")
}
