package server

import (
	"strings"
	"testing"

	"github.com/coolcache/coolcache/internal/resp"
)

func TestInfoSections(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "SET", "k", "v")
	f := do(t, s, c, "INFO")
	body := string(f.Bulk)

	for _, want := range []string{
		"# Server", "tcp_port:6379",
		"# Replication", "role:master", "connected_slaves:0", "master_replid:",
		"# Keyspace", "db0:keys=1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("INFO missing %q in:\n%s", want, body)
		}
	}

	repl := do(t, s, c, "INFO", "replication")
	body = string(repl.Bulk)
	if !strings.Contains(body, "role:master") {
		t.Fatalf("sectioned INFO missing role: %s", body)
	}
	if strings.Contains(body, "# Keyspace") {
		t.Fatalf("sectioned INFO leaked other sections: %s", body)
	}
}

func TestInfoCommandstats(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "SET", "k", "v")
	do(t, s, c, "GET", "k")
	do(t, s, c, "GET", "k")

	f := do(t, s, c, "INFO", "commandstats")
	body := string(f.Bulk)
	if !strings.Contains(body, "cmdstat_get:calls=2") {
		t.Fatalf("want get call count in:\n%s", body)
	}
	if !strings.Contains(body, "cmdstat_set:calls=1") {
		t.Fatalf("want set call count in:\n%s", body)
	}
}

func TestConfigGetAndSet(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	f := do(t, s, c, "CONFIG", "GET", "dir", "dbfilename", "nonexistent")
	got := arrayStrings(t, f)
	if len(got) != 4 || got[0] != "dir" || got[2] != "dbfilename" || got[3] != "dump.rdb" {
		t.Fatalf("unexpected CONFIG GET reply: %v", got)
	}

	wantSimple(t, do(t, s, c, "CONFIG", "SET", "dbfilename", "other.rdb"), "OK")
	got = arrayStrings(t, do(t, s, c, "CONFIG", "GET", "dbfilename"))
	if got[1] != "other.rdb" {
		t.Fatalf("CONFIG SET did not stick: %v", got)
	}

	wantErrPrefix(t, do(t, s, c, "CONFIG", "SET", "maxmemory", "100"), "ERR Unknown option")
}

func TestConfigSetSaveSchedule(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantSimple(t, do(t, s, c, "CONFIG", "SET", "save", "60 5"), "OK")
	got := arrayStrings(t, do(t, s, c, "CONFIG", "GET", "save"))
	if got[1] != "60 5" {
		t.Fatalf("want save schedule 60 5, got %v", got)
	}

	// empty string disables auto-save
	wantSimple(t, do(t, s, c, "CONFIG", "SET", "save", ""), "OK")
	got = arrayStrings(t, do(t, s, c, "CONFIG", "GET", "save"))
	if got[1] != "" {
		t.Fatalf("want empty schedule, got %v", got)
	}

	wantErrPrefix(t, do(t, s, c, "CONFIG", "SET", "save", "60"), "ERR Invalid save parameters")
}

func TestSaveAndLastSave(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "SET", "k", "v")
	wantSimple(t, do(t, s, c, "SAVE"), "OK")

	last := do(t, s, c, "LASTSAVE")
	if last.Type != resp.TypeInt || last.Int == 0 {
		t.Fatalf("want unix timestamp from LASTSAVE, got %+v", last)
	}
}

func TestDebugReloadRoundTrips(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "SET", "k", "v")
	do(t, s, c, "RPUSH", "l", "a", "b")
	do(t, s, c, "HSET", "h", "f", "x")

	wantSimple(t, do(t, s, c, "DEBUG", "RELOAD"), "OK")

	wantBulk(t, do(t, s, c, "GET", "k"), "v")
	wantStrings(t, do(t, s, c, "LRANGE", "l", "0", "-1"), "a", "b")
	wantBulk(t, do(t, s, c, "HGET", "h", "f"), "x")
}

func TestDebugObject(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	do(t, s, c, "SET", "k", "v")
	f := do(t, s, c, "DEBUG", "OBJECT", "k")
	if f.Type != resp.TypeSimple || !strings.Contains(f.Str, "encoding:string") {
		t.Fatalf("want encoding in DEBUG OBJECT reply, got %+v", f)
	}
	wantErrPrefix(t, do(t, s, c, "DEBUG", "OBJECT", "missing"), "ERR no such key")
}

func TestClientNameCommands(t *testing.T) {
	s := testServer(t)
	c, _ := testClient()

	wantNullBulk(t, do(t, s, c, "CLIENT", "GETNAME"))
	wantSimple(t, do(t, s, c, "CLIENT", "SETNAME", "worker-1"), "OK")
	wantBulk(t, do(t, s, c, "CLIENT", "GETNAME"), "worker-1")
	wantErrPrefix(t, do(t, s, c, "CLIENT", "SETNAME", "has space"), "ERR Client names")

	id := do(t, s, c, "CLIENT", "ID")
	if id.Type != resp.TypeBulk || len(id.Bulk) == 0 {
		t.Fatalf("want client id, got %+v", id)
	}

	info := do(t, s, c, "CLIENT", "INFO")
	if !strings.Contains(string(info.Bulk), "name=worker-1") {
		t.Fatalf("want name in CLIENT INFO, got %s", info.Bulk)
	}
}

func TestClientList(t *testing.T) {
	s := testServer(t)
	one, _ := testClient()
	two, _ := testClient()
	s.addClient(one)
	s.addClient(two)

	f := do(t, s, one, "CLIENT", "LIST")
	body := string(f.Bulk)
	if strings.Count(body, "id=") != 2 {
		t.Fatalf("want 2 clients listed, got:\n%s", body)
	}
}
