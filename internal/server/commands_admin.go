package server

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coolcache/coolcache/internal/config"
	"github.com/coolcache/coolcache/internal/rdbcompat"
	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("INFO", CommandSpec{Handler: cmdInfo, MinArity: 1, MaxArity: 2})
	register("CONFIG", CommandSpec{Handler: cmdConfig, MinArity: 3, MaxArity: -1})
	register("SAVE", CommandSpec{Handler: cmdSave, MinArity: 1, MaxArity: 1})
	register("BGSAVE", CommandSpec{Handler: cmdBGSave, MinArity: 1, MaxArity: 1})
	register("LASTSAVE", CommandSpec{Handler: cmdLastSave, MinArity: 1, MaxArity: 1})
	register("CLIENT", CommandSpec{Handler: cmdClient, MinArity: 2, MaxArity: -1})
	register("DEBUG", CommandSpec{Handler: cmdDebug, MinArity: 2, MaxArity: -1})
}

func cmdInfo(s *Server, c *Client, args []string) *resp.Frame {
	section := ""
	if len(args) == 2 {
		section = strings.ToLower(args[1])
	}

	var b strings.Builder
	writeSection := func(name string, fill func(*strings.Builder)) {
		if section != "" && section != strings.ToLower(name) {
			return
		}
		fmt.Fprintf(&b, "# %s\r\n", name)
		fill(&b)
		b.WriteString("\r\n")
	}

	writeSection("Server", func(b *strings.Builder) {
		fmt.Fprintf(b, "uptime_in_seconds:%d\r\n", int(s.Uptime().Seconds()))
		fmt.Fprintf(b, "tcp_port:%d\r\n", s.Cfg.Port)
	})
	writeSection("Clients", func(b *strings.Builder) {
		fmt.Fprintf(b, "connected_clients:%d\r\n", len(s.Clients()))
	})
	writeSection("Replication", func(b *strings.Builder) {
		if s.Follower != nil {
			host, port, _ := strings.Cut(s.Cfg.ReplicaOf, ":")
			fmt.Fprintf(b, "role:slave\r\n")
			fmt.Fprintf(b, "master_host:%s\r\n", host)
			fmt.Fprintf(b, "master_port:%s\r\n", port)
			fmt.Fprintf(b, "slave_repl_offset:%d\r\n", s.Follower.Offset)
		} else {
			fmt.Fprintf(b, "role:master\r\n")
		}
		replicas := s.Leader.Replicas()
		fmt.Fprintf(b, "connected_slaves:%d\r\n", len(replicas))
		for i, r := range replicas {
			fmt.Fprintf(b, "slave%d:port=%d,offset=%d\r\n", i, r.ListenPort, r.Ack())
		}
		fmt.Fprintf(b, "master_replid:%s\r\n", s.Leader.ReplID)
		fmt.Fprintf(b, "master_repl_offset:%d\r\n", s.Leader.Backlog.Offset())
	})
	writeSection("Keyspace", func(b *strings.Builder) {
		fmt.Fprintf(b, "db0:keys=%d\r\n", s.KS.DBSize())
	})
	writeSection("Commandstats", func(b *strings.Builder) {
		stats := s.Metrics.CommandStats()
		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(b, "cmdstat_%s:calls=%d\r\n", strings.ToLower(name), stats[name])
		}
	})

	return resp.BulkString(b.String())
}

func cmdConfig(s *Server, c *Client, args []string) *resp.Frame {
	switch strings.ToUpper(args[1]) {
	case "GET":
		return configGet(s, args[2:])
	case "SET":
		if len(args) != 4 {
			return resp.Err("ERR wrong number of arguments for 'config|set' command")
		}
		return configSet(s, args[2], args[3])
	default:
		return resp.Err("ERR Unknown CONFIG subcommand or wrong number of arguments for '" + args[1] + "'")
	}
}

func configGet(s *Server, params []string) *resp.Frame {
	known := map[string]func() string{
		"dir":        func() string { return s.Cfg.Dir },
		"dbfilename": func() string { return s.Cfg.DBFilename },
		"save":       func() string { return config.FormatSavePoints(s.Snap.Schedule()) },
		"port":       func() string { return strconv.Itoa(s.Cfg.Port) },
		"replicaof":  func() string { return s.Cfg.ReplicaOf },
	}
	var items []*resp.Frame
	for _, p := range params {
		name := strings.ToLower(p)
		if get, ok := known[name]; ok {
			items = append(items, resp.BulkString(name), resp.BulkString(get()))
		}
	}
	return resp.Array(items...)
}

func configSet(s *Server, param, value string) *resp.Frame {
	switch strings.ToLower(param) {
	case "dir":
		s.Cfg.Dir = value
		s.Snap.SetPath(s.Cfg.RDBPath())
	case "dbfilename":
		s.Cfg.DBFilename = value
		s.Snap.SetPath(s.Cfg.RDBPath())
	case "save":
		points, err := config.ParseSavePoints(value)
		if err != nil {
			return resp.Err("ERR Invalid save parameters")
		}
		s.Cfg.Save = points
		s.Snap.SetSchedule(points)
	default:
		return resp.Err("ERR Unknown option or number of arguments for CONFIG SET - '" + param + "'")
	}
	return resp.Simple("OK")
}

func cmdSave(s *Server, c *Client, args []string) *resp.Frame {
	if err := s.Snap.Save(s.KS); err != nil {
		return resp.Err("ERR " + err.Error())
	}
	return resp.Simple("OK")
}

func cmdBGSave(s *Server, c *Client, args []string) *resp.Frame {
	s.Snap.BGSave(s.KS, func(err error) {
		if err != nil {
			s.Log.Error("background save failed", "err", err)
		} else {
			s.Log.Info("background save complete")
		}
	})
	return resp.Simple("Background saving started")
}

func cmdLastSave(s *Server, c *Client, args []string) *resp.Frame {
	return resp.Integer(s.Snap.LastSave())
}

func cmdClient(s *Server, c *Client, args []string) *resp.Frame {
	switch strings.ToUpper(args[1]) {
	case "ID":
		return resp.BulkString(c.ID.String())
	case "SETNAME":
		if len(args) != 3 {
			return resp.Err("ERR wrong number of arguments for 'client|setname' command")
		}
		if strings.ContainsAny(args[2], " \n") {
			return resp.Err("ERR Client names cannot contain spaces, newlines or special characters.")
		}
		c.Name = args[2]
		return resp.Simple("OK")
	case "GETNAME":
		if c.Name == "" {
			return resp.NullBulk()
		}
		return resp.BulkString(c.Name)
	case "INFO":
		return resp.BulkString(c.Info())
	case "LIST":
		lines := make([]string, 0)
		for _, cl := range s.Clients() {
			lines = append(lines, cl.Info())
		}
		sort.Strings(lines)
		return resp.BulkString(strings.Join(lines, "\n") + "\n")
	default:
		// SETINFO and friends arrive from modern redis-cli; accept quietly.
		return resp.Simple("OK")
	}
}

func cmdDebug(s *Server, c *Client, args []string) *resp.Frame {
	switch strings.ToUpper(args[1]) {
	case "SLEEP":
		if len(args) != 3 {
			return resp.Err("ERR wrong number of arguments for 'debug|sleep'")
		}
		secs, err := strconv.ParseFloat(args[2], 64)
		if err != nil || secs < 0 {
			return resp.Err("ERR invalid sleep time")
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return resp.Simple("OK")

	case "SET-ACTIVE-EXPIRE", "QUICKLIST-PACKED-THRESHOLD", "STRINGMATCH-LEN":
		return resp.Simple("OK")

	case "OBJECT":
		if len(args) != 3 {
			return resp.Err("ERR wrong number of arguments for 'debug|object'")
		}
		t, ok := s.KS.TypeOf(args[2])
		if !ok {
			return resp.Err("ERR no such key")
		}
		return resp.Simple("Value at: 0x0 refcount:1 encoding:" + t)

	case "RELOAD":
		if err := s.Snap.Save(s.KS); err != nil {
			return resp.Err("ERR " + err.Error())
		}
		if err := s.Snap.Load(s.KS); err != nil {
			return resp.Err("ERR " + err.Error())
		}
		return resp.Simple("OK")

	case "RELOAD-COMPAT":
		return debugReloadCompat(s)

	default:
		return resp.Err("ERR DEBUG subcommand '" + args[1] + "' not supported")
	}
}

// debugReloadCompat writes the string keys of the current keyspace to a
// temporary file with the ecosystem RDB encoder and reads that file back
// with the same library's parser. The native internal/rdb writer is not
// involved and no byte comparison is made; the reply reports how many
// records were handed to the exporter and how many were re-imported.
func debugReloadCompat(s *Server) *resp.Frame {
	tmp, err := os.CreateTemp("", "coolcache-compat-*.rdb")
	if err != nil {
		return resp.Err("ERR " + err.Error())
	}
	path := tmp.Name()
	defer os.Remove(path)

	records := s.KS.Snapshot()
	if err := rdbcompat.Export(tmp, records); err != nil {
		tmp.Close()
		return resp.Err("ERR compat export: " + err.Error())
	}
	if err := tmp.Close(); err != nil {
		return resp.Err("ERR " + err.Error())
	}

	imported, err := rdbcompat.Import(path)
	if err != nil {
		return resp.Err("ERR compat import: " + err.Error())
	}
	return resp.Simple(fmt.Sprintf("OK exported=%d reimported=%d", len(records), len(imported)))
}
