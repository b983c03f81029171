package server

import (
	"strconv"
	"time"

	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("PING", CommandSpec{Handler: cmdPing, MinArity: 1, MaxArity: 2})
	register("ECHO", CommandSpec{Handler: cmdEcho, MinArity: 2, MaxArity: 2})
	register("QUIT", CommandSpec{Handler: cmdQuit, MinArity: 1, MaxArity: 1})
	register("COMMAND", CommandSpec{Handler: cmdCommand, MinArity: 1, MaxArity: -1})
	register("SELECT", CommandSpec{Handler: cmdSelect, MinArity: 2, MaxArity: 2})
	register("DBSIZE", CommandSpec{Handler: cmdDBSize, MinArity: 1, MaxArity: 1})
	register("FLUSHALL", CommandSpec{Handler: cmdFlushAll, MinArity: 1, MaxArity: 2, IsWrite: true})
	register("TYPE", CommandSpec{Handler: cmdType, MinArity: 2, MaxArity: 2})
	register("EXISTS", CommandSpec{Handler: cmdExists, MinArity: 2, MaxArity: -1})
	register("KEYS", CommandSpec{Handler: cmdKeys, MinArity: 2, MaxArity: 2})
	register("DEL", CommandSpec{Handler: cmdDel, MinArity: 2, MaxArity: -1, IsWrite: true})
	register("EXPIRE", CommandSpec{Handler: cmdExpire, MinArity: 3, MaxArity: 3, IsWrite: true})
	register("PEXPIRE", CommandSpec{Handler: cmdPExpire, MinArity: 3, MaxArity: 3, IsWrite: true})
	register("PERSIST", CommandSpec{Handler: cmdPersist, MinArity: 2, MaxArity: 2, IsWrite: true})
	register("TTL", CommandSpec{Handler: cmdTTL, MinArity: 2, MaxArity: 2})
	register("PTTL", CommandSpec{Handler: cmdPTTL, MinArity: 2, MaxArity: 2})
}

func cmdPing(s *Server, c *Client, args []string) *resp.Frame {
	if len(args) == 2 {
		return resp.BulkString(args[1])
	}
	return resp.Simple("PONG")
}

func cmdEcho(s *Server, c *Client, args []string) *resp.Frame {
	return resp.BulkString(args[1])
}

// cmdQuit replies OK and closes the connection itself; the read loop then
// sees EOF and unwinds normally.
func cmdQuit(s *Server, c *Client, args []string) *resp.Frame {
	_ = c.write(resp.Simple("OK"))
	_ = c.conn.Close()
	return nil
}

// cmdCommand exists so redis-cli's startup probe succeeds; the full
// introspection table is not implemented.
func cmdCommand(s *Server, c *Client, args []string) *resp.Frame {
	return resp.Array()
}

func cmdSelect(s *Server, c *Client, args []string) *resp.Frame {
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	if n != 0 {
		return resp.Err("ERR DB index is out of range")
	}
	return resp.Simple("OK")
}

func cmdDBSize(s *Server, c *Client, args []string) *resp.Frame {
	n := s.KS.DBSize()
	s.Metrics.SetKeyspaceSize(n)
	return resp.Integer(int64(n))
}

func cmdFlushAll(s *Server, c *Client, args []string) *resp.Frame {
	s.KS.FlushAll()
	return resp.Simple("OK")
}

func cmdType(s *Server, c *Client, args []string) *resp.Frame {
	t, ok := s.KS.TypeOf(args[1])
	if !ok {
		return resp.Simple("none")
	}
	return resp.Simple(t)
}

func cmdExists(s *Server, c *Client, args []string) *resp.Frame {
	return resp.Integer(int64(s.KS.Exists(args[1:]...)))
}

func cmdKeys(s *Server, c *Client, args []string) *resp.Frame {
	return resp.ArrayOfBulkStrings(s.KS.Keys(args[1]))
}

func cmdDel(s *Server, c *Client, args []string) *resp.Frame {
	return resp.Integer(int64(s.KS.Del(args[1:]...)))
}

func cmdExpire(s *Server, c *Client, args []string) *resp.Frame {
	return expire(s, args, time.Second)
}

func cmdPExpire(s *Server, c *Client, args []string) *resp.Frame {
	return expire(s, args, time.Millisecond)
}

func expire(s *Server, args []string, unit time.Duration) *resp.Frame {
	n, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	if s.KS.Expire(args[1], time.Duration(n)*unit) {
		return resp.Integer(1)
	}
	return resp.Integer(0)
}

func cmdPersist(s *Server, c *Client, args []string) *resp.Frame {
	if s.KS.Persist(args[1]) {
		return resp.Integer(1)
	}
	return resp.Integer(0)
}

func cmdTTL(s *Server, c *Client, args []string) *resp.Frame {
	return ttlReply(s, args[1], time.Second)
}

func cmdPTTL(s *Server, c *Client, args []string) *resp.Frame {
	return ttlReply(s, args[1], time.Millisecond)
}

func ttlReply(s *Server, key string, unit time.Duration) *resp.Frame {
	ttl, ok := s.KS.TTL(key)
	if !ok {
		return resp.Integer(-2)
	}
	if ttl < 0 {
		return resp.Integer(-1)
	}
	n := int64(ttl / unit)
	if unit == time.Second && ttl%time.Second > 0 {
		n++ // round up so a 900ms remainder reports as 1s, not 0
	}
	return resp.Integer(n)
}
