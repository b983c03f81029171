package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/coolcache/coolcache/internal/keyspace"
	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("GET", CommandSpec{Handler: cmdGet, MinArity: 2, MaxArity: 2})
	register("SET", CommandSpec{Handler: cmdSet, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("APPEND", CommandSpec{Handler: cmdAppend, MinArity: 3, MaxArity: 3, IsWrite: true})
	register("STRLEN", CommandSpec{Handler: cmdStrlen, MinArity: 2, MaxArity: 2})
	register("INCR", CommandSpec{Handler: cmdIncr, MinArity: 2, MaxArity: 2, IsWrite: true})
	register("DECR", CommandSpec{Handler: cmdDecr, MinArity: 2, MaxArity: 2, IsWrite: true})
	register("INCRBY", CommandSpec{Handler: cmdIncrBy, MinArity: 3, MaxArity: 3, IsWrite: true})
	register("DECRBY", CommandSpec{Handler: cmdDecrBy, MinArity: 3, MaxArity: 3, IsWrite: true})
}

func cmdGet(s *Server, c *Client, args []string) *resp.Frame {
	val, ok := s.KS.Get(args[1])
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(val)
}

// cmdSet parses SET key value [EX s|PX ms|EXAT ts|PXAT ts|KEEPTTL] [NX|XX].
func cmdSet(s *Server, c *Client, args []string) *resp.Frame {
	key, val := args[1], []byte(args[2])
	var opts keyspace.SetOptions

	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		case "KEEPTTL":
			opts.Expiry = keyspace.Expiry{Kind: keyspace.ExpiryKeepTTL}
		case "EX", "PX", "EXAT", "PXAT":
			mod := strings.ToUpper(args[i])
			i++
			if i >= len(args) {
				return resp.Err("ERR syntax error")
			}
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return resp.Err("ERR value is not an integer or out of range")
			}
			var at time.Time
			switch mod {
			case "EX":
				at = time.Now().Add(time.Duration(n) * time.Second)
			case "PX":
				at = time.Now().Add(time.Duration(n) * time.Millisecond)
			case "EXAT":
				at = time.Unix(n, 0)
			case "PXAT":
				at = time.UnixMilli(n)
			}
			opts.Expiry = keyspace.Expiry{Kind: keyspace.ExpiryAt, At: at}
		default:
			return resp.Err("ERR syntax error")
		}
	}

	if opts.NX && opts.XX {
		return resp.Err("ERR syntax error")
	}

	if !s.KS.Set(key, val, opts) {
		return resp.NullBulk()
	}
	return resp.Simple("OK")
}

func cmdAppend(s *Server, c *Client, args []string) *resp.Frame {
	existing, _ := s.KS.Get(args[1])
	newVal := append(append([]byte(nil), existing...), args[2]...)
	s.KS.Set(args[1], newVal, keyspace.SetOptions{Expiry: keyspace.Expiry{Kind: keyspace.ExpiryKeepTTL}})
	return resp.Integer(int64(len(newVal)))
}

func cmdStrlen(s *Server, c *Client, args []string) *resp.Frame {
	val, ok := s.KS.Get(args[1])
	if !ok {
		return resp.Integer(0)
	}
	return resp.Integer(int64(len(val)))
}

func cmdIncr(s *Server, c *Client, args []string) *resp.Frame {
	return incrBy(s, args[1], 1)
}

func cmdDecr(s *Server, c *Client, args []string) *resp.Frame {
	return incrBy(s, args[1], -1)
}

func cmdIncrBy(s *Server, c *Client, args []string) *resp.Frame {
	n, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	return incrBy(s, args[1], n)
}

func cmdDecrBy(s *Server, c *Client, args []string) *resp.Frame {
	n, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	return incrBy(s, args[1], -n)
}

func incrBy(s *Server, key string, delta int64) *resp.Frame {
	existing, ok := s.KS.Get(key)
	var cur int64
	if ok {
		var err error
		cur, err = strconv.ParseInt(string(existing), 10, 64)
		if err != nil {
			return resp.Err("ERR value is not an integer or out of range")
		}
	}
	next := cur + delta
	s.KS.Set(key, []byte(strconv.FormatInt(next, 10)), keyspace.SetOptions{Expiry: keyspace.Expiry{Kind: keyspace.ExpiryKeepTTL}})
	return resp.Integer(next)
}
