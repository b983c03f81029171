package server

import "github.com/coolcache/coolcache/internal/resp"

func init() {
	register("HSET", CommandSpec{Handler: cmdHSet, MinArity: 4, MaxArity: -1, IsWrite: true})
	register("HGET", CommandSpec{Handler: cmdHGet, MinArity: 3, MaxArity: 3})
	register("HGETALL", CommandSpec{Handler: cmdHGetAll, MinArity: 2, MaxArity: 2})
	register("HDEL", CommandSpec{Handler: cmdHDel, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("HLEN", CommandSpec{Handler: cmdHLen, MinArity: 2, MaxArity: 2})
	register("HEXISTS", CommandSpec{Handler: cmdHExists, MinArity: 3, MaxArity: 3})
	register("HKEYS", CommandSpec{Handler: cmdHKeys, MinArity: 2, MaxArity: 2})
	register("HVALS", CommandSpec{Handler: cmdHVals, MinArity: 2, MaxArity: 2})
}

func cmdHSet(s *Server, c *Client, args []string) *resp.Frame {
	if (len(args)-2)%2 != 0 {
		return resp.Err("ERR wrong number of arguments for 'hset' command")
	}
	created := 0
	for i := 2; i < len(args); i += 2 {
		wasNew, err := s.KS.HSet(args[1], args[i], []byte(args[i+1]))
		if err != nil {
			return errReply(err)
		}
		if wasNew {
			created++
		}
	}
	return resp.Integer(int64(created))
}

func cmdHGet(s *Server, c *Client, args []string) *resp.Frame {
	return bulkOrNil(s.KS.HGet(args[1], args[2]))
}

func cmdHGetAll(s *Server, c *Client, args []string) *resp.Frame {
	fields, err := s.KS.HGetAll(args[1])
	if err != nil {
		return errReply(err)
	}
	items := make([]*resp.Frame, 0, len(fields)*2)
	for _, f := range fields {
		items = append(items, resp.BulkString(f.Field), resp.Bulk(f.Value))
	}
	return resp.Array(items...)
}

func cmdHDel(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.HDel(args[1], args[2:]...))
}

func cmdHLen(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.HLen(args[1]))
}

func cmdHExists(s *Server, c *Client, args []string) *resp.Frame {
	ok, err := s.KS.HExists(args[1], args[2])
	if err != nil {
		return errReply(err)
	}
	if ok {
		return resp.Integer(1)
	}
	return resp.Integer(0)
}

func cmdHKeys(s *Server, c *Client, args []string) *resp.Frame {
	keys, err := s.KS.HKeys(args[1])
	if err != nil {
		return errReply(err)
	}
	return bulkStringsArray(keys)
}

func cmdHVals(s *Server, c *Client, args []string) *resp.Frame {
	vals, err := s.KS.HVals(args[1])
	if err != nil {
		return errReply(err)
	}
	return bytesArray(vals)
}
