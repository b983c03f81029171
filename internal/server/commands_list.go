package server

import (
	"strconv"

	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("LPUSH", CommandSpec{Handler: cmdLPush, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("RPUSH", CommandSpec{Handler: cmdRPush, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("LPOP", CommandSpec{Handler: cmdLPop, MinArity: 2, MaxArity: 3, IsWrite: true})
	register("RPOP", CommandSpec{Handler: cmdRPop, MinArity: 2, MaxArity: 3, IsWrite: true})
	register("LRANGE", CommandSpec{Handler: cmdLRange, MinArity: 4, MaxArity: 4})
	register("LLEN", CommandSpec{Handler: cmdLLen, MinArity: 2, MaxArity: 2})
	register("LINDEX", CommandSpec{Handler: cmdLIndex, MinArity: 3, MaxArity: 3})
	register("LSET", CommandSpec{Handler: cmdLSet, MinArity: 4, MaxArity: 4, IsWrite: true})
}

func listValues(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}

func cmdLPush(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.LPush(args[1], listValues(args[2:])...))
}

func cmdRPush(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.RPush(args[1], listValues(args[2:])...))
}

func cmdLPop(s *Server, c *Client, args []string) *resp.Frame {
	return popReply(args, s.KS.LPop)
}

func cmdRPop(s *Server, c *Client, args []string) *resp.Frame {
	return popReply(args, s.KS.RPop)
}

// popReply handles the one-argument and COUNT forms of LPOP/RPOP: without a
// count the reply is a single bulk string (or nil), with one it is an array.
func popReply(args []string, pop func(string, int) ([][]byte, error)) *resp.Frame {
	count := 1
	withCount := len(args) == 3
	if withCount {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return resp.Err("ERR value is out of range, must be positive")
		}
		count = n
	}
	popped, err := pop(args[1], count)
	if err != nil {
		return errReply(err)
	}
	if !withCount {
		if len(popped) == 0 {
			return resp.NullBulk()
		}
		return resp.Bulk(popped[0])
	}
	if len(popped) == 0 {
		return resp.NullArray()
	}
	return bytesArray(popped)
}

func cmdLRange(s *Server, c *Client, args []string) *resp.Frame {
	start, err1 := strconv.Atoi(args[2])
	end, err2 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	items, err := s.KS.LRange(args[1], start, end)
	if err != nil {
		return errReply(err)
	}
	return bytesArray(items)
}

func cmdLLen(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.LLen(args[1]))
}

func cmdLIndex(s *Server, c *Client, args []string) *resp.Frame {
	idx, err := strconv.Atoi(args[2])
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	return bulkOrNil(s.KS.LIndex(args[1], idx))
}

func cmdLSet(s *Server, c *Client, args []string) *resp.Frame {
	idx, err := strconv.Atoi(args[2])
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	return okOrErr(s.KS.LSet(args[1], idx, []byte(args[3])))
}
