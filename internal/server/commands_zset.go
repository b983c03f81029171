package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/coolcache/coolcache/internal/keyspace"
	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("ZADD", CommandSpec{Handler: cmdZAdd, MinArity: 4, MaxArity: -1, IsWrite: true})
	register("ZRANGE", CommandSpec{Handler: cmdZRange, MinArity: 4, MaxArity: 5})
	register("ZRANGEBYSCORE", CommandSpec{Handler: cmdZRangeByScore, MinArity: 4, MaxArity: 5})
	register("ZRANK", CommandSpec{Handler: cmdZRank, MinArity: 3, MaxArity: 3})
	register("ZSCORE", CommandSpec{Handler: cmdZScore, MinArity: 3, MaxArity: 3})
	register("ZREM", CommandSpec{Handler: cmdZRem, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("ZCARD", CommandSpec{Handler: cmdZCard, MinArity: 2, MaxArity: 2})
}

// formatScore renders a score the way Redis does: shortest representation
// that round-trips the double.
func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func cmdZAdd(s *Server, c *Client, args []string) *resp.Frame {
	var nx, xx bool
	i := 2
flags:
	for ; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		default:
			break flags
		}
	}
	if nx && xx {
		return resp.Err("ERR XX and NX options at the same time are not compatible")
	}
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Err("ERR syntax error")
	}
	added := 0
	for j := 0; j < len(rest); j += 2 {
		score, err := strconv.ParseFloat(rest[j], 64)
		if err != nil {
			return resp.Err("ERR value is not a valid float")
		}
		wasNew, kerr := s.KS.ZAdd(args[1], rest[j+1], score, nx, xx)
		if kerr != nil {
			return errReply(kerr)
		}
		if wasNew {
			added++
		}
	}
	return resp.Integer(int64(added))
}

func cmdZRange(s *Server, c *Client, args []string) *resp.Frame {
	start, err1 := strconv.Atoi(args[2])
	end, err2 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	withScores, errf := parseWithScores(args[4:])
	if errf != nil {
		return errf
	}
	members, err := s.KS.ZRange(args[1], start, end)
	if err != nil {
		return errReply(err)
	}
	return zMembersReply(members, withScores)
}

func cmdZRangeByScore(s *Server, c *Client, args []string) *resp.Frame {
	min, err1 := parseScoreBound(args[2])
	max, err2 := parseScoreBound(args[3])
	if err1 != nil || err2 != nil {
		return resp.Err("ERR min or max is not a float")
	}
	withScores, errf := parseWithScores(args[4:])
	if errf != nil {
		return errf
	}
	members, err := s.KS.ZRangeByScore(args[1], min, max)
	if err != nil {
		return errReply(err)
	}
	return zMembersReply(members, withScores)
}

// parseScoreBound accepts -inf/+inf and plain floats. Exclusive "(" bounds
// are not part of the supported subset.
func parseScoreBound(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "-inf":
		return math.Inf(-1), nil
	case "+inf", "inf":
		return math.Inf(1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseWithScores(extra []string) (bool, *resp.Frame) {
	if len(extra) == 0 {
		return false, nil
	}
	if strings.EqualFold(extra[0], "WITHSCORES") {
		return true, nil
	}
	return false, resp.Err("ERR syntax error")
}

func zMembersReply(members []keyspace.ZMember, withScores bool) *resp.Frame {
	var items []*resp.Frame
	for _, m := range members {
		items = append(items, resp.BulkString(m.Member))
		if withScores {
			items = append(items, resp.BulkString(formatScore(m.Score)))
		}
	}
	return resp.Array(items...)
}

func cmdZRank(s *Server, c *Client, args []string) *resp.Frame {
	rank, ok, err := s.KS.ZRank(args[1], args[2])
	if err != nil {
		return errReply(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Integer(int64(rank))
}

func cmdZScore(s *Server, c *Client, args []string) *resp.Frame {
	score, ok, err := s.KS.ZScore(args[1], args[2])
	if err != nil {
		return errReply(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.BulkString(formatScore(score))
}

func cmdZRem(s *Server, c *Client, args []string) *resp.Frame {
	removed := 0
	for _, member := range args[2:] {
		ok, err := s.KS.ZRem(args[1], member)
		if err != nil {
			return errReply(err)
		}
		if ok {
			removed++
		}
	}
	return resp.Integer(int64(removed))
}

func cmdZCard(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.ZCard(args[1]))
}
