package server

import "github.com/coolcache/coolcache/internal/resp"

func init() {
	register("SADD", CommandSpec{Handler: cmdSAdd, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("SREM", CommandSpec{Handler: cmdSRem, MinArity: 3, MaxArity: -1, IsWrite: true})
	register("SMEMBERS", CommandSpec{Handler: cmdSMembers, MinArity: 2, MaxArity: 2})
	register("SISMEMBER", CommandSpec{Handler: cmdSIsMember, MinArity: 3, MaxArity: 3})
	register("SCARD", CommandSpec{Handler: cmdSCard, MinArity: 2, MaxArity: 2})
}

func cmdSAdd(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.SAdd(args[1], listValues(args[2:])...))
}

func cmdSRem(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.SRem(args[1], listValues(args[2:])...))
}

func cmdSMembers(s *Server, c *Client, args []string) *resp.Frame {
	members, err := s.KS.SMembers(args[1])
	if err != nil {
		return errReply(err)
	}
	return bulkStringsArray(members)
}

func cmdSIsMember(s *Server, c *Client, args []string) *resp.Frame {
	ok, err := s.KS.SIsMember(args[1], []byte(args[2]))
	if err != nil {
		return errReply(err)
	}
	if ok {
		return resp.Integer(1)
	}
	return resp.Integer(0)
}

func cmdSCard(s *Server, c *Client, args []string) *resp.Frame {
	return intOrErr(s.KS.SCard(args[1]))
}
