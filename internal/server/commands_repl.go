package server

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/coolcache/coolcache/internal/rdb"
	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("REPLCONF", CommandSpec{Handler: cmdReplConf, MinArity: 2, MaxArity: -1})
	register("PSYNC", CommandSpec{Handler: cmdPSync, MinArity: 3, MaxArity: 3})
	register("WAIT", CommandSpec{Handler: cmdWait, MinArity: 3, MaxArity: 3})
}

func cmdReplConf(s *Server, c *Client, args []string) *resp.Frame {
	switch strings.ToLower(args[1]) {
	case "listening-port":
		if len(args) < 3 {
			return resp.Err("ERR wrong number of arguments for 'replconf' command")
		}
		if port, err := strconv.Atoi(args[2]); err == nil {
			c.replListenPort = port
		}
		return resp.Simple("OK")
	case "capa":
		return resp.Simple("OK")
	case "getack":
		// Solicited over the replication link; a follower answers from its
		// apply loop, not here. From a regular client it is a syntax error.
		return resp.Err("ERR REPLCONF GETACK is only valid on a replication link")
	case "ack":
		// ACKs carry no reply. Pre-promotion ACKs (between FULLRESYNC and
		// the replica feed taking over the socket) are simply dropped.
		return nil
	default:
		return resp.Simple("OK")
	}
}

// cmdPSync performs the leader side of the resync decision: +CONTINUE with
// the backlog tail when the requested (replid, offset) still falls inside
// the window, +FULLRESYNC with a fresh RDB dump otherwise. Either way the
// connection is promoted to a replica feed.
func cmdPSync(s *Server, c *Client, args []string) *resp.Frame {
	requestedReplID := args[1]
	requestedOffset, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		requestedOffset = -1
	}

	if partial, tail := s.Leader.ResolvePSYNC(requestedReplID, requestedOffset); partial {
		if werr := c.writeRaw([]byte("+CONTINUE " + s.Leader.ReplID + "\r\n")); werr != nil {
			return nil
		}
		if len(tail) > 0 {
			_ = c.writeRaw(tail)
		}
		s.promoteToReplica(c)
		return nil
	}

	offset := s.Leader.Backlog.Offset()
	if werr := c.writeRaw([]byte(fmt.Sprintf("+FULLRESYNC %s %d\r\n", s.Leader.ReplID, offset))); werr != nil {
		return nil
	}

	var dump bytes.Buffer
	if werr := rdb.Write(&dump, s.KS.Snapshot()); werr != nil {
		s.Log.Error("psync: rdb snapshot failed", "err", werr)
		_ = c.conn.Close()
		return nil
	}
	payload := dump.Bytes()
	framed := append([]byte(fmt.Sprintf("$%d\r\n", len(payload))), payload...)
	if werr := c.writeRaw(framed); werr != nil {
		return nil
	}

	s.promoteToReplica(c)
	return nil
}

func (s *Server) promoteToReplica(c *Client) {
	c.replica = s.Leader.Attach(&lockedConnWriter{c: c}, c.replListenPort)
	c.state = StateReplicaLeader
	s.Metrics.SetReplicas(s.Leader.Count())
	s.Log.Info("replica attached", "client", c.ID, "addr", c.Addr(), "listening_port", c.replListenPort)
}

// lockedConnWriter routes Propagate's writes through the client's write
// mutex so a propagated frame can never interleave with the RDB payload or
// a GETACK solicitation.
type lockedConnWriter struct {
	c *Client
}

func (w *lockedConnWriter) Write(p []byte) (int, error) {
	if err := w.c.writeRaw(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// cmdWait is a no-op in this subset: the leader never blocks a client on
// replica acknowledgements.
func cmdWait(s *Server, c *Client, args []string) *resp.Frame {
	return resp.Integer(0)
}
