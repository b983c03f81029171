package server

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/coolcache/coolcache/internal/rdb"
	"github.com/coolcache/coolcache/internal/replication"
	"github.com/coolcache/coolcache/internal/resp"
)

// StartFollower dials the leader, runs the PSYNC handshake, seeds the
// keyspace from the transferred snapshot, and spawns the apply loop that
// keeps ingesting the leader's write stream. It returns once the initial
// sync has completed, so callers can start accepting clients with a warm
// keyspace.
func (s *Server) StartFollower(leaderAddr string) error {
	conn, err := net.Dial("tcp", leaderAddr)
	if err != nil {
		return fmt.Errorf("follower: dial leader %s: %w", leaderAddr, err)
	}

	state, rdbPayload, err := replication.Handshake(conn, s.Cfg.Port)
	if err != nil {
		conn.Close()
		return err
	}
	s.Follower = state

	records, err := rdb.Load(bytes.NewReader(rdbPayload))
	if err != nil {
		s.Log.Warn("follower: leader snapshot unreadable, starting empty", "err", err)
	} else {
		s.KS.Load(records)
	}
	s.Log.Info("follower: full resync complete",
		"leader", leaderAddr, "replid", state.LeaderReplID, "offset", state.Offset, "keys", len(records))

	go s.runFollowerApply(conn, state)
	return nil
}

// runFollowerApply drains the replication stream until the leader
// connection drops. Writes are applied against the keyspace exactly as a
// client command would be, but through a connection that discards replies.
func (s *Server) runFollowerApply(conn net.Conn, state *replication.FollowerState) {
	defer conn.Close()

	shadow := &Client{
		state:    StateReplicaInbound,
		conn:     discardConn{},
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
		CreatedAt: time.Now(),
	}

	err := state.ApplyLoop(bufio.NewReader(conn), func(args []string) error {
		if strings.EqualFold(args[0], "REPLCONF") && len(args) >= 2 && strings.EqualFold(args[1], "GETACK") {
			ack := resp.EncodeCommand([]string{"REPLCONF", "ACK", strconv.FormatInt(state.Offset, 10)})
			_, werr := conn.Write(ack)
			return werr
		}
		if strings.EqualFold(args[0], "PING") {
			// keepalive from the leader; counts toward the offset, applies nothing
			return nil
		}
		reply, _ := s.execute(shadow, args)
		if reply != nil && reply.Type == resp.TypeError {
			s.Log.Warn("follower: replicated command failed", "cmd", args[0], "err", reply.Str)
		}
		return nil
	})
	s.Log.Error("follower: replication link lost", "err", err)
}

// discardConn satisfies net.Conn for the follower's shadow client: every
// reply a replicated command produces is swallowed, per the rule that the
// follower applies writes without reply emission.
type discardConn struct{}

func (discardConn) Read(b []byte) (int, error)         { return 0, fmt.Errorf("discardConn: not readable") }
func (discardConn) Write(b []byte) (int, error)        { return len(b), nil }
func (discardConn) Close() error                       { return nil }
func (discardConn) LocalAddr() net.Addr                { return discardAddr{} }
func (discardConn) RemoteAddr() net.Addr               { return discardAddr{} }
func (discardConn) SetDeadline(t time.Time) error      { return nil }
func (discardConn) SetReadDeadline(t time.Time) error  { return nil }
func (discardConn) SetWriteDeadline(t time.Time) error { return nil }

type discardAddr struct{}

func (discardAddr) Network() string { return "discard" }
func (discardAddr) String() string  { return "discard" }
