// Package server implements CoolCache's ConnectionLoop and
// CommandDispatcher: it owns every subsystem (keyspace, pub/sub hub,
// stream waiters, snapshot manager, replication state) and drives each
// accepted connection through read -> decode -> dispatch -> encode -> flush.
package server

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coolcache/coolcache/internal/config"
	"github.com/coolcache/coolcache/internal/keyspace"
	"github.com/coolcache/coolcache/internal/metrics"
	"github.com/coolcache/coolcache/internal/pubsub"
	"github.com/coolcache/coolcache/internal/rdbcompat"
	"github.com/coolcache/coolcache/internal/replication"
	"github.com/coolcache/coolcache/internal/resp"
	"github.com/coolcache/coolcache/internal/snapshot"
	"github.com/coolcache/coolcache/internal/streams"
)

// Server wires together every CoolCache subsystem and is the single value
// each connection's dispatch loop reads and writes through.
type Server struct {
	Cfg *config.Config
	Log *slog.Logger

	KS      *keyspace.Keyspace
	Hub     *pubsub.Hub
	Waiters *streams.Waiters
	Snap    *snapshot.Manager
	Metrics *metrics.Metrics

	Leader   *replication.LeaderState
	Follower *replication.FollowerState // non-nil once this instance has completed a follower handshake

	startTime time.Time

	clientsMu sync.Mutex
	clients   map[*Client]struct{}

	doneCh chan struct{}
}

func New(cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Cfg:       cfg,
		Log:       log,
		KS:        keyspace.New(),
		Hub:       pubsub.New(),
		Waiters:   streams.NewWaiters(),
		Snap:      snapshot.New(cfg.RDBPath(), cfg.Save, log),
		Metrics:   metrics.New(),
		Leader:    replication.NewLeaderState(cfg.ReplBacklogBytes),
		startTime: time.Now(),
		clients:   make(map[*Client]struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Bootstrap loads the on-disk RDB file (or a best-effort rdbcompat import
// when --import-rdb is set) and starts the auto-save ticker. Call once
// before accepting connections.
func (s *Server) Bootstrap() error {
	if s.Cfg.ImportRDBPath != "" {
		records, err := rdbcompat.Import(s.Cfg.ImportRDBPath)
		if err != nil {
			s.Log.Warn("rdbcompat import failed, starting empty", "path", s.Cfg.ImportRDBPath, "err", err)
		} else {
			s.KS.Load(records)
			s.Log.Info("imported rdb via rdbcompat", "path", s.Cfg.ImportRDBPath, "keys", len(records))
		}
	} else if err := s.Snap.Load(s.KS); err != nil {
		return err
	}

	go s.Snap.RunAutoSave(s.KS, time.Second, s.doneCh)
	return nil
}

func (s *Server) Shutdown() {
	close(s.doneCh)
}

// Serve accepts connections on ln until the listener is closed, spawning a
// ConnectionLoop goroutine per client. Connections beyond MaxConns are
// refused with a RESP error before any command is read.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.doneCh:
				return nil
			default:
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		s.clientsMu.Lock()
		full := len(s.clients) >= s.Cfg.MaxConns
		s.clientsMu.Unlock()
		if full {
			_, _ = conn.Write(resp.Encode(nil, resp.Err("ERR max number of clients reached")))
			conn.Close()
			continue
		}

		go s.ConnectionLoop(conn)
	}
}

func (s *Server) addClient(c *Client) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.Metrics.SetConnections(len(s.clients))
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(c *Client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.Metrics.SetConnections(len(s.clients))
	s.clientsMu.Unlock()
}

// Clients returns a snapshot of currently connected clients, for CLIENT
// LIST.
func (s *Server) Clients() []*Client {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	out := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

// ConnectionLoop is the per-connection driver: read -> decode -> dispatch
// -> encode-reply -> flush. It returns when the peer disconnects or sends
// an unrecoverable protocol error.
func (s *Server) ConnectionLoop(conn net.Conn) {
	defer conn.Close()

	c := newClient(conn)
	s.addClient(c)
	defer s.cleanupClient(c)

	var buf []byte
	readChunk := make([]byte, 16*1024)

	for {
		frame, n, err := resp.Decode(buf)
		if err == resp.ErrIncomplete {
			read, rerr := conn.Read(readChunk)
			if read > 0 {
				buf = append(buf, readChunk[:read]...)
			}
			if rerr != nil {
				return
			}
			continue
		}
		if err != nil {
			_ = c.write(resp.Err(fmt.Sprintf("ERR Protocol error: %v", err)))
			return
		}
		rawFrame := append([]byte(nil), buf[:n]...)
		buf = buf[n:]

		args, err := frame.Strings()
		if err != nil || len(args) == 0 {
			continue
		}

		if c.state == StateReplicaInbound {
			// not reached: follower connections run their own apply loop
			// (internal/replication.FollowerState.ApplyLoop), never this path.
			continue
		}

		s.dispatch(c, args, rawFrame)

		if c.state == StateReplicaLeader {
			// PSYNC just promoted this connection; stop reading client
			// commands on it and let replication writes own the socket.
			s.runReplicaFeed(c)
			return
		}
	}
}

func (s *Server) dispatch(c *Client, args []string, rawFrame []byte) {
	name := strings.ToUpper(args[0])
	c.LastCmd = name

	if c.state == StateSubscribed && !allowedWhileSubscribed[name] {
		_ = c.write(resp.Err("ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT allowed in this context"))
		return
	}

	reply, wrote := s.execute(c, args)
	if wrote {
		return
	}
	if reply != nil {
		_ = c.write(reply)
	}

	if spec, ok := lookup(name); ok && spec.IsWrite && reply.Type != resp.TypeError {
		s.Leader.Propagate(rawFrame)
	}
}

// execute runs one command's handler, enforcing arity. wrote is true when
// the handler already wrote its own reply (SUBSCRIBE's multi-frame
// replies, PSYNC's raw framing) and dispatch must not write reply again.
func (s *Server) execute(c *Client, args []string) (reply *resp.Frame, wrote bool) {
	name := strings.ToUpper(args[0])
	spec, ok := lookup(name)
	if !ok {
		return resp.Err(fmt.Sprintf("ERR unknown command '%s'", args[0])), false
	}
	n := len(args)
	if n < spec.MinArity || (spec.MaxArity >= 0 && n > spec.MaxArity) {
		return resp.Err(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(args[0]))), false
	}

	start := time.Now()
	reply = spec.Handler(s, c, args)
	s.Metrics.ObserveCommand(name, time.Since(start).Seconds(), reply != nil && reply.Type == resp.TypeError)
	return reply, replyAlreadySent(reply)
}

// replyAlreadySent is a marker some handlers use (SUBSCRIBE, PSYNC) that
// write their own frames directly and return nil so dispatch skips the
// normal single-reply write.
func replyAlreadySent(reply *resp.Frame) bool {
	return reply == nil
}

func (s *Server) cleanupClient(c *Client) {
	s.removeClient(c)
	s.Hub.UnsubscribeAll(keysOf(c.channels), keysOf(c.patterns), c)
	if c.replica != nil {
		s.Leader.Detach(c.replica)
		s.Metrics.SetReplicas(s.Leader.Count())
	}
}

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// runReplicaFeed keeps a promoted replica connection alive so
// LeaderState.Propagate's writes and REPLCONF ACK reads can continue until
// the connection drops.
func (s *Server) runReplicaFeed(c *Client) {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		frame, n, err := resp.Decode(pending)
		if err == resp.ErrIncomplete {
			read, rerr := c.conn.Read(buf)
			if read > 0 {
				pending = append(pending, buf[:read]...)
			}
			if rerr != nil {
				return
			}
			continue
		}
		if err != nil {
			return
		}
		pending = pending[n:]
		args, err := frame.Strings()
		if err == nil && len(args) >= 3 && strings.EqualFold(args[0], "REPLCONF") && strings.EqualFold(args[1], "ACK") {
			if off, perr := strconv.ParseInt(args[2], 10, 64); perr == nil {
				c.replica.SetAck(off)
			}
		}
	}
}

func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
