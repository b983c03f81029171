package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coolcache/coolcache/internal/replication"
	"github.com/coolcache/coolcache/internal/resp"
)

// ConnState is the connection's position in CommandDispatcher's state
// machine: Normal, Subscribed, or one of the two replication roles.
type ConnState int

const (
	StateNormal ConnState = iota
	StateSubscribed
	StateReplicaLeader  // this connection is a replica we feed
	StateReplicaInbound // we are the follower reading from a leader on this connection
)

// Client is CoolCache's per-connection context: identity for CLIENT LIST,
// subscription state for PubSubHub, and (when promoted) the leader-side
// replication handle.
type Client struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	LastCmd   string

	conn    net.Conn
	writeMu sync.Mutex

	state    ConnState
	channels map[string]struct{}
	patterns map[string]struct{}

	replListenPort int
	replica        *replication.Replica
}

func newClient(conn net.Conn) *Client {
	return &Client{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		conn:      conn,
		channels:  make(map[string]struct{}),
		patterns:  make(map[string]struct{}),
	}
}

func (c *Client) Addr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// write sends a single reply frame, serializing concurrent writers (a
// pub/sub push and a command reply can race on the same connection).
func (c *Client) write(f *resp.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(resp.Encode(nil, f))
	return err
}

func (c *Client) writeRaw(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// Deliver implements pubsub.Subscriber: it pushes a "message"/"pmessage"
// frame to this connection, the shape real RESP clients expect for
// subscribed-mode pushes.
func (c *Client) Deliver(channel, pattern, payload string) {
	var f *resp.Frame
	if pattern == "" {
		f = resp.ArrayOfBulkStrings([]string{"message", channel, payload})
	} else {
		f = resp.ArrayOfBulkStrings([]string{"pmessage", pattern, channel, payload})
	}
	_ = c.write(f)
}

func (c *Client) subscribedCount() int {
	return len(c.channels) + len(c.patterns)
}

func (c *Client) Info() string {
	return fmt.Sprintf("id=%s addr=%s name=%s age=%d cmd=%s",
		c.ID, c.Addr(), c.Name, int(time.Since(c.CreatedAt).Seconds()), c.LastCmd)
}
