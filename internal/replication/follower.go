package replication

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/coolcache/coolcache/internal/resp"
)

// FollowerState tracks this instance's view of its leader while it is
// replicating: the leader's replication ID and the byte offset this
// follower has applied so far, the value it reports back in REPLCONF ACK.
type FollowerState struct {
	LeaderReplID string
	Offset       int64
}

// Handshake performs the PING / REPLCONF / PSYNC exchange against an
// already-dialed leader connection, returning the parsed FULLRESYNC reply
// and the raw RDB payload that follows it. listeningPort is this
// follower's own accept port, advertised so the leader can show it in
// INFO's slaveN lines.
func Handshake(conn net.Conn, listeningPort int) (*FollowerState, []byte, error) {
	r := bufio.NewReader(conn)

	if err := sendCommand(conn, "PING"); err != nil {
		return nil, nil, err
	}
	if _, err := readSimpleReply(r); err != nil {
		return nil, nil, fmt.Errorf("replication: handshake PING: %w", err)
	}

	if err := sendCommand(conn, "REPLCONF", "listening-port", strconv.Itoa(listeningPort)); err != nil {
		return nil, nil, err
	}
	if _, err := readSimpleReply(r); err != nil {
		return nil, nil, fmt.Errorf("replication: handshake REPLCONF listening-port: %w", err)
	}

	if err := sendCommand(conn, "REPLCONF", "capa", "psync2"); err != nil {
		return nil, nil, err
	}
	if _, err := readSimpleReply(r); err != nil {
		return nil, nil, fmt.Errorf("replication: handshake REPLCONF capa: %w", err)
	}

	if err := sendCommand(conn, "PSYNC", "?", "-1"); err != nil {
		return nil, nil, err
	}
	line, err := readSimpleReply(r)
	if err != nil {
		return nil, nil, fmt.Errorf("replication: handshake PSYNC: %w", err)
	}

	state, err := parseFullResync(line)
	if err != nil {
		return nil, nil, err
	}

	rdbPayload, err := readRDBPayload(r)
	if err != nil {
		return nil, nil, fmt.Errorf("replication: reading RDB payload: %w", err)
	}

	return state, rdbPayload, nil
}

func sendCommand(w io.Writer, args ...string) error {
	_, err := w.Write(resp.EncodeCommand(args))
	return err
}

// readSimpleReply reads one line reply (+OK, +PONG, +FULLRESYNC ...,
// -ERR ...) and returns its text with the leading +/- stripped.
func readSimpleReply(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return "", fmt.Errorf("replication: empty reply line")
	}
	if line[0] == '-' {
		return "", fmt.Errorf("replication: leader error: %s", line[1:])
	}
	if line[0] == '+' {
		return line[1:], nil
	}
	return line, nil
}

// parseFullResync parses "FULLRESYNC <replid> <offset>".
func parseFullResync(line string) (*FollowerState, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return nil, fmt.Errorf("replication: unexpected PSYNC reply %q", line)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("replication: bad FULLRESYNC offset %q: %w", fields[2], err)
	}
	return &FollowerState{LeaderReplID: fields[1], Offset: offset}, nil
}

// readRDBPayload reads the "$<len>\r\n<bytes>" framing the leader uses to
// send its snapshot — unlike a bulk string reply, there is no trailing
// CRLF after the payload bytes.
func readRDBPayload(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != '$' {
		return nil, fmt.Errorf("replication: expected RDB length header, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("replication: bad RDB length %q: %w", line[1:], err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ApplyLoop decodes RESP command frames from r (the ongoing replication
// stream after the initial RDB) and invokes apply for each, advancing
// Offset by each frame's encoded byte length. apply is called before the
// offset is advanced, so a REPLCONF GETACK handler observing f.Offset
// reports the bytes applied up to but not including the GETACK frame
// itself. It returns when r is closed or apply returns an error.
func (f *FollowerState) ApplyLoop(r *bufio.Reader, apply func(args []string) error) error {
	var pending []byte
	chunk := make([]byte, 4096)
	for {
		frame, n, err := resp.Decode(pending)
		if err == resp.ErrIncomplete {
			read, rerr := r.Read(chunk)
			if read > 0 {
				pending = append(pending, chunk[:read]...)
			}
			if rerr != nil {
				return rerr
			}
			continue
		}
		if err != nil {
			return err
		}
		args, err := frame.Strings()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			if err := apply(args); err != nil {
				return err
			}
		}
		f.Offset += int64(n)
		pending = pending[n:]
	}
}
