package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/coolcache/coolcache/internal/resp"
	"github.com/coolcache/coolcache/internal/streams"
)

func init() {
	register("XADD", CommandSpec{Handler: cmdXAdd, MinArity: 5, MaxArity: -1, IsWrite: true})
	register("XRANGE", CommandSpec{Handler: cmdXRange, MinArity: 4, MaxArity: 4})
	register("XREAD", CommandSpec{Handler: cmdXRead, MinArity: 4, MaxArity: -1})
}

func cmdXAdd(s *Server, c *Client, args []string) *resp.Frame {
	if (len(args)-3)%2 != 0 {
		return resp.Err("ERR wrong number of arguments for 'xadd' command")
	}
	fields := make([]streams.Field, 0, (len(args)-3)/2)
	for i := 3; i < len(args); i += 2 {
		fields = append(fields, streams.Field{Name: []byte(args[i]), Value: []byte(args[i+1])})
	}
	id, err := s.KS.XAdd(args[1], args[2], fields, time.Now().UnixMilli())
	if err != nil {
		return errReply(err)
	}
	s.Waiters.Notify(args[1])
	return resp.BulkString(id.String())
}

func cmdXRange(s *Server, c *Client, args []string) *resp.Frame {
	start, err := streams.ParseRangeBound(args[2], true)
	if err != nil {
		return errReply(err)
	}
	end, err := streams.ParseRangeBound(args[3], false)
	if err != nil {
		return errReply(err)
	}
	entries, err := s.KS.XRange(args[1], start, end)
	if err != nil {
		return errReply(err)
	}
	return entriesReply(entries)
}

func entriesReply(entries []streams.Entry) *resp.Frame {
	items := make([]*resp.Frame, len(entries))
	for i, e := range entries {
		fv := make([]*resp.Frame, 0, len(e.Fields)*2)
		for _, f := range e.Fields {
			fv = append(fv, resp.Bulk(f.Name), resp.Bulk(f.Value))
		}
		items[i] = resp.Array(resp.BulkString(e.ID.String()), resp.Array(fv...))
	}
	return resp.Array(items...)
}

// cmdXRead parses XREAD [BLOCK ms] STREAMS key... id... and, when BLOCK is
// present and no stream has anything after its cursor, parks the connection
// on each named stream's waiter list until an XADD wakes it or the timeout
// elapses. BLOCK 0 waits indefinitely.
func cmdXRead(s *Server, c *Client, args []string) *resp.Frame {
	i := 1
	blocking := false
	var blockMs int64
	if strings.EqualFold(args[i], "BLOCK") {
		if i+1 >= len(args) {
			return resp.Err("ERR syntax error")
		}
		ms, err := strconv.ParseInt(args[i+1], 10, 64)
		if err != nil || ms < 0 {
			return resp.Err("ERR timeout is not an integer or out of range")
		}
		blocking = true
		blockMs = ms
		i += 2
	}
	if i >= len(args) || !strings.EqualFold(args[i], "STREAMS") {
		return resp.Err("ERR syntax error")
	}
	i++
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Err("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := rest[:n]
	cursors := make([]streams.ID, n)
	for j, spec := range rest[n:] {
		if spec == "$" {
			last, err := s.KS.LastStreamID(keys[j])
			if err != nil {
				return errReply(err)
			}
			cursors[j] = last
			continue
		}
		id, err := streams.ParseID(spec)
		if err != nil {
			return errReply(err)
		}
		cursors[j] = id
	}

	if reply, found, err := collectXRead(s, keys, cursors); err != nil {
		return errReply(err)
	} else if found {
		return reply
	}
	if !blocking {
		return resp.NullArray()
	}

	var deadline <-chan time.Time
	if blockMs > 0 {
		timer := time.NewTimer(time.Duration(blockMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		w := s.Waiters.Register(keys...)
		// Re-check after registering: an XADD may have landed between the
		// first pass and the registration.
		reply, found, err := collectXRead(s, keys, cursors)
		if err != nil || found {
			s.Waiters.Unregister(w, keys...)
			if err != nil {
				return errReply(err)
			}
			return reply
		}
		select {
		case <-w.C:
		case <-deadline:
			s.Waiters.Unregister(w, keys...)
			return resp.NullArray()
		}
		s.Waiters.Unregister(w, keys...)
	}
}

// collectXRead does one non-blocking pass over every (key, cursor) pair.
// found is true when at least one stream had entries past its cursor.
func collectXRead(s *Server, keys []string, cursors []streams.ID) (*resp.Frame, bool, error) {
	var items []*resp.Frame
	for j, key := range keys {
		entries, err := s.KS.XReadAfter(key, cursors[j])
		if err != nil {
			return nil, false, err
		}
		if len(entries) == 0 {
			continue
		}
		items = append(items, resp.Array(resp.BulkString(key), entriesReply(entries)))
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return resp.Array(items...), true, nil
}
