package server

import (
	"strings"

	"github.com/coolcache/coolcache/internal/resp"
)

func init() {
	register("SUBSCRIBE", CommandSpec{Handler: cmdSubscribe, MinArity: 2, MaxArity: -1})
	register("UNSUBSCRIBE", CommandSpec{Handler: cmdUnsubscribe, MinArity: 1, MaxArity: -1})
	register("PSUBSCRIBE", CommandSpec{Handler: cmdPSubscribe, MinArity: 2, MaxArity: -1})
	register("PUNSUBSCRIBE", CommandSpec{Handler: cmdPUnsubscribe, MinArity: 1, MaxArity: -1})
	register("PUBLISH", CommandSpec{Handler: cmdPublish, MinArity: 3, MaxArity: 3})
	register("PUBSUB", CommandSpec{Handler: cmdPubSub, MinArity: 2, MaxArity: -1})
}

func subscriptionFrame(kind, subject string, count int) *resp.Frame {
	var subjectFrame *resp.Frame
	if subject == "" {
		subjectFrame = resp.NullBulk()
	} else {
		subjectFrame = resp.BulkString(subject)
	}
	return resp.Array(resp.BulkString(kind), subjectFrame, resp.Integer(int64(count)))
}

func (c *Client) updateSubscribedState() {
	if c.subscribedCount() > 0 {
		c.state = StateSubscribed
	} else if c.state == StateSubscribed {
		c.state = StateNormal
	}
}

// cmdSubscribe emits one confirmation frame per channel and flips the
// connection into subscribed mode. Re-subscribing an already-held channel
// is a no-op on the hub but still gets its confirmation frame.
func cmdSubscribe(s *Server, c *Client, args []string) *resp.Frame {
	for _, ch := range args[1:] {
		s.Hub.Subscribe(ch, c)
		c.channels[ch] = struct{}{}
		_ = c.write(subscriptionFrame("subscribe", ch, c.subscribedCount()))
	}
	c.updateSubscribedState()
	return nil
}

func cmdUnsubscribe(s *Server, c *Client, args []string) *resp.Frame {
	targets := args[1:]
	if len(targets) == 0 {
		targets = keysOf(c.channels)
	}
	if len(targets) == 0 {
		_ = c.write(subscriptionFrame("unsubscribe", "", 0))
		return nil
	}
	for _, ch := range targets {
		s.Hub.Unsubscribe(ch, c)
		delete(c.channels, ch)
		_ = c.write(subscriptionFrame("unsubscribe", ch, c.subscribedCount()))
	}
	c.updateSubscribedState()
	return nil
}

func cmdPSubscribe(s *Server, c *Client, args []string) *resp.Frame {
	for _, pat := range args[1:] {
		s.Hub.PSubscribe(pat, c)
		c.patterns[pat] = struct{}{}
		_ = c.write(subscriptionFrame("psubscribe", pat, c.subscribedCount()))
	}
	c.updateSubscribedState()
	return nil
}

func cmdPUnsubscribe(s *Server, c *Client, args []string) *resp.Frame {
	targets := args[1:]
	if len(targets) == 0 {
		targets = keysOf(c.patterns)
	}
	if len(targets) == 0 {
		_ = c.write(subscriptionFrame("punsubscribe", "", 0))
		return nil
	}
	for _, pat := range targets {
		s.Hub.PUnsubscribe(pat, c)
		delete(c.patterns, pat)
		_ = c.write(subscriptionFrame("punsubscribe", pat, c.subscribedCount()))
	}
	c.updateSubscribedState()
	return nil
}

func cmdPublish(s *Server, c *Client, args []string) *resp.Frame {
	return resp.Integer(int64(s.Hub.Publish(args[1], args[2])))
}

func cmdPubSub(s *Server, c *Client, args []string) *resp.Frame {
	switch strings.ToUpper(args[1]) {
	case "CHANNELS":
		pattern := ""
		if len(args) == 3 {
			pattern = args[2]
		}
		return resp.ArrayOfBulkStrings(s.Hub.Channels(pattern))
	case "NUMSUB":
		items := make([]*resp.Frame, 0, (len(args)-2)*2)
		for _, ch := range args[2:] {
			items = append(items, resp.BulkString(ch), resp.Integer(int64(s.Hub.NumSub(ch))))
		}
		return resp.Array(items...)
	case "NUMPAT":
		return resp.Integer(int64(s.Hub.NumPat()))
	default:
		return resp.Err("ERR Unknown PUBSUB subcommand or wrong number of arguments for '" + args[1] + "'")
	}
}
