// Package pubsub implements CoolCache's channel and pattern subscription
// hub. Subscriptions are keyed by an opaque Subscriber so the server
// package stays the only thing that knows about connections.
package pubsub

import (
	"sync"

	"github.com/coolcache/coolcache/internal/glob"
)

// Subscriber is anything that can receive a published message. The server
// package's per-connection client type implements this by writing a RESP
// "message"/"pmessage" push frame.
type Subscriber interface {
	Deliver(channel, pattern, payload string)
}

// Hub tracks channel and pattern subscriptions and fans out PUBLISH calls
// to every matching subscriber.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Subscriber]struct{}
	patterns map[string]map[Subscriber]struct{}
}

func New() *Hub {
	return &Hub{
		channels: make(map[string]map[Subscriber]struct{}),
		patterns: make(map[string]map[Subscriber]struct{}),
	}
}

// Subscribe registers sub for channel, returning true if it was not already
// subscribed.
func (h *Hub) Subscribe(channel string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.channels[channel] = set
	}
	if _, already := set[sub]; already {
		return false
	}
	set[sub] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(channel string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		return false
	}
	if _, present := set[sub]; !present {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.channels, channel)
	}
	return true
}

func (h *Hub) PSubscribe(pattern string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.patterns[pattern]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.patterns[pattern] = set
	}
	if _, already := set[sub]; already {
		return false
	}
	set[sub] = struct{}{}
	return true
}

func (h *Hub) PUnsubscribe(pattern string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.patterns[pattern]
	if !ok {
		return false
	}
	if _, present := set[sub]; !present {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.patterns, pattern)
	}
	return true
}

// UnsubscribeAll removes sub from every channel and pattern it holds,
// called when a connection closes. Channels/patterns are supplied by the
// caller (the server tracks per-connection subscription sets) so the hub
// itself never needs to scan its full index.
func (h *Hub) UnsubscribeAll(channels, patterns []string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		if set, ok := h.channels[ch]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	for _, p := range patterns {
		if set, ok := h.patterns[p]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.patterns, p)
			}
		}
	}
}

// Publish delivers payload to every direct subscriber of channel and every
// pattern subscriber whose pattern matches channel, in that order. It
// returns the total number of subscribers reached, the value PUBLISH
// replies with.
func (h *Hub) Publish(channel, payload string) int {
	h.mu.RLock()
	var direct []Subscriber
	if set, ok := h.channels[channel]; ok {
		direct = make([]Subscriber, 0, len(set))
		for s := range set {
			direct = append(direct, s)
		}
	}
	type patMatch struct {
		pattern string
		sub     Subscriber
	}
	var viaPattern []patMatch
	for pattern, set := range h.patterns {
		if !glob.Match(pattern, channel) {
			continue
		}
		for s := range set {
			viaPattern = append(viaPattern, patMatch{pattern, s})
		}
	}
	h.mu.RUnlock()

	for _, s := range direct {
		s.Deliver(channel, "", payload)
	}
	for _, m := range viaPattern {
		m.sub.Deliver(channel, m.pattern, payload)
	}
	return len(direct) + len(viaPattern)
}

// Channels returns the active channel names matching pattern (or all of
// them, if pattern is empty), for PUBSUB CHANNELS.
func (h *Hub) Channels(pattern string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for ch, set := range h.channels {
		if len(set) == 0 {
			continue
		}
		if pattern == "" || glob.Match(pattern, ch) {
			out = append(out, ch)
		}
	}
	return out
}

// NumSub returns the direct-subscriber count for channel, for PUBSUB
// NUMSUB.
func (h *Hub) NumSub(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// NumPat returns the total number of distinct active patterns, for PUBSUB
// NUMPAT.
func (h *Hub) NumPat() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.patterns)
}
