package pubsub

import "testing"

type recorder struct {
	messages []string
}

func (r *recorder) Deliver(channel, pattern, payload string) {
	r.messages = append(r.messages, channel+"|"+pattern+"|"+payload)
}

func TestPublishDirect(t *testing.T) {
	h := New()
	a := &recorder{}
	h.Subscribe("news", a)
	n := h.Publish("news", "hello")
	if n != 1 {
		t.Fatalf("expected 1 receiver, got %d", n)
	}
	if len(a.messages) != 1 || a.messages[0] != "news||hello" {
		t.Fatalf("unexpected messages: %v", a.messages)
	}
}

func TestPublishPattern(t *testing.T) {
	h := New()
	a := &recorder{}
	h.PSubscribe("news.*", a)
	n := h.Publish("news.sports", "goal")
	if n != 1 {
		t.Fatalf("expected 1 receiver, got %d", n)
	}
	if a.messages[0] != "news.sports|news.*|goal" {
		t.Fatalf("unexpected message: %v", a.messages)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	h := New()
	a := &recorder{}
	h.Subscribe("c1", a)
	h.PSubscribe("p*", a)
	h.UnsubscribeAll([]string{"c1"}, []string{"p*"}, a)
	if h.Publish("c1", "x") != 0 {
		t.Fatal("expected no receivers after UnsubscribeAll")
	}
	if h.NumPat() != 0 {
		t.Fatal("expected no patterns left")
	}
}

func TestChannelsAndNumSub(t *testing.T) {
	h := New()
	a, b := &recorder{}, &recorder{}
	h.Subscribe("room:1", a)
	h.Subscribe("room:1", b)
	h.Subscribe("room:2", a)
	if h.NumSub("room:1") != 2 {
		t.Fatalf("expected 2 subs on room:1")
	}
	chs := h.Channels("room:*")
	if len(chs) != 2 {
		t.Fatalf("expected 2 channels, got %v", chs)
	}
}
