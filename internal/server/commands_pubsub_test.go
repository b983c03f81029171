package server

import (
	"strings"
	"testing"
)

func TestSubscribeConfirmationsAndDelivery(t *testing.T) {
	s := testServer(t)
	sub, subConn := testClient()
	pub, _ := testClient()

	s.dispatch(sub, []string{"SUBSCRIBE", "news", "sport"}, nil)

	fs := subConn.frames(t)
	if len(fs) != 2 {
		t.Fatalf("want 2 confirmation frames, got %d", len(fs))
	}
	wantBulk(t, fs[0].Array[0], "subscribe")
	wantBulk(t, fs[0].Array[1], "news")
	wantInt(t, fs[0].Array[2], 1)
	wantBulk(t, fs[1].Array[1], "sport")
	wantInt(t, fs[1].Array[2], 2)

	wantInt(t, do(t, s, pub, "PUBLISH", "news", "hello"), 1)
	wantInt(t, do(t, s, pub, "PUBLISH", "nobody", "void"), 0)

	fs = subConn.frames(t)
	msg := fs[len(fs)-1]
	wantBulk(t, msg.Array[0], "message")
	wantBulk(t, msg.Array[1], "news")
	wantBulk(t, msg.Array[2], "hello")
}

func TestPatternSubscriptionDelivery(t *testing.T) {
	s := testServer(t)
	sub, subConn := testClient()
	pub, _ := testClient()

	s.dispatch(sub, []string{"PSUBSCRIBE", "news.*"}, nil)
	wantInt(t, do(t, s, pub, "PUBLISH", "news.tech", "go"), 1)

	fs := subConn.frames(t)
	msg := fs[len(fs)-1]
	wantBulk(t, msg.Array[0], "pmessage")
	wantBulk(t, msg.Array[1], "news.*")
	wantBulk(t, msg.Array[2], "news.tech")
	wantBulk(t, msg.Array[3], "go")
}

func TestChannelAndPatternSubscriberBothCount(t *testing.T) {
	s := testServer(t)
	sub, _ := testClient()
	pub, _ := testClient()

	s.dispatch(sub, []string{"SUBSCRIBE", "news.tech"}, nil)
	s.dispatch(sub, []string{"PSUBSCRIBE", "news.*"}, nil)

	// one subscriber matched twice still counts per match
	wantInt(t, do(t, s, pub, "PUBLISH", "news.tech", "x"), 2)
}

func TestUnsubscribeWithoutArgsDropsEverything(t *testing.T) {
	s := testServer(t)
	sub, subConn := testClient()
	pub, _ := testClient()

	s.dispatch(sub, []string{"SUBSCRIBE", "a", "b"}, nil)
	s.dispatch(sub, []string{"UNSUBSCRIBE"}, nil)

	fs := subConn.frames(t)
	for _, f := range fs[len(fs)-2:] {
		wantBulk(t, f.Array[0], "unsubscribe")
	}
	if sub.state != StateNormal {
		t.Fatalf("want normal state, got %v", sub.state)
	}
	wantInt(t, do(t, s, pub, "PUBLISH", "a", "x"), 0)
}

func TestPubSubIntrospection(t *testing.T) {
	s := testServer(t)
	one, _ := testClient()
	two, _ := testClient()
	c, _ := testClient()

	s.dispatch(one, []string{"SUBSCRIBE", "news"}, nil)
	s.dispatch(two, []string{"SUBSCRIBE", "news", "sport"}, nil)
	s.dispatch(two, []string{"PSUBSCRIBE", "n*"}, nil)

	channels := arrayStrings(t, do(t, s, c, "PUBSUB", "CHANNELS"))
	if len(channels) != 2 {
		t.Fatalf("want 2 active channels, got %v", channels)
	}
	filtered := arrayStrings(t, do(t, s, c, "PUBSUB", "CHANNELS", "ne*"))
	if len(filtered) != 1 || filtered[0] != "news" {
		t.Fatalf("want [news], got %v", filtered)
	}

	numsub := do(t, s, c, "PUBSUB", "NUMSUB", "news", "sport", "ghost")
	if len(numsub.Array) != 6 {
		t.Fatalf("want 3 name,count pairs, got %+v", numsub)
	}
	wantBulk(t, numsub.Array[0], "news")
	wantInt(t, numsub.Array[1], 2)
	wantInt(t, numsub.Array[3], 1)
	wantInt(t, numsub.Array[5], 0)

	wantInt(t, do(t, s, c, "PUBSUB", "NUMPAT"), 1)
}

func TestDisconnectCleansUpSubscriptions(t *testing.T) {
	s := testServer(t)
	sub, _ := testClient()
	pub, _ := testClient()

	s.addClient(sub)
	s.dispatch(sub, []string{"SUBSCRIBE", "news"}, nil)
	s.cleanupClient(sub)

	wantInt(t, do(t, s, pub, "PUBLISH", "news", "x"), 0)
	wantInt(t, do(t, s, pub, "PUBSUB", "NUMPAT"), 0)
}

func TestPingAllowedWhileSubscribed(t *testing.T) {
	s := testServer(t)
	sub, subConn := testClient()

	s.dispatch(sub, []string{"SUBSCRIBE", "news"}, nil)
	s.dispatch(sub, []string{"PING"}, nil)

	fs := subConn.frames(t)
	last := fs[len(fs)-1]
	wantSimple(t, last, "PONG")

	s.dispatch(sub, []string{"SET", "k", "v"}, nil)
	fs = subConn.frames(t)
	if !strings.HasPrefix(fs[len(fs)-1].Str, "ERR only") {
		t.Fatalf("want restriction error, got %+v", fs[len(fs)-1])
	}
}
