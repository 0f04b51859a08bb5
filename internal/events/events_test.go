package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = NoopPublisher{}
)

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	if err := p.Publish(context.Background(), TopicPlanCommitted, PlanCommitted{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNATSPublisherDeliversPlanCommitted(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("subscriber: %v", err)
	}
	defer nc.Close()
	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicPlanCommitted, ch)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	ev := PlanCommitted{PlanID: "pln_abc", Tenant: "t1", Orders: 4, Assigned: 3}
	if err := pub.Publish(context.Background(), TopicPlanCommitted, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-ch:
		var got PlanCommitted
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.PlanID != "pln_abc" || got.Assigned != 3 {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for plan event")
	}
}
