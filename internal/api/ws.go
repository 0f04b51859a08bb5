package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage frames the plan event protocol:
// client: connection_init, subscribe {planId}, complete, ping
// server: connection_ack, next {event}, error, complete, pong
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribe struct {
	PlanID string `json:"planId"`
}

// PlanWSHandler handles /v1/plans/ws. With ?planId= the connection is
// subscribed to that plan immediately under id "0"; an empty planId in a
// subscribe message follows every plan of the tenant.
func (s *Server) PlanWSHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, nil, "")
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	type sub struct {
		topic string
		ch    chan SSEEvent
	}
	var mu sync.Mutex
	subs := map[string]sub{}
	subscribe := func(id, planID string) {
		topic := planID
		if topic == "" {
			topic = TenantTopic(p.Tenant)
		} else if plan, err := s.Store.GetPlan(r.Context(), p.Tenant, planID); err == nil {
			// already finished: nothing more will happen on this plan
			if evt, done := finishedEvent(plan); done {
				payload, _ := json.Marshal(evt)
				_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
			}
		}
		ch := s.Broker.Subscribe(topic)
		mu.Lock()
		if old, ok := subs[id]; ok {
			s.Broker.Unsubscribe(old.topic, old.ch)
		}
		subs[id] = sub{topic: topic, ch: ch}
		mu.Unlock()
		go func() {
			for evt := range ch {
				payload, _ := json.Marshal(evt)
				if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
					return
				}
			}
			_ = write(wsMessage{Type: "complete", ID: id})
		}()
	}
	defer func() {
		mu.Lock()
		for id, s0 := range subs {
			s.Broker.Unsubscribe(s0.topic, s0.ch)
			delete(subs, id)
		}
		mu.Unlock()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				wmu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	if planID := r.URL.Query().Get("planId"); planID != "" {
		subscribe("0", planID)
	}
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribe
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &pl); err != nil {
					_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"invalid payload"}`)})
					continue
				}
			}
			subscribe(msg.ID, pl.PlanID)
		case "complete":
			mu.Lock()
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.topic, s0.ch)
				delete(subs, msg.ID)
			}
			mu.Unlock()
		}
	}
}
