// Package main runs a demo WebSocket client that follows a tenant's plan events
// while it submits one small plan.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const demoPlan = `{
  "start": "2025-09-07",
  "hubs": ["SPIM"],
  "airports": [
    {"code": "SPIM", "continent": "America del Sur", "gmt": -5, "capacity": 440},
    {"code": "SKBO", "continent": "America del Sur", "gmt": -5, "capacity": 430}
  ],
  "flights": ["SPIM-SKBO-06:00-09:00-300"],
  "orders": [{"id": "1", "dest": "SKBO", "ready": "2025-09-07T02:00:00", "qty": 40}],
  "freshLedger": true
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plans/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// empty planId follows every plan of the tenant
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: json.RawMessage(`{"planId":""}`)}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			var ev struct {
				Type string `json:"type"`
			}
			if m.Type == "next" && json.Unmarshal(m.Payload, &ev) == nil && ev.Type == "plan.committed" {
				return
			}
		}
	}()

	time.Sleep(200 * time.Millisecond)
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("http://localhost:%s/v1/plans", port), bytes.NewReader([]byte(demoPlan)))
	req.Header = hdr.Clone()
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("POST /v1/plans -> %s", resp.Status)

	select {
	case <-time.After(5 * time.Second):
		log.Print("timed out waiting for plan.committed")
	case <-done:
	}
}
