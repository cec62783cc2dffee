// Package relaytest runs scripted in-process relays for tests.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Req is a REQ frame received by a Relay
type Req struct {
	SubID  string
	Filter map[string]interface{}
}

// Peer is the relay side of one client connection
type Peer struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Send writes a JSON frame such as Send("EOSE", subID)
func (p *Peer) Send(frame ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteJSON(frame)
}

// SendRaw writes a text frame verbatim
func (p *Peer) SendRaw(data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteMessage(websocket.TextMessage, []byte(data))
}

// Close drops the connection from the relay side
func (p *Peer) Close() error {
	return p.ws.Close()
}

// Handler scripts the relay's answer to a REQ.
// It runs on the connection's goroutine; returning keeps the socket open
// until the client disconnects.
type Handler func(p *Peer, req Req)

// Relay is a websocket relay served by httptest
type Relay struct {
	URL string

	server  *httptest.Server
	handler Handler

	mu           sync.Mutex
	reqs         []Req
	disconnected chan struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New starts a relay that answers every REQ with handler
func New(t testing.TB, handler Handler) *Relay {
	t.Helper()

	r := &Relay{
		handler:      handler,
		disconnected: make(chan struct{}, 16),
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	r.URL = "ws" + strings.TrimPrefix(r.server.URL, "http")
	t.Cleanup(r.server.Close)
	return r
}

func (r *Relay) serve(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer func() {
		ws.Close()
		r.disconnected <- struct{}{}
	}()

	peer := &Peer{ws: ws}
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg []json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil || len(msg) < 3 {
			continue
		}
		var typ, subID string
		if json.Unmarshal(msg[0], &typ) != nil || typ != "REQ" {
			continue
		}
		if json.Unmarshal(msg[1], &subID) != nil {
			continue
		}
		filter := map[string]interface{}{}
		_ = json.Unmarshal(msg[2], &filter)

		q := Req{SubID: subID, Filter: filter}
		r.mu.Lock()
		r.reqs = append(r.reqs, q)
		r.mu.Unlock()

		if r.handler != nil {
			r.handler(peer, q)
		}
	}
}

// Reqs returns the REQ frames received so far
func (r *Relay) Reqs() []Req {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Req(nil), r.reqs...)
}

// Disconnected receives once per client connection that ended
func (r *Relay) Disconnected() <-chan struct{} {
	return r.disconnected
}

// TorrentEvent builds an unsigned kind 2003 event object
func TorrentEvent(id string, tags ...[]string) map[string]interface{} {
	if tags == nil {
		tags = [][]string{}
	}
	return map[string]interface{}{
		"id":         id,
		"pubkey":     "f00d",
		"created_at": 1700000000,
		"kind":       2003,
		"tags":       tags,
		"content":    "",
	}
}
