// Package ws carries session traffic through a WebSocket relay.
//
// Peers connect to /sessions/{session}/peers/{peer} and send wire frames as
// text messages. The relay reads the "to" field of each envelope and forwards
// the frame unchanged to that peer's connection. Frames for a peer that is not
// connected are dropped.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dyluth/retinue/pkg/wire"
)

const sendQueue = 256

// RelayConfig configures a Relay.
type RelayConfig struct {
	Logger *log.Logger
}

// SessionInfo is the JSON view of one relayed session.
type SessionInfo struct {
	Session   string        `json:"session"`
	Authority wire.PeerID   `json:"authority"`
	Peers     []wire.PeerID `json:"peers"`
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

type relaySession struct {
	authority wire.PeerID
	peers     map[wire.PeerID]*conn
}

// Relay forwards frames between the peers of any number of sessions.
type Relay struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*relaySession
}

// NewRelay creates an empty relay.
func NewRelay(cfg RelayConfig) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Relay{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*relaySession),
	}
}

// Mount registers the relay routes on r.
func (rl *Relay) Mount(r chi.Router) {
	r.Get("/sessions/{session}", rl.handleSession)
	r.Get("/sessions/{session}/peers/{peer}", rl.handleConnect)
}

// Handler returns a router serving only the relay routes.
func (rl *Relay) Handler() http.Handler {
	r := chi.NewRouter()
	rl.Mount(r)
	return r
}

// Sessions returns the number of sessions with at least one connected peer.
func (rl *Relay) Sessions() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.sessions)
}

// Info returns the roster of a session.
func (rl *Relay) Info(session string) SessionInfo {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	info := SessionInfo{Session: session, Peers: []wire.PeerID{}}
	s, ok := rl.sessions[session]
	if !ok {
		return info
	}
	info.Authority = s.authority
	for id := range s.peers {
		info.Peers = append(info.Peers, id)
	}
	sort.Slice(info.Peers, func(i, j int) bool { return info.Peers[i] < info.Peers[j] })
	return info
}

func (rl *Relay) handleSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rl.Info(chi.URLParam(r, "session")))
}

func (rl *Relay) handleConnect(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	peer := wire.PeerID(chi.URLParam(r, "peer"))
	host := r.URL.Query().Get("host") == "true"

	if rl.connected(session, peer) {
		http.Error(w, "peer already connected", http.StatusConflict)
		return
	}

	ws, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Printf("[Relay] Upgrade failed for %s/%s: %v", session, peer, err)
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, sendQueue)}
	if !rl.join(session, peer, c, host) {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "peer already connected")
		ws.WriteMessage(websocket.CloseMessage, message)
		ws.Close()
		return
	}
	rl.logger.Printf("[Relay] %s joined session '%s'", peer, session)

	go rl.writeLoop(c)
	rl.readLoop(session, peer, c)

	rl.leave(session, peer)
	close(c.send)
	rl.logger.Printf("[Relay] %s left session '%s'", peer, session)
}

func (rl *Relay) readLoop(session string, from wire.PeerID, c *conn) {
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var hdr struct {
			To wire.PeerID `json:"to"`
		}
		if err := json.Unmarshal(frame, &hdr); err != nil || hdr.To.IsNone() {
			rl.logger.Printf("[Relay] Discarding unroutable frame from %s", from)
			continue
		}
		if !rl.forward(session, hdr.To, frame) {
			rl.logger.Printf("[Relay] Dropped frame from %s: %s is not connected", from, hdr.To)
		}
	}
}

func (rl *Relay) writeLoop(c *conn) {
	defer c.ws.Close()
	for frame := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (rl *Relay) forward(session string, to wire.PeerID, frame []byte) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	s, ok := rl.sessions[session]
	if !ok {
		return false
	}
	c, ok := s.peers[to]
	if !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (rl *Relay) connected(session string, peer wire.PeerID) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	s, ok := rl.sessions[session]
	if !ok {
		return false
	}
	_, ok = s.peers[peer]
	return ok
}

func (rl *Relay) join(session string, peer wire.PeerID, c *conn, host bool) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	s, ok := rl.sessions[session]
	if !ok {
		s = &relaySession{peers: make(map[wire.PeerID]*conn)}
		rl.sessions[session] = s
	}
	if _, exists := s.peers[peer]; exists {
		return false
	}
	s.peers[peer] = c
	if host && s.authority.IsNone() {
		s.authority = peer
	}
	return true
}

func (rl *Relay) leave(session string, peer wire.PeerID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	s, ok := rl.sessions[session]
	if !ok {
		return
	}
	delete(s.peers, peer)
	if s.authority == peer {
		s.authority = wire.NoPeer
	}
	if len(s.peers) == 0 {
		delete(rl.sessions, session)
	}
}
