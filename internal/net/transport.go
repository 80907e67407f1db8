package net

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"DrawingTransformer/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 64
)

// Message is one frame sent to websocket clients.
type Message struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Peer is one connected websocket client.
type Peer struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// Hub fans messages out to every connected peer. A peer whose send queue
// is full is dropped.
type Hub struct {
	peers map[string]*Peer
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[string]*Peer)}
}

// Add registers conn and starts its write loop. greet, when non-nil, builds
// the peer's first message; it is queued before the peer is visible to
// Broadcast, so nothing can overtake it.
func (h *Hub) Add(conn *websocket.Conn, greet func(peerID string) Message) *Peer {
	p := &Peer{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendQueue),
	}
	h.mu.Lock()
	if greet != nil {
		p.Send(greet(p.ID))
	}
	h.peers[p.ID] = p
	n := len(h.peers)
	h.mu.Unlock()
	logging.Logger().Info("[hub] peer connected", "peer", p.ID, "addr", conn.RemoteAddr().String(), "peers", n)

	go p.writeLoop()
	return p
}

// Remove unregisters p and closes its connection.
func (h *Hub) Remove(p *Peer) {
	h.mu.Lock()
	_, ok := h.peers[p.ID]
	delete(h.peers, p.ID)
	h.mu.Unlock()
	if ok {
		logging.Logger().Info("[hub] peer disconnected", "peer", p.ID)
	}
	p.close()
}

// Len returns the number of connected peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast queues msg for every peer.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Logger().Error("[hub] failed to encode message", "type", msg.Type, "err", err)
		return
	}

	var slow []*Peer
	h.mu.RLock()
	for _, p := range h.peers {
		if !p.enqueue(data) {
			slow = append(slow, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range slow {
		logging.Logger().Warn("[hub] dropping slow peer", "peer", p.ID)
		h.Remove(p)
	}
}

// Send queues msg for p only. It reports false if p's queue is full.
func (p *Peer) Send(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Logger().Error("[hub] failed to encode message", "type", msg.Type, "err", err)
		return false
	}
	return p.enqueue(data)
}

func (p *Peer) enqueue(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *Peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

func (p *Peer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()
	for {
		select {
		case data, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Logger().Debug("[hub] write failed", "peer", p.ID, "err", err)
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
