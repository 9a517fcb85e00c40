// internal/server/hub.go
//
// Websocket hub: the browser side of the view layer.
//
// Context
// -------
// Each connected browser is a view client.  The hub Connects one observer
// to the popup bridge; that observer runs on the UI loop and fans each
// prompt out to every client's send queue.  Clients answer prompts with a
// response frame, which the hub posts back onto the UI loop before calling
// Prompt.Respond.
//
// Frames
// ------
//
//	server → client  {"type":"popup","prompt":{…}}
//	client → server  {"type":"response","id":7,"button":"yes"}
//
// Notes
// -----
//   - A malformed frame is logged and skipped; only read errors end a
//     client.
//   - A client whose queue is full misses that popup; the hub never blocks
//     the UI loop on a slow socket.
//   - Unanswered prompts are remembered up to pendingLimit, least recently
//     used evicted first.
package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yanizio/hmi/extensions/hmi"
	"github.com/yanizio/hmi/internal/cache"
	"github.com/yanizio/hmi/internal/metrics"
	"github.com/yanizio/hmi/internal/view"
)

const (
	sendQueue    = 16
	pendingLimit = 256
	readLimit    = 4096

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type outFrame struct {
	Type   string      `json:"type"`
	Prompt *hmi.Prompt `json:"prompt"`
}

type inFrame struct {
	Type   string     `json:"type"`
	ID     uint64     `json:"id"`
	Button hmi.Button `json:"button"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type hub struct {
	loop *view.Loop
	log  *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*client]struct{}
	pending *cache.LRU[uint64, *hmi.Prompt]
}

func newHub(bridge *hmi.PopupBridge, loop *view.Loop, log *zap.SugaredLogger) *hub {
	h := &hub{
		loop:    loop,
		log:     log,
		clients: make(map[*client]struct{}),
		pending: cache.New[uint64, *hmi.Prompt](pendingLimit),
	}
	bridge.Connect(h.broadcast)
	return h
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.ViewClients.Inc()
}

// remove closes c's queue; the write pump then exits.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.ViewClients.Dec()
}

// broadcast runs on the UI loop.
func (h *hub) broadcast(p *hmi.Prompt) {
	msg, err := json.Marshal(outFrame{Type: "popup", Prompt: p})
	if err != nil {
		h.log.Errorw("popup encode failed", "id", p.ID, "err", err)
		return
	}

	h.pending.Add(p.ID, p)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warnw("view client queue full; popup skipped", "id", p.ID)
		}
	}
}

// respond hands an answer to the UI loop.
func (h *hub) respond(id uint64, b hmi.Button) {
	h.loop.Post(func() {
		p, ok := h.pending.Get(id)
		if !ok {
			h.log.Debugw("response for unknown prompt", "id", id)
			return
		}
		if err := p.Respond(b); err != nil {
			h.log.Infow("prompt response rejected", "id", id, "button", b, "err", err)
			return
		}
		h.pending.Remove(id)
	})
}

func (h *hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("view client read failed", "err", err)
			}
			return
		}
		var f inFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			h.log.Infow("malformed view frame skipped", "err", err)
			continue
		}
		if f.Type == "response" {
			h.respond(f.ID, f.Button)
		}
	}
}

func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
