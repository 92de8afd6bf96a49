package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arc/engine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	statusPeriod   = 5 * time.Second
	clientSendSize = 64
)

// hub fans the engine's event stream out to every connected websocket. A
// single drain goroutine owns the engine channel; clients that fall behind
// are disconnected rather than allowed to stall the rest.
type hub struct {
	engine *engine.Engine

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}

	stopOnce sync.Once
}

func newHub(eng *engine.Engine) *hub {
	return &hub{
		engine:     eng,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// streamFrame is the envelope pushed over the websocket.
type streamFrame struct {
	Kind   string        `json:"kind"`
	Event  *engine.Event `json:"event,omitempty"`
	Status any           `json:"status,omitempty"`
}

func (h *hub) run() {
	clients := make(map[*wsClient]struct{})

	statusTicker := time.NewTicker(statusPeriod)
	defer statusTicker.Stop()

	for {
		select {
		case client := <-h.register:
			clients[client] = struct{}{}

		case client := <-h.unregister:
			if _, ok := clients[client]; ok {
				delete(clients, client)
				close(client.send)
			}

		case event := <-h.engine.Events():
			frame, err := json.Marshal(streamFrame{Kind: "event", Event: &event})
			if err != nil {
				continue
			}
			h.push(clients, frame)

		case <-statusTicker.C:
			frame, err := json.Marshal(streamFrame{Kind: "status", Status: h.engine.Status()})
			if err != nil {
				continue
			}
			h.push(clients, frame)

		case frame := <-h.broadcast:
			h.push(clients, frame)

		case <-h.done:
			for client := range clients {
				close(client.send)
			}
			return
		}
	}
}

func (h *hub) push(clients map[*wsClient]struct{}, frame []byte) {
	for client := range clients {
		select {
		case client.send <- frame:
		default:
			delete(clients, client)
			close(client.send)
		}
	}
}

func (h *hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// wsClient is one websocket consumer of the event stream.
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards client frames but keeps the connection's read side
// alive for pong handling.
func (c *wsClient) readPump() {
	defer func() {
		// After stop the run loop is gone; never block on a dead hub.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("gateway: websocket read: %v", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
