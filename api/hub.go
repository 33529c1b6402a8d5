package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/btccom/hwsigner/session"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const writeWait = 10 * time.Second

// client is a websocket subscriber. Writes are serialized by mtx,
// gorilla connections support a single concurrent writer.
type client struct {
	mtx  sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(msg []byte) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *client) close() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = c.conn.Close()
}

// hub fans session events out to the websocket clients.
type hub struct {
	mtx     sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	return true
}

func (h *hub) count() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.clients)
}

func (h *hub) snapshot() []*client {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// broadcast writes event to every client. Clients that can't be
// written to are dropped.
func (h *hub) broadcast(event session.Event) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	eg := &errgroup.Group{}
	for _, c := range h.snapshot() {
		c := c
		eg.Go(func() error {
			if err := c.write(msg); err != nil {
				if h.remove(c) {
					c.close()
				}
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

func (h *hub) closeAll() {
	for _, c := range h.snapshot() {
		if h.remove(c) {
			c.close()
		}
	}
}
