package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	sendQueue = 64
)

// Message is the websocket envelope. Type is "request" from clients and
// "response" or "event" from the camera.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Request is the data of a client request.
type Request struct {
	Action     string   `json:"action"`
	Properties []string `json:"properties,omitempty"`
}

// PropertyList answers listProperties.
type PropertyList struct {
	Action     string   `json:"action"`
	Properties []string `json:"properties"`
}

// PropertyChanged is pushed for subscribed properties.
type PropertyChanged struct {
	Action   string `json:"action"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

type outgoing struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type event struct {
	prop  string
	value any
}

// hub fans property changes out to websocket clients.
type hub struct {
	events     chan event
	register   chan *client
	unregister chan *client
}

func newHub() *hub {
	return &hub{
		events:     make(chan event, sendQueue),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// publish queues a change without blocking. Changes are dropped while the
// hub is backed up.
func (h *hub) publish(prop string, value any) {
	select {
	case h.events <- event{prop, value}:
	default:
		log.Printf("api: event queue full, dropping %s", prop)
	}
}

func (h *hub) run(ctx context.Context) {
	clients := make(map[*client]bool)
	defer func() {
		for c := range clients {
			close(c.send)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = true
		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.send)
			}
		case ev := <-h.events:
			for c := range clients {
				if !c.subscribed(ev.prop) {
					continue
				}
				select {
				case c.send <- changed(ev.prop, ev.value):
				default:
					// A client that cannot keep up is dropped.
					delete(clients, c)
					close(c.send)
				}
			}
		}
	}
}

func changed(prop string, value any) outgoing {
	return outgoing{Type: "event", Data: PropertyChanged{
		Action:   "propertyValueChanged",
		Property: prop,
		Value:    value,
	}}
}

type client struct {
	srv  *Server
	conn *websocket.Conn
	// send carries hub events and is closed by the hub.
	send chan outgoing
	// replies carries answers to the client's own requests.
	replies chan outgoing
	subs    chan []string
	props   []string
}

// subscribed reports whether the client asked for prop. It is only
// called from the hub goroutine.
func (c *client) subscribed(prop string) bool {
	for {
		select {
		case props := <-c.subs:
			c.props = append(c.props, props...)
			continue
		default:
		}
		return slices.Contains(c.props, prop)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventWebsocket serves one client until it disconnects or the server
// stops.
func (s *Server) eventWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		log.Printf("api: websocket: %v", err)
		return
	}
	ctx := r.Context()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c := &client{
		srv:     s,
		conn:    conn,
		send:    make(chan outgoing, sendQueue),
		replies: make(chan outgoing, sendQueue),
		subs:    make(chan []string, sendQueue),
	}
	select {
	case s.hub.register <- c:
	case <-ctx.Done():
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writer()
	}()
	c.reader(ctx)
	<-done
}

// writer is the only goroutine writing to the connection. It stops when
// the hub closes send.
func (c *client) writer() {
	defer c.conn.Close()
	for {
		var msg outgoing
		var ok bool
		select {
		case msg, ok = <-c.send:
		case msg, ok = <-c.replies:
		}
		if !ok {
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *client) reader(ctx context.Context) {
	defer func() {
		select {
		case c.srv.hub.unregister <- c:
		case <-ctx.Done():
		}
	}()
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "request" {
			log.Printf("api: websocket: unknown message type %q", msg.Type)
			continue
		}
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("api: websocket: %v", err)
			continue
		}
		c.handle(req)
	}
}

// handle answers a request.
func (c *client) handle(req Request) {
	switch req.Action {
	case "listProperties":
		c.reply(outgoing{Type: "response", Data: PropertyList{Action: req.Action, Properties: Properties}})
	case "subscribe":
		var props []string
		for _, p := range req.Properties {
			if !slices.Contains(Properties, p) {
				log.Printf("api: websocket: unknown property %q", p)
				continue
			}
			props = append(props, p)
		}
		select {
		case c.subs <- props:
		default:
			log.Printf("api: websocket: too many subscriptions")
			return
		}
		// Subscribers start with the current value.
		for _, p := range props {
			if v := c.srv.value(p); v != nil {
				c.reply(changed(p, v))
			}
		}
	default:
		log.Printf("api: websocket: unknown request %q", req.Action)
	}
}

func (c *client) reply(msg outgoing) {
	select {
	case c.replies <- msg:
	default:
		log.Printf("api: websocket: reply queue full")
	}
}
