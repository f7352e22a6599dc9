// Package ws streams committed betting events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Frame encodings a client can request with ?encoding=.
const (
	EncodingJSON  = "json"
	EncodingProto = "proto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan frame
	encoding string
	subs     map[string]bool // subscribed channels, "competition:*" allowed
	mu       sync.RWMutex
}

// frame is one outgoing message.
type frame struct {
	kind int
	data []byte
}

// subscribeMsg is the JSON message a client sends to change subscriptions:
//
//	{"action":"subscribe","channels":["competition:btc-eth-w1"]}
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// Hub fans events from the signal bus out to connected clients. Every
// event arrives on domain.EventsChannel; clients receive it when subscribed
// to that channel or to the competition channel of the event.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	startedAt  time.Time
}

// message is one bus payload plus the channel it is routed on.
type message struct {
	channel string
	json    []byte

	once  sync.Once
	proto []byte
}

// protoBytes encodes the payload as a structpb.Struct once per message.
func (m *message) protoBytes() []byte {
	m.once.Do(func() {
		var fields map[string]any
		if err := json.Unmarshal(m.json, &fields); err != nil {
			return
		}
		st, err := structpb.NewStruct(fields)
		if err != nil {
			return
		}
		m.proto, _ = proto.Marshal(st)
	})
	return m.proto
}

// NewHub creates a Hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws_hub")),
		startedAt:  time.Now().UTC(),
	}
}

// Run subscribes to the event channel and serves clients until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	events, err := h.bus.Subscribe(ctx, domain.EventsChannel)
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "ws: subscribed", slog.String("channel", domain.EventsChannel))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case data, ok := <-events:
			if !ok {
				h.logger.Warn("ws: event subscription closed")
				events = nil
				continue
			}
			h.fanOut(newMessage(data))
		}
	}
}

func newMessage(data []byte) *message {
	var head struct {
		CompetitionID string `json:"competition_id"`
	}
	_ = json.Unmarshal(data, &head)

	channel := domain.EventsChannel
	if head.CompetitionID != "" {
		channel = domain.CompetitionChannel(head.CompetitionID)
	}
	return &message{channel: channel, json: data}
}

func (h *Hub) fanOut(m *message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(m.channel) {
			continue
		}
		f := frame{kind: websocket.TextMessage, data: m.json}
		if c.encoding == EncodingProto {
			b := m.protoBytes()
			if b == nil {
				continue
			}
			f = frame{kind: websocket.BinaryMessage, data: b}
		}
		select {
		case c.send <- f:
		default:
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

// HandleWS upgrades the request and registers the client. The optional
// query parameters are encoding (json|proto) and competition, which narrows
// the initial subscription to one competition.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	encoding := strings.ToLower(r.URL.Query().Get("encoding"))
	switch encoding {
	case "", EncodingJSON:
		encoding = EncodingJSON
	case EncodingProto:
	default:
		http.Error(w, `{"error":"unknown encoding","code":"bad_request"}`, http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan frame, sendBufferSize),
		encoding: encoding,
		subs:     make(map[string]bool),
	}
	if id := r.URL.Query().Get("competition"); id != "" {
		c.subs[domain.CompetitionChannel(id)] = true
	} else {
		c.subs[domain.EventsChannel] = true
	}

	c.sendHello()
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump handles subscription requests until the connection closes.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var sub subscribeMsg
		if json.Unmarshal(raw, &sub) == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}
}

// sendHello tells the client which subscriptions are active.
func (c *client) sendHello() {
	c.mu.RLock()
	subs := make([]any, 0, len(c.subs))
	for ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.RUnlock()

	hello := map[string]any{
		"type":           "hello",
		"channels":       subs,
		"uptime_seconds": int64(time.Since(c.hub.startedAt).Seconds()),
	}
	data, err := json.Marshal(hello)
	if err != nil {
		return
	}
	m := &message{json: data}
	f := frame{kind: websocket.TextMessage, data: data}
	if c.encoding == EncodingProto {
		f = frame{kind: websocket.BinaryMessage, data: m.protoBytes()}
	}
	select {
	case c.send <- f:
	default:
	}
}

// isSubscribed reports whether channel matches a subscription. The events
// channel receives everything; a trailing "*" matches by prefix.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[domain.EventsChannel] || c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

// writePump writes queued frames and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
