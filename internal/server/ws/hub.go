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

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
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

	// refreshTimeout bounds the on-demand quote fetches a subscription
	// triggers.
	refreshTimeout = 15 * time.Second
)

// Message types on the push channel.
const (
	MsgSubscribeQuotes   = "subscribe_quotes"
	MsgUnsubscribeQuotes = "unsubscribe_quotes"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// QuoteSource serves the quotes a new subscription needs: the stored
// snapshots right away, then a fresh quote per bond. Fresh quotes reach
// subscribers through BroadcastQuote once recorded.
type QuoteSource interface {
	Latest(ctx context.Context, bondIDs []string) []domain.Quote
	Quote(ctx context.Context, id string, quantity domain.Num) (domain.Quote, error)
}

// client is one push connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed bond ids
	mu   sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to manage its bond set.
type subscribeMsg struct {
	Type    string   `json:"type"`
	BondIDs []string `json:"bondIds"`
}

// broadcastMsg carries an encoded update with the bond it concerns so the
// hub can route it to interested clients.
type broadcastMsg struct {
	bondID string
	data   []byte
}

// directMsg is addressed to one client.
type directMsg struct {
	client *client
	data   []byte
}

// Config controls hub behavior.
type Config struct {
	// FilterBySubscription delivers an update only to clients subscribed to
	// its bond. Clients with no subscription still receive everything.
	FilterBySubscription bool
	// Relay, when set, is subscribed on RelayChannel and every quote update
	// received there is forwarded to clients. Used when quotes are produced
	// by another process.
	Relay        domain.SignalBus
	RelayChannel string

	// RelaySink, when set, receives every relayed quote before it is
	// forwarded. Updates the sink does not apply are not forwarded.
	RelaySink QuoteSink
}

// QuoteSink stores quotes received from the relay channel.
type QuoteSink interface {
	Apply(ctx context.Context, q domain.Quote) (bool, error)
}

// Hub manages connected push clients and fans quote updates out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	direct     chan directMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	source     QuoteSource
	cfg        Config
	metrics    *metrics.Metrics
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub. source and m may be nil.
func NewHub(source QuoteSource, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		direct:     make(chan directMsg, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		source:     source,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// SetSource attaches the quote source after construction; the source and
// the hub usually reference each other.
func (h *Hub) SetSource(source QuoteSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = source
}

// Run starts the hub's event loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.cfg.Relay != nil && h.cfg.RelayChannel != "" {
		go h.relay(ctx)
	}
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.metrics.SetWSClients(0)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWSClients(n)
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWSClients(n)
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.direct:
			h.mu.RLock()
			if h.clients[msg.client] {
				select {
				case msg.client.send <- msg.data:
				default:
				}
			}
			h.mu.RUnlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.bondID, h.cfg.FilterBySubscription) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastQuote queues q for delivery. It never blocks; when the queue is
// full the update is dropped.
func (h *Hub) BroadcastQuote(q domain.Quote) {
	data, err := encodeQuote(q)
	if err != nil {
		h.logger.Error("ws: encode quote", slog.String("bond_id", q.BondID), slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- broadcastMsg{bondID: q.BondID, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping update", slog.String("bond_id", q.BondID))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// relay forwards quote updates published by another process.
func (h *Hub) relay(ctx context.Context) {
	msgCh, err := h.cfg.Relay.Subscribe(ctx, h.cfg.RelayChannel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to relay channel",
			slog.String("channel", h.cfg.RelayChannel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: relaying channel", slog.String("channel", h.cfg.RelayChannel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: relay subscription closed", slog.String("channel", h.cfg.RelayChannel))
				return
			}
			var upd domain.QuoteUpdate
			if err := json.Unmarshal(data, &upd); err != nil || upd.Type != domain.MessageQuoteUpdate {
				continue
			}
			if !h.applyRelayed(ctx, upd) {
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{bondID: upd.BondID, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// applyRelayed hands a relayed update to the sink and reports whether it
// should be forwarded.
func (h *Hub) applyRelayed(ctx context.Context, upd domain.QuoteUpdate) bool {
	if h.cfg.RelaySink == nil {
		return true
	}
	if upd.Quote.BondID == "" {
		upd.Quote.BondID = upd.BondID
	}
	applied, err := h.cfg.RelaySink.Apply(ctx, upd.Quote)
	if err != nil {
		h.logger.Warn("ws: relayed quote not stored",
			slog.String("bond_id", upd.BondID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return applied
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) quoteSource() QuoteSource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.source
}

func encodeQuote(q domain.Quote) ([]byte, error) {
	return json.Marshal(domain.QuoteUpdate{
		Type:   domain.MessageQuoteUpdate,
		BondID: q.BondID,
		Quote:  q,
	})
}

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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var msg subscribeMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case MsgSubscribeQuotes:
			ids := c.subscribe(msg.BondIDs)
			c.sendSnapshots(ids)
			go c.hub.refresh(ids)
		case MsgUnsubscribeQuotes:
			c.unsubscribe(msg.BondIDs)
		}
	}
}

// subscribe adds ids to the client's set and returns the cleaned ids.
func (c *client) subscribe(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || c.subs[id] {
			continue
		}
		c.subs[id] = true
		out = append(out, id)
	}
	return out
}

func (c *client) unsubscribe(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.subs, strings.TrimSpace(id))
	}
}

// wants reports whether an update for bondID should reach this client.
func (c *client) wants(bondID string, filter bool) bool {
	if !filter {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || c.subs[bondID]
}

// sendSnapshots pushes the stored quotes for ids to this client only.
func (c *client) sendSnapshots(ids []string) {
	src := c.hub.quoteSource()
	if src == nil || len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	for _, q := range src.Latest(ctx, ids) {
		data, err := encodeQuote(q)
		if err != nil {
			continue
		}
		select {
		case c.hub.direct <- directMsg{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// refresh fetches a fresh quote for each id. Recorded quotes come back
// through BroadcastQuote.
func (h *Hub) refresh(ids []string) {
	src := h.quoteSource()
	if src == nil || len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	for _, id := range ids {
		if _, err := src.Quote(ctx, id, domain.Num{}); err != nil {
			h.logger.Debug("ws: subscription quote failed",
				slog.String("bond_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
