// Package stream implements the WebSocket fan-out multiplexer:
// one upstream connection per provider feeds many subscriber connections,
// each tracking its own symbol set against a shared per-symbol subscriber
// index.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Tick is a normalized upstream price/trade update delivered to subscribers.
type Tick struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	Change24h        *float64  `json:"change24h,omitempty"`
	ChangePercent24h *float64  `json:"changePercent24h,omitempty"`
	High24h          *float64  `json:"high24h,omitempty"`
	Low24h           *float64  `json:"low24h,omitempty"`
	Volume24h        *float64  `json:"volume24h,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// UpstreamClient is the minimal surface the hub needs from a provider's
// streaming client: connect, (un)subscribe by symbol, and a channel of ticks.
// Reconnect/backoff is the hub's responsibility, not the client's.
type UpstreamClient interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	Ticks() <-chan Tick
	// Disconnected is closed when the current connection drops. Connect
	// establishes a fresh one (and a fresh Disconnected channel) on retry.
	Disconnected() <-chan struct{}
	Close() error
}

// Config bounds the hub's subscription surface.
type Config struct {
	ClientSymbolCap int // default 50
	ServerSymbolCap int // 0 = unbounded (crypto mini-ticker stream)
	PingInterval    time.Duration
	PongWait        time.Duration
	SendBufferSize  int
	MessageKind     string // "price" or "trade" — the discriminator used on outbound tick events
}

func (c Config) withDefaults() Config {
	if c.ClientSymbolCap <= 0 {
		c.ClientSymbolCap = 50
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 2 * c.PingInterval
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 64
	}
	if c.MessageKind == "" {
		c.MessageKind = "price"
	}
	return c
}

// clientMessage is the inbound client -> server protocol envelope.
type clientMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

type errorCode string

const (
	errInvalidMessage errorCode = "INVALID_MESSAGE"
	errParseError     errorCode = "PARSE_ERROR"
	errInvalidSymbols errorCode = "INVALID_SYMBOLS"
	errLimitExceeded  errorCode = "LIMIT_EXCEEDED"
	errBadRequest     errorCode = "BAD_REQUEST"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one subscriber connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	symbols map[string]bool
}

// Hub owns the SymbolIndex, the client set, and the single upstream
// connection supervisor.
type Hub struct {
	cfg      Config
	upstream UpstreamClient

	register   chan *Client
	unregister chan *Client
	inbound    chan clientInbound

	mu          sync.Mutex
	clients     map[*Client]bool
	symbolIndex map[string]map[*Client]bool

	done chan struct{}
}

type clientInbound struct {
	client  *Client
	message []byte
}

// NewHub builds a fan-out hub over the given upstream client. Call Run to
// start its event loop and the upstream supervisor.
func NewHub(cfg Config, upstream UpstreamClient) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:         cfg,
		upstream:    upstream,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan clientInbound, 256),
		clients:     make(map[*Client]bool),
		symbolIndex: make(map[string]map[*Client]bool),
		done:        make(chan struct{}),
	}
}

// Run drives the hub's single-writer event loop and the upstream supervisor
// until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	go h.superviseUpstream(ctx)

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.inbound:
			h.handleMessage(in.client, in.message)
		case tick, ok := <-h.upstream.Ticks():
			if !ok {
				continue
			}
			h.deliver(tick)
		}
	}
}

// Shutdown closes every client socket with a normal close code and
// unsubscribes the upstream entirely.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	_ = h.upstream.Close()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)

	var toUnsubscribe []string
	for symbol := range c.symbols {
		set := h.symbolIndex[symbol]
		delete(set, c)
		if len(set) == 0 {
			delete(h.symbolIndex, symbol)
			toUnsubscribe = append(toUnsubscribe, symbol)
		}
	}
	if len(toUnsubscribe) > 0 {
		go func() { _ = h.upstream.Unsubscribe(context.Background(), toUnsubscribe) }()
	}
}

// HandleWebSocket upgrades an HTTP request and registers the new client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, h.cfg.SendBufferSize), symbols: make(map[string]bool)}
	h.register <- c

	c.writeEnvelope(map[string]any{"type": "connected", "message": "ok"})

	go c.writePump(h.cfg)
	go c.readPump(h.cfg)
}

func (h *Hub) handleMessage(c *Client, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.writeError(errParseError, "malformed message")
		return
	}

	switch msg.Type {
	case "subscribe":
		h.handleSubscribe(c, msg.Symbols)
	case "unsubscribe":
		h.handleUnsubscribe(c, msg.Symbols)
	case "ping":
		c.writeEnvelope(map[string]any{"type": "pong"})
	case "":
		c.writeError(errInvalidMessage, "missing type")
	default:
		c.writeError(errBadRequest, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) handleSubscribe(c *Client, rawSymbols []string) {
	symbols := normalizeSymbols(rawSymbols)
	if len(symbols) == 0 {
		c.writeError(errInvalidSymbols, "no valid symbols in request")
		return
	}

	h.mu.Lock()
	if len(c.symbols)+len(symbols) > h.cfg.ClientSymbolCap {
		h.mu.Unlock()
		c.writeError(errLimitExceeded, "client symbol cap exceeded")
		return
	}
	if h.cfg.ServerSymbolCap > 0 {
		newDistinct := 0
		for _, s := range symbols {
			if _, exists := h.symbolIndex[s]; !exists {
				newDistinct++
			}
		}
		if len(h.symbolIndex)+newDistinct > h.cfg.ServerSymbolCap {
			h.mu.Unlock()
			c.writeError(errLimitExceeded, "server symbol cap exceeded")
			return
		}
	}

	var newUpstreamSymbols []string
	accepted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if c.symbols[s] {
			accepted = append(accepted, s)
			continue
		}
		set, ok := h.symbolIndex[s]
		if !ok {
			set = make(map[*Client]bool)
			h.symbolIndex[s] = set
			newUpstreamSymbols = append(newUpstreamSymbols, s)
		}
		set[c] = true
		c.symbols[s] = true
		accepted = append(accepted, s)
	}
	h.mu.Unlock()

	if len(newUpstreamSymbols) > 0 {
		if err := h.upstream.Subscribe(context.Background(), newUpstreamSymbols); err != nil {
			log.Warn().Err(err).Strs("symbols", newUpstreamSymbols).Msg("upstream subscribe failed")
		}
	}
	c.writeEnvelope(map[string]any{"type": "subscribed", "symbols": accepted})
}

func (h *Hub) handleUnsubscribe(c *Client, rawSymbols []string) {
	symbols := normalizeSymbols(rawSymbols)

	h.mu.Lock()
	var toUnsubscribe []string
	for _, s := range symbols {
		if !c.symbols[s] {
			continue
		}
		delete(c.symbols, s)
		set := h.symbolIndex[s]
		delete(set, c)
		if len(set) == 0 {
			delete(h.symbolIndex, s)
			toUnsubscribe = append(toUnsubscribe, s)
		}
	}
	h.mu.Unlock()

	if len(toUnsubscribe) > 0 {
		if err := h.upstream.Unsubscribe(context.Background(), toUnsubscribe); err != nil {
			log.Warn().Err(err).Strs("symbols", toUnsubscribe).Msg("upstream unsubscribe failed")
		}
	}
	c.writeEnvelope(map[string]any{"type": "unsubscribed"})
}

func (h *Hub) deliver(tick Tick) {
	h.mu.Lock()
	subscribers := h.symbolIndex[tick.Symbol]
	targets := make([]*Client, 0, len(subscribers))
	for c := range subscribers {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	payload := map[string]any{
		"type":             h.cfg.MessageKind,
		"symbol":           tick.Symbol,
		"price":            tick.Price,
		"change24h":        tick.Change24h,
		"changePercent24h": tick.ChangePercent24h,
		"high24h":          tick.High24h,
		"low24h":           tick.Low24h,
		"volume24h":        tick.Volume24h,
		"timestamp":        tick.Timestamp,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}

	for _, c := range targets {
		c.sendOrDropOldest(raw)
	}
}

// superviseUpstream connects the upstream client and reconnects with
// exponential backoff (1s -> x2 -> cap 30s) on disconnect, re-subscribing
// the hub's current SymbolIndex after every reconnect.
func (h *Hub) superviseUpstream(ctx context.Context) {
	backoff := time.Second
	const capBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := h.upstream.Connect(ctx); err != nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("upstream connect failed")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, capBackoff)
			continue
		}
		backoff = time.Second

		h.mu.Lock()
		symbols := make([]string, 0, len(h.symbolIndex))
		for s := range h.symbolIndex {
			symbols = append(symbols, s)
		}
		h.mu.Unlock()
		if len(symbols) > 0 {
			if err := h.upstream.Subscribe(ctx, symbols); err != nil {
				log.Warn().Err(err).Msg("upstream resubscribe failed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-h.upstream.Disconnected():
		}
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, capBackoff)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(current, cap time.Duration) time.Duration {
	next := current * 2
	if next > cap {
		return cap
	}
	return next
}

func normalizeSymbols(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

func (c *Client) writeEnvelope(v map[string]any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.sendOrDropOldest(raw)
}

func (c *Client) writeError(code errorCode, message string) {
	c.writeEnvelope(map[string]any{"type": "error", "code": string(code), "message": message})
}

// sendOrDropOldest enqueues a message, dropping the oldest queued message
// for this client when its outbound buffer is full (freshness over
// freshness over completeness).
func (c *Client) sendOrDropOldest(raw []byte) {
	select {
	case c.send <- raw:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *Client) readPump(cfg Config) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.hub.inbound <- clientInbound{client: c, message: message}:
		default:
			// hub is backed up; drop the message rather than block the read loop
		}
	}
}

func (c *Client) writePump(cfg Config) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
