package crypto

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/marketpulse/aggregator/internal/stream"
)

// StreamConfig configures the crypto upstream WebSocket client.
type StreamConfig struct {
	BaseWSURL         string // default wss://stream.binance.com:9443/stream
	HandshakeTimeout  time.Duration
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.BaseWSURL == "" {
		c.BaseWSURL = "wss://stream.binance.com:9443/stream"
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

// StreamClient is the crypto exchange's 24h mini-ticker stream, implementing
// stream.UpstreamClient. One instance is shared by every subscriber through
// the fan-out hub.
type StreamClient struct {
	cfg StreamConfig

	mu           sync.Mutex
	conn         *websocket.Conn
	subscribed   map[string]bool
	ticks        chan stream.Tick
	disconnected chan struct{}
}

// NewStreamClient builds a StreamClient. Call Connect before Subscribe.
func NewStreamClient(cfg StreamConfig) *StreamClient {
	return &StreamClient{
		cfg:        cfg.withDefaults(),
		subscribed: make(map[string]bool),
	}
}

func (s *StreamClient) Connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = s.cfg.HandshakeTimeout

	conn, _, err := dialer.DialContext(ctx, s.cfg.BaseWSURL, nil)
	if err != nil {
		return fmt.Errorf("crypto stream connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.ticks = make(chan stream.Tick, 256)
	s.disconnected = make(chan struct{})
	previouslySubscribed := make([]string, 0, len(s.subscribed))
	for sym := range s.subscribed {
		previouslySubscribed = append(previouslySubscribed, sym)
	}
	s.mu.Unlock()

	go s.readLoop()

	if len(previouslySubscribed) > 0 {
		return s.sendSubscription("SUBSCRIBE", previouslySubscribed)
	}
	return nil
}

func (s *StreamClient) Ticks() <-chan stream.Tick { return s.ticks }

func (s *StreamClient) Disconnected() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

func (s *StreamClient) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	for _, sym := range symbols {
		s.subscribed[sym] = true
	}
	s.mu.Unlock()
	return s.sendSubscription("SUBSCRIBE", symbols)
}

func (s *StreamClient) Unsubscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	for _, sym := range symbols {
		delete(s.subscribed, sym)
	}
	s.mu.Unlock()
	return s.sendSubscription("UNSUBSCRIBE", symbols)
}

func (s *StreamClient) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

func (s *StreamClient) sendSubscription(method string, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("crypto stream: not connected")
	}

	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, strings.ToLower(sym)+"@miniTicker")
	}

	req := subscribeRequest{Method: method, Params: streams, ID: 1}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("crypto stream: not connected")
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type miniTickerEnvelope struct {
	Stream string          `json:"stream"`
	Data   miniTickerEvent `json:"data"`
}

type miniTickerEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	EventTime int64  `json:"E"`
}

func (s *StreamClient) readLoop() {
	s.mu.Lock()
	conn := s.conn
	ticks := s.ticks
	disconnected := s.disconnected
	s.mu.Unlock()

	defer close(disconnected)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("crypto stream read error")
			return
		}

		var env miniTickerEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Data.EventType == "" {
			continue
		}

		tick, ok := toTick(env.Data)
		if !ok {
			continue
		}
		select {
		case ticks <- tick:
		default:
			// hub consumer is slow; drop the tick rather than block the read loop
		}
	}
}

func toTick(e miniTickerEvent) (stream.Tick, bool) {
	price, err := strconv.ParseFloat(e.Close, 64)
	if err != nil {
		return stream.Tick{}, false
	}
	open, _ := strconv.ParseFloat(e.Open, 64)
	high, _ := strconv.ParseFloat(e.High, 64)
	low, _ := strconv.ParseFloat(e.Low, 64)
	volume, _ := strconv.ParseFloat(e.Volume, 64)

	var change, changePct *float64
	if open != 0 {
		c := price - open
		pct := c / open * 100
		change, changePct = &c, &pct
	}

	return stream.Tick{
		Symbol:           e.Symbol,
		Price:            price,
		Change24h:        change,
		ChangePercent24h: changePct,
		High24h:          &high,
		Low24h:           &low,
		Volume24h:        &volume,
		Timestamp:        time.UnixMilli(e.EventTime).UTC(),
	}, true
}
