package market

import (
	"context"
	"sync"
	"time"

	"github.com/marketpulse/aggregator/internal/stream"
)

// PollStreamConfig configures the equity trade-stream client. The market
// provider has no push feed, so the "stream" is a client that polls the
// REST quote endpoint for every subscribed symbol on a fixed interval and
// synthesizes a stream.Tick from each response.
type PollStreamConfig struct {
	Market       string // e.g. "us", "bist"
	PollInterval time.Duration
}

func (c PollStreamConfig) withDefaults() PollStreamConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// PollStreamClient implements stream.UpstreamClient by polling Client.Quote
// for every subscribed symbol once per interval.
type PollStreamClient struct {
	cfg    PollStreamConfig
	client *Client

	mu           sync.Mutex
	subscribed   map[string]bool
	ticks        chan stream.Tick
	disconnected chan struct{}
	cancel       context.CancelFunc
}

func NewPollStreamClient(cfg PollStreamConfig, client *Client) *PollStreamClient {
	return &PollStreamClient{
		cfg:        cfg.withDefaults(),
		client:     client,
		subscribed: make(map[string]bool),
	}
}

func (p *PollStreamClient) Connect(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.ticks = make(chan stream.Tick, 256)
	p.disconnected = make(chan struct{})
	p.cancel = cancel
	p.mu.Unlock()

	go p.pollLoop(pollCtx)
	return nil
}

func (p *PollStreamClient) Ticks() <-chan stream.Tick { return p.ticks }

func (p *PollStreamClient) Disconnected() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnected
}

func (p *PollStreamClient) Subscribe(ctx context.Context, symbols []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sym := range symbols {
		p.subscribed[sym] = true
	}
	return nil
}

func (p *PollStreamClient) Unsubscribe(ctx context.Context, symbols []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sym := range symbols {
		delete(p.subscribed, sym)
	}
	return nil
}

func (p *PollStreamClient) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (p *PollStreamClient) pollLoop(ctx context.Context) {
	p.mu.Lock()
	ticks := p.ticks
	disconnected := p.disconnected
	p.mu.Unlock()

	defer close(disconnected)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, ticks)
		}
	}
}

func (p *PollStreamClient) pollOnce(ctx context.Context, ticks chan<- stream.Tick) {
	p.mu.Lock()
	symbols := make([]string, 0, len(p.subscribed))
	for sym := range p.subscribed {
		symbols = append(symbols, sym)
	}
	p.mu.Unlock()

	for _, sym := range symbols {
		q, err := p.client.Quote(ctx, sym, p.cfg.Market)
		if err != nil {
			continue
		}
		change, changePct := q.Change, q.ChangePercent
		tick := stream.Tick{
			Symbol:           q.Symbol,
			Price:            q.Price,
			Change24h:        &change,
			ChangePercent24h: &changePct,
			High24h:          q.DayHigh,
			Low24h:           q.DayLow,
			Volume24h:        q.Volume,
			Timestamp:        q.FetchedAt,
		}
		select {
		case ticks <- tick:
		default:
		}
	}
}

var _ stream.UpstreamClient = (*PollStreamClient)(nil)
