// Package news implements the RSS/HTTP news provider client: it fetches and
// normalizes feed items from the configured public sources into NewsItem
// records ready for the dedup/upsert pipeline.
package news

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

// Feed names one RSS source to poll.
type Feed struct {
	Source types.NewsSource
	URL    string
}

// Config lists the feeds this client polls.
type Config struct {
	Feeds []Feed
}

// Client fetches and normalizes items from configured RSS feeds.
type Client struct {
	cfg    Config
	parser *gofeed.Parser
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg, parser: gofeed.NewParser()}
}

// FetchAll polls every configured feed, continuing past a single feed's
// failure so one dead source never blocks ingestion of the rest.
func (c *Client) FetchAll(ctx context.Context) ([]types.NewsItem, []error) {
	var items []types.NewsItem
	var errs []error

	for _, feed := range c.cfg.Feeds {
		fetched, err := c.fetchOne(ctx, feed)
		if err != nil {
			log.Warn().Err(err).Str("source", string(feed.Source)).Str("url", feed.URL).Msg("news feed fetch failed")
			errs = append(errs, err)
			continue
		}
		items = append(items, fetched...)
	}
	return items, errs
}

func (c *Client) fetchOne(ctx context.Context, feed Feed) ([]types.NewsItem, error) {
	parsed, err := c.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.NetworkError, err)
	}

	now := time.Now().UTC()
	items := make([]types.NewsItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}
		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		}

		raw := map[string]any{
			"guid":        item.GUID,
			"description": item.Description,
			"author":      authorName(item),
		}

		items = append(items, types.NewsItem{
			Source:       feed.Source,
			SourceID:     item.GUID,
			Title:        item.Title,
			URL:          item.Link,
			PublishedAt:  publishedAt,
			Summary:      item.Description,
			Raw:          raw,
			DiscoveredAt: now,
		})
	}
	return items, nil
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}
