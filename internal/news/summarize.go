package news

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

// Summarizer produces a short summary for a news item's title and raw body
// text. Implemented by aitext.Client.Summarize, adapted to this shape by the
// composition root.
type Summarizer func(ctx context.Context, title, body string) (string, error)

// FillMissingSummaries calls summarizer for every item whose Summary is
// empty, isolating one item's failure from the rest of the batch: a down AI
// service degrades ingestion to summary-less items rather than blocking it.
func FillMissingSummaries(ctx context.Context, summarizer Summarizer, items []types.NewsItem) []types.NewsItem {
	if summarizer == nil {
		return items
	}
	out := make([]types.NewsItem, len(items))
	for i, item := range items {
		out[i] = item
		if item.Summary != "" {
			continue
		}
		body, _ := item.Raw["body"].(string)
		summary, err := summarizer(ctx, item.Title, body)
		if err != nil {
			log.Warn().Err(err).Str("url", item.URL).Msg("news summarization failed")
			continue
		}
		out[i].Summary = summary
	}
	return out
}
