package news

import (
	"context"
	"time"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

const defaultDedupChunkSize = 50

// DedupResult is the aggregate outcome of a batch ingest.
type DedupResult struct {
	Inserted          int
	Updated           int
	Skipped           int
	TickersAttached   int
	TagsAttached      int
	ProcessingTimeMs  int64
	Errors            []string
}

// mergedItem is one canonicalized, deduplicated record ready for storage,
// plus the extracted ticker/tag candidates to attach once it has an ID.
type mergedItem struct {
	item    types.NewsItem
	tickers []string
	tags    []string
}

// Store is the storage collaborator dedup/upsert depends on. Implemented by
// *PostgresStore.
type Store interface {
	ExistingURLs(ctx context.Context, canonicalURLs []string) (map[string]string, error)
	Insert(ctx context.Context, item types.NewsItem) (id string, inserted bool, err error)
	UpdateMutableFields(ctx context.Context, id string, item types.NewsItem) error
	AttachTicker(ctx context.Context, newsItemID, tickerSymbol string, confidence float64) error
	AttachTag(ctx context.Context, newsItemID, tagName string) error
}

// Tagger extracts ticker/tag candidates from a news item's text. Implemented
// by Tag.
type Tagger func(title, summary string) (tickers []string, tags []string)

// Reader is the read-side storage collaborator the HTTP news endpoints
// depend on. Implemented by *PostgresStore.
type Reader interface {
	ListByCategory(ctx context.Context, category string, limit int) ([]types.NewsItem, error)
	GetByID(ctx context.Context, id string) (types.NewsItem, bool, error)
}

// Ingest canonicalizes, deduplicates, and upserts a batch of news items in
// fixed-size chunks, isolating one chunk's failure from the rest.
func Ingest(ctx context.Context, store Store, tag Tagger, items []types.NewsItem) DedupResult {
	startedAt := time.Now()
	merged := dedupeBatch(items, tag)

	var result DedupResult
	for offset := 0; offset < len(merged); offset += defaultDedupChunkSize {
		end := offset + defaultDedupChunkSize
		if end > len(merged) {
			end = len(merged)
		}
		chunkResult := ingestChunk(ctx, store, merged[offset:end])
		result.Inserted += chunkResult.Inserted
		result.Updated += chunkResult.Updated
		result.Skipped += chunkResult.Skipped
		result.TickersAttached += chunkResult.TickersAttached
		result.TagsAttached += chunkResult.TagsAttached
		result.Errors = append(result.Errors, chunkResult.Errors...)
	}

	result.ProcessingTimeMs = time.Since(startedAt).Milliseconds()
	return result
}

// dedupeBatch canonicalizes URLs, drops incomplete or within-batch duplicate
// items (keeping the earliest publishedAt), and merges items sharing a
// canonical URL.
func dedupeBatch(items []types.NewsItem, tag Tagger) []mergedItem {
	groups := make(map[string]*mergedItem)
	order := make([]string, 0, len(items))

	for _, raw := range items {
		canonical := Canonicalize(raw.URL)
		if canonical == "" || raw.Source == "" || raw.Title == "" || raw.PublishedAt.IsZero() {
			continue
		}
		raw.URL = canonical

		existing, ok := groups[canonical]
		if !ok {
			tickers, tags := tag(raw.Title, raw.Summary)
			groups[canonical] = &mergedItem{item: raw, tickers: tickers, tags: tags}
			order = append(order, canonical)
			continue
		}
		mergeInto(existing, raw)
	}

	out := make([]mergedItem, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// mergeInto folds dup into existing, keeping whichever of the two has the
// earlier publishedAt as the base record (title, publishedAt, sourceId),
// unioning raw fields (first writer wins per key) and recording every
// superseded raw payload under "_duplicates".
func mergeInto(existing *mergedItem, dup types.NewsItem) {
	base := existing.item
	other := dup
	if dup.PublishedAt.Before(existing.item.PublishedAt) {
		base, other = dup, existing.item
	}

	merged := base
	if merged.Raw == nil {
		merged.Raw = map[string]any{}
	}
	for k, v := range other.Raw {
		if _, taken := merged.Raw[k]; !taken {
			merged.Raw[k] = v
		}
	}
	duplicates, _ := merged.Raw["_duplicates"].([]map[string]any)
	duplicates = append(duplicates, other.Raw)
	merged.Raw["_duplicates"] = duplicates

	existing.item = merged
}

// ingestChunk partitions a chunk by existing storage URLs, inserts the new
// ones, updates mutable fields on the rest, and attaches ticker/tag
// associations for every item regardless of whether it was inserted or
// updated.
func ingestChunk(ctx context.Context, store Store, chunk []mergedItem) DedupResult {
	var result DedupResult

	urls := make([]string, len(chunk))
	for i, m := range chunk {
		urls[i] = m.item.URL
	}

	existingIDs, err := store.ExistingURLs(ctx, urls)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	for _, m := range chunk {
		id, existed := existingIDs[m.item.URL]

		if existed {
			if err := store.UpdateMutableFields(ctx, id, m.item); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Updated++
		} else {
			newID, inserted, err := store.Insert(ctx, m.item)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			id = newID
			if inserted {
				result.Inserted++
			} else {
				// a concurrent insert won the race: the existing row is left
				// unchanged and counted as skipped; tickers and tags below
				// attach to its id
				result.Skipped++
			}
		}

		for _, symbol := range m.tickers {
			if err := store.AttachTicker(ctx, id, symbol, 1.0); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.TickersAttached++
		}
		for _, tagName := range m.tags {
			if err := store.AttachTag(ctx, id, tagName); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.TagsAttached++
		}
	}

	return result
}
