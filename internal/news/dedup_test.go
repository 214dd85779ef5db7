package news

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

type fakeStore struct {
	existing  map[string]string
	inserted  []types.NewsItem
	updated   map[string]types.NewsItem
	tickers   map[string][]string
	tags      map[string][]string
	nextID    int
}

func newFakeStore(existing map[string]string) *fakeStore {
	if existing == nil {
		existing = map[string]string{}
	}
	return &fakeStore{
		existing: existing,
		updated:  map[string]types.NewsItem{},
		tickers:  map[string][]string{},
		tags:     map[string][]string{},
	}
}

func (s *fakeStore) ExistingURLs(ctx context.Context, urls []string) (map[string]string, error) {
	out := map[string]string{}
	for _, u := range urls {
		if id, ok := s.existing[u]; ok {
			out[u] = id
		}
	}
	return out, nil
}

func (s *fakeStore) Insert(ctx context.Context, item types.NewsItem) (string, bool, error) {
	s.nextID++
	id := StableID(item.URL)
	s.inserted = append(s.inserted, item)
	return id, true, nil
}

func (s *fakeStore) UpdateMutableFields(ctx context.Context, id string, item types.NewsItem) error {
	s.updated[id] = item
	return nil
}

func (s *fakeStore) AttachTicker(ctx context.Context, newsItemID, tickerSymbol string, confidence float64) error {
	s.tickers[newsItemID] = append(s.tickers[newsItemID], tickerSymbol)
	return nil
}

func (s *fakeStore) AttachTag(ctx context.Context, newsItemID, tagName string) error {
	s.tags[newsItemID] = append(s.tags[newsItemID], tagName)
	return nil
}

func noTags(title, summary string) ([]string, []string) { return nil, nil }

func TestIngestDropsItemsMissingRequiredFields(t *testing.T) {
	store := newFakeStore(nil)
	items := []types.NewsItem{
		{Source: "gdelt", URL: "https://example.com/a"}, // missing title/publishedAt
	}
	result := Ingest(context.Background(), store, noTags, items)
	require.Equal(t, 0, result.Inserted)
	require.Empty(t, store.inserted)
}

func TestIngestMergesDuplicateURLsKeepingEarliestPublishedAt(t *testing.T) {
	store := newFakeStore(nil)
	earlier := time.Now().Add(-time.Hour)
	later := time.Now()

	items := []types.NewsItem{
		{Source: "gdelt", Title: "later", URL: "https://example.com/a?utm_source=x", PublishedAt: later, SourceID: "2"},
		{Source: "gdelt", Title: "earlier", URL: "https://example.com/a", PublishedAt: earlier, SourceID: "1"},
	}
	result := Ingest(context.Background(), store, noTags, items)
	require.Equal(t, 1, result.Inserted)
	require.Len(t, store.inserted, 1)
	require.Equal(t, "earlier", store.inserted[0].Title)
}

func TestIngestInsertsNewAndUpdatesExisting(t *testing.T) {
	existingURL := Canonicalize("https://example.com/b")
	existingID := StableID(existingURL)
	store := newFakeStore(map[string]string{existingURL: existingID})

	items := []types.NewsItem{
		{Source: "gdelt", Title: "new", URL: "https://example.com/a", PublishedAt: time.Now()},
		{Source: "gdelt", Title: "already there", URL: "https://example.com/b", PublishedAt: time.Now()},
	}
	result := Ingest(context.Background(), store, noTags, items)
	require.Equal(t, 1, result.Inserted)
	require.Equal(t, 1, result.Updated)
}

func TestIngestAttachesExtractedTickersAndTags(t *testing.T) {
	store := newFakeStore(nil)
	tagger := func(title, summary string) ([]string, []string) {
		return []string{"BTC"}, []string{"crypto"}
	}
	items := []types.NewsItem{
		{Source: "gdelt", Title: "Bitcoin news", URL: "https://example.com/a", PublishedAt: time.Now()},
	}
	result := Ingest(context.Background(), store, tagger, items)
	require.Equal(t, 1, result.TickersAttached)
	require.Equal(t, 1, result.TagsAttached)
}

func TestIngestIsIdempotentOnRerun(t *testing.T) {
	store := newFakeStore(nil)
	items := []types.NewsItem{
		{Source: "gdelt", Title: "a", URL: "https://example.com/a", PublishedAt: time.Now()},
		{Source: "gdelt", Title: "b", URL: "https://example.com/b", PublishedAt: time.Now()},
	}
	first := Ingest(context.Background(), store, noTags, items)
	require.Equal(t, 2, first.Inserted)

	for _, item := range store.inserted {
		store.existing[item.URL] = StableID(item.URL)
	}

	second := Ingest(context.Background(), store, noTags, items)
	require.Equal(t, 0, second.Inserted)
	require.Equal(t, 2, second.Updated)
}
