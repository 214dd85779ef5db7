package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
  <title>Sample Feed</title>
  <item>
    <title>Fed signals rate pause</title>
    <link>https://example.com/a</link>
    <guid>abc-1</guid>
    <description>Summary text</description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
  </item>
  <item>
    <title></title>
    <link>https://example.com/b</link>
  </item>
</channel>
</rss>`

func TestFetchAllNormalizesItemsAndSkipsIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	client := New(Config{Feeds: []Feed{{Source: types.NewsSourceGoogleNews, URL: srv.URL}}})
	items, errs := client.FetchAll(context.Background())

	assert.Empty(t, errs)
	require.Len(t, items, 1, "the item missing a title is dropped")
	assert.Equal(t, "Fed signals rate pause", items[0].Title)
	assert.Equal(t, "https://example.com/a", items[0].URL)
	assert.Equal(t, types.NewsSourceGoogleNews, items[0].Source)
}

func TestFetchAllContinuesPastOneFeedFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer good.Close()

	client := New(Config{Feeds: []Feed{
		{Source: types.NewsSourceGDELT, URL: bad.URL},
		{Source: types.NewsSourceGoogleNews, URL: good.URL},
	}})
	items, errs := client.FetchAll(context.Background())

	assert.Len(t, errs, 1)
	require.Len(t, items, 1)
	assert.Equal(t, types.NewsSourceGoogleNews, items[0].Source)
}
