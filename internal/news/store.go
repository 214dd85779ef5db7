package news

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/marketpulse/aggregator/internal/providers/types"
)

const pgUniqueViolation = "23505"

// PostgresStore is the Postgres-backed Store implementation: URL-unique
// upsert plus ticker/tag association tables.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore builds a PostgresStore. timeout bounds every individual
// query; callers chunk large batches themselves.
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// ExistingURLs returns the stored ID for every canonicalURL already present.
func (s *PostgresStore) ExistingURLs(ctx context.Context, canonicalURLs []string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if len(canonicalURLs) == 0 {
		return map[string]string{}, nil
	}

	query := `SELECT id, url FROM news_items WHERE url = ANY($1)`
	rows, err := s.db.QueryxContext(ctx, query, pq.Array(canonicalURLs))
	if err != nil {
		return nil, fmt.Errorf("query existing news urls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(canonicalURLs))
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scan existing news url: %w", err)
		}
		out[url] = id
	}
	return out, rows.Err()
}

// Insert adds a new news item, tolerating a concurrent insert racing for the
// same URL: on a unique-constraint violation it looks the row up instead of
// failing, and reports inserted=false.
func (s *PostgresStore) Insert(ctx context.Context, item types.NewsItem) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rawJSON, err := json.Marshal(item.Raw)
	if err != nil {
		return "", false, fmt.Errorf("marshal news item raw: %w", err)
	}

	id := StableID(item.URL)
	category := item.Category
	if category == "" {
		category = types.CategoryForSource(item.Source)
	}
	query := `
		INSERT INTO news_items (id, source, source_id, category, title, url, published_at, language, summary, raw, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (url) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		id, item.Source, item.SourceID, category, item.Title, item.URL,
		item.PublishedAt, item.Language, item.Summary, rawJSON, item.DiscoveredAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgUniqueViolation {
			existing, lookupErr := s.ExistingURLs(ctx, []string{item.URL})
			if lookupErr != nil {
				return "", false, fmt.Errorf("lookup after conflicting insert: %w", lookupErr)
			}
			return existing[item.URL], false, nil
		}
		return "", false, fmt.Errorf("insert news item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("read insert result: %w", err)
	}
	if affected == 0 {
		existing, err := s.ExistingURLs(ctx, []string{item.URL})
		if err != nil {
			return "", false, fmt.Errorf("lookup after no-op insert: %w", err)
		}
		return existing[item.URL], false, nil
	}
	return id, true, nil
}

// UpdateMutableFields updates only fields that may legitimately change after
// first ingest (raw). title and publishedAt are never overwritten.
func (s *PostgresStore) UpdateMutableFields(ctx context.Context, id string, item types.NewsItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rawJSON, err := json.Marshal(item.Raw)
	if err != nil {
		return fmt.Errorf("marshal news item raw: %w", err)
	}

	query := `UPDATE news_items SET raw = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, rawJSON, id); err != nil {
		return fmt.Errorf("update news item: %w", err)
	}
	return nil
}

// AttachTicker upserts a (newsItemId, tickerSymbol) association, ignoring a
// duplicate-key error since the pair is already recorded.
func (s *PostgresStore) AttachTicker(ctx context.Context, newsItemID, tickerSymbol string, confidence float64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO news_ticker_associations (news_item_id, ticker_id, confidence)
		SELECT $1, t.id, $3 FROM tickers t WHERE t.symbol = $2
		ON CONFLICT (news_item_id, ticker_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, newsItemID, tickerSymbol, confidence); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgUniqueViolation {
			return nil
		}
		return fmt.Errorf("attach ticker association: %w", err)
	}
	return nil
}

// AttachTag upserts a (newsItemId, tagName) association, ignoring a
// duplicate-key error.
func (s *PostgresStore) AttachTag(ctx context.Context, newsItemID, tagName string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO news_tag_associations (news_item_id, tag_id)
		SELECT $1, g.id FROM tags g WHERE g.name = $2
		ON CONFLICT (news_item_id, tag_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, newsItemID, tagName); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgUniqueViolation {
			return nil
		}
		return fmt.Errorf("attach tag association: %w", err)
	}
	return nil
}

// UpsertTicker write-once-inserts a ticker symbol, returning its ID whether
// newly created or already present.
func (s *PostgresStore) UpsertTicker(ctx context.Context, symbol string, market types.Market, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO tickers (symbol, market, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), tickers.name)
		RETURNING id`
	var id string
	if err := s.db.QueryRowxContext(ctx, query, symbol, market, name).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert ticker: %w", err)
	}
	return id, nil
}

// UpsertTag write-once-inserts a lowercased tag name.
func (s *PostgresStore) UpsertTag(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO tags (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = tags.name
		RETURNING id`
	var id string
	if err := s.db.QueryRowxContext(ctx, query, name).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert tag: %w", err)
	}
	return id, nil
}

// KnownSymbols returns every ticker symbol currently stored, used to refresh
// the tagger's known-symbol set.
func (s *PostgresStore) KnownSymbols(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `SELECT symbol FROM tickers`)
	if err != nil {
		return nil, fmt.Errorf("query known symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan known symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// ListByCategory returns up to limit news items in category, most recent
// first.
func (s *PostgresStore) ListByCategory(ctx context.Context, category string, limit int) ([]types.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, source, source_id, category, title, url, published_at, language, summary, raw, discovered_at
		FROM news_items
		WHERE category = $1
		ORDER BY published_at DESC
		LIMIT $2`
	rows, err := s.db.QueryxContext(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list news items by category: %w", err)
	}
	defer rows.Close()

	var items []types.NewsItem
	for rows.Next() {
		item, err := scanNewsItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID returns a single news item by its stable ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (types.NewsItem, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT id, source, source_id, category, title, url, published_at, language, summary, raw, discovered_at
		FROM news_items
		WHERE id = $1`
	rows, err := s.db.QueryxContext(ctx, query, id)
	if err != nil {
		return types.NewsItem{}, false, fmt.Errorf("get news item: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return types.NewsItem{}, false, rows.Err()
	}
	item, err := scanNewsItem(rows)
	if err != nil {
		return types.NewsItem{}, false, err
	}
	return item, true, nil
}

func scanNewsItem(rows *sqlx.Rows) (types.NewsItem, error) {
	var item types.NewsItem
	var rawJSON []byte
	if err := rows.Scan(&item.ID, &item.Source, &item.SourceID, &item.Category, &item.Title,
		&item.URL, &item.PublishedAt, &item.Language, &item.Summary, &rawJSON, &item.DiscoveredAt); err != nil {
		return types.NewsItem{}, fmt.Errorf("scan news item: %w", err)
	}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &item.Raw); err != nil {
			return types.NewsItem{}, fmt.Errorf("unmarshal news item raw: %w", err)
		}
	}
	return item, nil
}

// Ping verifies storage connectivity for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}
