// Package fetch implements the conditional-GET fetch and reconcile
// loop that keeps the cache in sync with remote feeds.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"

	"feedcache/internal/cache"
	"feedcache/internal/feed"
	"feedcache/internal/model"
)

const (
	userAgent      = "feedcache/0.1"
	requestTimeout = 20 * time.Second

	// maxEntriesPerFetch bounds a single reconcile against pathological
	// feeds; anything past the first 200 entries is dropped.
	maxEntriesPerFetch = 200
	maxBodyBytes       = 10 << 20
)

// Fetcher reconciles remote feeds against one cache store handle.
type Fetcher struct {
	store  *cache.Store
	client *http.Client
}

// New creates a fetcher over the given store. The client follows
// redirects and bounds every request, so one dead feed cannot hang a
// refresh loop.
func New(store *cache.Store) *Fetcher {
	return &Fetcher{
		store:  store,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Refresh fetches one subscription and merges the result into the
// cache. It never fails to its caller: every error path degrades to the
// currently cached items plus a human-readable status line.
func (f *Fetcher) Refresh(ctx context.Context, sub model.Subscription) ([]model.Item, string) {
	etag, lastModified, err := f.store.FeedMeta(sub.ID)
	if err != nil {
		// Proceed as a first fetch; the conditional headers are an
		// optimization, not a requirement.
		lgr.Printf("WARN feed meta for %s unavailable: %v", sub.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sub.URL, nil)
	if err != nil {
		fetchResults.WithLabelValues(resultNetworkError).Inc()
		return f.cached(sub, fmt.Sprintf("Network error, showing cached items: %v", err))
	}
	req.Header.Set("User-Agent", userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		fetchResults.WithLabelValues(resultNetworkError).Inc()
		return f.cached(sub, fmt.Sprintf("Network error, showing cached items: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		fetchResults.WithLabelValues(resultNotModified).Inc()
		return f.cached(sub, "Not modified (304), loaded from cache.")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fetchResults.WithLabelValues(resultHTTPError).Inc()
		return f.cached(sub, fmt.Sprintf("HTTP %d, showing cached items.", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		fetchResults.WithLabelValues(resultNetworkError).Inc()
		return f.cached(sub, fmt.Sprintf("Network error, showing cached items: %v", err))
	}

	entries, err := feed.Parse(body)
	if err != nil {
		fetchResults.WithLabelValues(resultParseError).Inc()
		return f.cached(sub, fmt.Sprintf("Failed to parse feed XML, showing cached items: %v", err))
	}
	if len(entries) > maxEntriesPerFetch {
		entries = entries[:maxEntriesPerFetch]
	}

	inserted, err := f.store.UpsertItems(sub, entries)
	if err != nil {
		fetchResults.WithLabelValues(resultStoreError).Inc()
		return f.cached(sub, fmt.Sprintf("Cache write failed, showing cached items: %v", err))
	}

	if err := f.store.UpsertFeedMeta(sub.ID, sub.URL, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")); err != nil {
		lgr.Printf("WARN persisting conditional headers for %s: %v", sub.ID, err)
	}

	// Read back from the store rather than returning the parsed
	// entries: the caller gets the same ordering a pure cache read
	// would produce, merged with previously cached items outside this
	// fetch's window.
	items, err := f.store.ReadItems(sub, 0)
	if err != nil {
		fetchResults.WithLabelValues(resultStoreError).Inc()
		return nil, fmt.Sprintf("Cache read failed: %v", err)
	}
	fetchResults.WithLabelValues(resultOK).Inc()
	return items, fmt.Sprintf("Updated. New items: %d.", inserted)
}

// cached reads back whatever the store currently has for the feed.
func (f *Fetcher) cached(sub model.Subscription, status string) ([]model.Item, string) {
	items, err := f.store.ReadItems(sub, 0)
	if err != nil {
		lgr.Printf("WARN reading cached items for %s: %v", sub.ID, err)
		return nil, status
	}
	return items, status
}

// RefreshAll refreshes every subscription in sequence on its own store
// handle, so a long bulk run cannot contend with an interactive
// fetcher's transactions. It returns a status line per feed id.
func RefreshAll(ctx context.Context, dbPath string, subs []model.Subscription) (map[string]string, error) {
	store, err := cache.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store for bulk refresh: %w", err)
	}
	defer store.Close()

	f := New(store)
	statuses := make(map[string]string, len(subs))
	for i, sub := range subs {
		select {
		case <-ctx.Done():
			lgr.Printf("INFO bulk refresh stopped after %d/%d feeds", i, len(subs))
			return statuses, ctx.Err()
		default:
		}
		_, status := f.Refresh(ctx, sub)
		statuses[sub.ID] = status
		lgr.Printf("INFO refreshed %s: %s", sub.Title, status)
	}
	return statuses, nil
}
