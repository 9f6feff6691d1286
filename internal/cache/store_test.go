package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcache/internal/model"
)

var testSub = model.Subscription{ID: "feed1", Title: "Feed One", URL: "https://example.com/feed", Enabled: true}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.sqlite3")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestFeedMetaRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	// Never-fetched feed: both values absent, no error.
	etag, lastModified, err := s.FeedMeta("feed1")
	require.NoError(t, err)
	assert.Empty(t, etag)
	assert.Empty(t, lastModified)

	require.NoError(t, s.UpsertFeedMeta("feed1", testSub.URL, `"abc"`, "Mon, 02 Jan 2006 15:04:05 GMT"))
	etag, lastModified, err = s.FeedMeta("feed1")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, etag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", lastModified)

	// Last writer wins, including clearing values back to absent.
	require.NoError(t, s.UpsertFeedMeta("feed1", testSub.URL, "", ""))
	etag, lastModified, err = s.FeedMeta("feed1")
	require.NoError(t, err)
	assert.Empty(t, etag)
	assert.Empty(t, lastModified)
}

func TestUpsertItemsIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	entries := []model.Entry{
		{Title: "a", Link: "https://example.com/a", EntryID: "ga"},
		{Title: "b", Link: "https://example.com/b", EntryID: "gb"},
	}

	n, err := s.UpsertItems(testSub, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-ingesting the identical batch inserts nothing.
	n, err = s.UpsertItems(testSub, entries)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	items, err := s.ReadItems(testSub, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestUpsertItemsNeverOverwrites(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.UpsertItems(testSub, []model.Entry{{Title: "original", EntryID: "g1", Published: "then"}})
	require.NoError(t, err)

	// Same dedup key with different content: insert is skipped and the
	// first-seen fields survive.
	n, err := s.UpsertItems(testSub, []model.Entry{{Title: "rewritten", EntryID: "g1", Published: "now"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	items, err := s.ReadItems(testSub, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "original", items[0].Title)
	assert.Equal(t, "then", items[0].Published)
}

func TestItemsScopedByFeed(t *testing.T) {
	s, _ := openTestStore(t)
	other := model.Subscription{ID: "feed2", Title: "Feed Two", URL: "https://example.org/feed", Enabled: true}

	// The same item id under two feeds is two rows.
	_, err := s.UpsertItems(testSub, []model.Entry{{Title: "x", EntryID: "shared"}})
	require.NoError(t, err)
	n, err := s.UpsertItems(other, []model.Entry{{Title: "x", EntryID: "shared"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items, err := s.ReadItems(other, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "feed2", items[0].FeedID)
	assert.Equal(t, "Feed Two", items[0].FeedTitle)
}

func TestReadItemsOrderAndLimit(t *testing.T) {
	s, _ := openTestStore(t)
	entries := []model.Entry{
		{Title: "first", EntryID: "1"},
		{Title: "second", EntryID: "2"},
		{Title: "third", EntryID: "3"},
	}
	_, err := s.UpsertItems(testSub, entries)
	require.NoError(t, err)

	// Most recently ingested first; the same-batch tie breaks by row id
	// descending, so read order is deterministic.
	items, err := s.ReadItems(testSub, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "third", items[0].Title)
	assert.Equal(t, "second", items[1].Title)
	assert.Equal(t, "first", items[2].Title)

	items, err = s.ReadItems(testSub, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "third", items[0].Title)
}

func TestReadItemsDefaultLimit(t *testing.T) {
	s, _ := openTestStore(t)
	var entries []model.Entry
	for i := 0; i < DefaultReadLimit+5; i++ {
		entries = append(entries, model.Entry{Title: "t", EntryID: string(rune('a' + i%26)) + string(rune('0' + i/26))})
	}
	n, err := s.UpsertItems(testSub, entries)
	require.NoError(t, err)
	require.Equal(t, DefaultReadLimit+5, n)

	items, err := s.ReadItems(testSub, 0)
	require.NoError(t, err)
	assert.Len(t, items, DefaultReadLimit)
}

func TestIndependentHandles(t *testing.T) {
	s1, path := openTestStore(t)
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s1.UpsertItems(testSub, []model.Entry{{Title: "via s1", EntryID: "x"}})
	require.NoError(t, err)

	// A second handle on the same file sees committed writes.
	items, err := s2.ReadItems(testSub, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "via s1", items[0].Title)
}

func TestDefaultPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "explicit.sqlite3")
	assert.Equal(t, abs, DefaultPath(abs))

	t.Setenv("RSS_CACHE_DB", filepath.Join(t.TempDir(), "env.sqlite3"))
	assert.Equal(t, os.Getenv("RSS_CACHE_DB"), DefaultPath(""))

	t.Setenv("RSS_CACHE_DB", "")
	got := DefaultPath("")
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, DefaultFile, filepath.Base(got))
}
