// Package model defines shared data structures.
package model

import (
	"crypto/sha1"
	"encoding/hex"
)

// Subscription is one configured feed source. Immutable once built; a
// config reload constructs a fresh set.
type Subscription struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Enabled bool     `json:"enabled"`
	Tags    []string `json:"tags"`
}

// Entry is a single entry produced by the feed parser. Published keeps
// the raw date text from the feed; interpreting it is a display concern.
// Empty fields mean the feed did not supply them.
type Entry struct {
	Title     string
	Link      string
	Published string
	EntryID   string
}

// Item is the read-model for a cached article. It always reflects
// persisted state, never an in-flight fetch.
type Item struct {
	FeedID    string `json:"feed_id"`
	FeedTitle string `json:"feed_title"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published"`
}

// DeriveFeedID maps a feed URL to a stable 12-char hex identity, so the
// same URL resolves to the same feed across runs.
func DeriveFeedID(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}

// ItemID returns the dedup key for the entry: the feed-supplied id wins,
// then the link, then a content hash of title and published text. Feeds
// that reuse links across entries but carry stable guids dedup by guid.
func (e Entry) ItemID() string {
	if e.EntryID != "" {
		return e.EntryID
	}
	if e.Link != "" {
		return e.Link
	}
	sum := sha1.Sum([]byte(e.Title + "\n" + e.Published))
	return hex.EncodeToString(sum[:])
}
