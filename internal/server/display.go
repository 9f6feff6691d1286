package server

import (
	"net/mail"
	"sort"
	"strings"
	"time"

	"feedcache/internal/model"
)

// publishedUnix best-effort parses a feed's raw published text: RFC 2822
// first (the RSS convention), then a few ISO 8601 shapes (the Atom
// one). The second return is false when nothing matches.
func publishedUnix(value string) (int64, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, false
	}
	if t, err := mail.ParseDate(v); err == nil {
		return t.Unix(), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// SortNewestFirst orders items for display by best-effort published
// time, newest first. Items without a parseable timestamp sort last;
// ties keep their read-back order. Persisted ordering stays
// insertion-based; this is strictly a display concern.
func SortNewestFirst(items []model.Item) []model.Item {
	type itemKey struct {
		missing bool
		ts      int64
	}
	keys := make([]itemKey, len(items))
	for i, it := range items {
		ts, ok := publishedUnix(it.Published)
		keys[i] = itemKey{missing: !ok, ts: ts}
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.missing != kb.missing {
			return !ka.missing
		}
		return ka.ts > kb.ts
	})

	out := make([]model.Item, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// Filter keeps items whose title, link or published text contains the
// query, case-insensitively. An empty query keeps everything.
func Filter(items []model.Item, query string) []model.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		hay := strings.ToLower(it.Title + "\n" + it.Link + "\n" + it.Published)
		if strings.Contains(hay, q) {
			out = append(out, it)
		}
	}
	return out
}
