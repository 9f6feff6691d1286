package feed

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

const userAgent = "feedcache/0.1"

// Probe fetches and parses a candidate feed URL, returning the feed's
// own title (or the URL when the feed carries none). The config editor
// uses it to sanity-check a subscription before saving.
func Probe(ctx context.Context, url string) (string, error) {
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	parsed, err := p.ParseURLWithContext(url, ctx)
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", url, err)
	}
	if parsed.Title == "" {
		return url, nil
	}
	return parsed.Title, nil
}
