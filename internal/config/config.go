// Package config loads, validates and persists the TOML subscription
// list. The source is a local file or an http(s) URL; remote sources are
// read-only.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-pkgz/lgr"
	"github.com/lafin/http"

	"feedcache/internal/model"
)

// DefaultSource is used when neither an explicit source nor the
// FEED_TOML environment variable is set.
const DefaultSource = "feed.toml"

const userAgent = "feedcache/0.1"

// ErrNotWritable is returned when a write targets a remote source.
var ErrNotWritable = errors.New("remote feed config is not writable")

// ValidationError describes a structural problem in edited config text.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Source resolves the effective config source: explicit value first,
// then FEED_TOML, then the default file name.
func Source(source string) string {
	src := strings.TrimSpace(source)
	if src == "" {
		src = strings.TrimSpace(os.Getenv("FEED_TOML"))
	}
	if src == "" {
		src = DefaultSource
	}
	return src
}

// IsRemote reports whether the source is an http(s) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ResolveLocalPath returns the absolute local path for the source.
// Remote sources have no writable path and resolve to ErrNotWritable.
func ResolveLocalPath(source string) (string, error) {
	src := Source(source)
	if IsRemote(src) {
		return "", ErrNotWritable
	}
	return filepath.Abs(src)
}

// ReadText returns the raw config text plus a label for where it was
// read from: the absolute path for local sources, the URL for remote.
func ReadText(source string) (string, string, error) {
	src := Source(source)
	if IsRemote(src) {
		body, _, err := http.Get(src, map[string]string{"User-Agent": userAgent})
		if err != nil {
			return "", src, fmt.Errorf("fetch %s: %w", src, err)
		}
		return string(body), src, nil
	}
	path, err := ResolveLocalPath(src)
	if err != nil {
		return "", src, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", path, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), path, nil
}

// Load reads the subscription document and returns the enabled
// subscriptions. A single malformed feed table is skipped, not fatal:
// one bad entry must not block the rest. An unreadable or unparseable
// document is.
func Load(source string) ([]model.Subscription, error) {
	text, label, err := ReadText(source)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Feeds []map[string]any `toml:"feeds"`
	}
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", label, err)
	}
	subs := make([]model.Subscription, 0, len(doc.Feeds))
	for i, table := range doc.Feeds {
		sub, ok := subscriptionFromTable(table)
		if !ok {
			lgr.Printf("WARN skipping malformed feeds[%d] in %s", i, label)
			continue
		}
		if sub.Enabled {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// subscriptionFromTable extracts one subscription. A blank or missing
// url disqualifies the table. Missing id derives from the url, missing
// title falls back to the id, enabled defaults to true.
func subscriptionFromTable(table map[string]any) (model.Subscription, bool) {
	url := strings.TrimSpace(asString(table["url"]))
	if url == "" {
		return model.Subscription{}, false
	}

	enabled := true
	if v, ok := table["enabled"].(bool); ok {
		enabled = v
	}

	tags := []string{}
	if raw, ok := table["tags"].([]any); ok {
		for _, t := range raw {
			tags = append(tags, asString(t))
		}
	}

	id := strings.TrimSpace(asString(table["id"]))
	if id == "" {
		id = model.DeriveFeedID(url)
	}
	title := strings.TrimSpace(asString(table["title"]))
	if title == "" {
		title = id
	}

	return model.Subscription{ID: id, Title: title, URL: url, Enabled: enabled, Tags: tags}, true
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

// Validate dry-runs a structural check over edited config text without
// constructing subscriptions: the document must parse, feeds (when
// present) must be a list of tables, and every table needs a non-blank
// url. Used before persisting edits.
func Validate(text string) error {
	var doc map[string]any
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return validationErrorf("invalid TOML: %v", err)
	}
	raw, ok := doc["feeds"]
	if !ok {
		return nil
	}
	switch feeds := raw.(type) {
	case []map[string]any:
		for i, table := range feeds {
			if strings.TrimSpace(asString(table["url"])) == "" {
				return validationErrorf("feeds[%d].url is required", i)
			}
		}
	case []any:
		for i, v := range feeds {
			table, ok := v.(map[string]any)
			if !ok {
				return validationErrorf("feeds[%d] must be a table", i)
			}
			if strings.TrimSpace(asString(table["url"])) == "" {
				return validationErrorf("feeds[%d].url is required", i)
			}
		}
	default:
		return validationErrorf("feeds must be a list of tables")
	}
	return nil
}

// Save validates config text and writes it to the resolved local path,
// atomically via a temp file rename. It returns the absolute path.
// Never called for remote sources; those fail with ErrNotWritable.
func Save(text, source string) (string, error) {
	path, err := ResolveLocalPath(source)
	if err != nil {
		return "", err
	}
	if err := Validate(text); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".feed-*.toml")
	if err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}
