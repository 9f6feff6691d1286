package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcache/internal/model"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[[feeds]]
url = "https://example.com/feed.xml"
`)
	subs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	sub := subs[0]
	assert.Equal(t, "https://example.com/feed.xml", sub.URL)
	assert.Equal(t, model.DeriveFeedID(sub.URL), sub.ID)
	assert.Equal(t, sub.ID, sub.Title)
	assert.True(t, sub.Enabled)
	assert.Empty(t, sub.Tags)
}

func TestLoadExplicitFields(t *testing.T) {
	path := writeConfig(t, `
[[feeds]]
id = "hn"
title = "Hacker News"
url = "https://news.ycombinator.com/rss"
tags = ["tech", "news"]
`)
	subs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "hn", subs[0].ID)
	assert.Equal(t, "Hacker News", subs[0].Title)
	assert.Equal(t, []string{"tech", "news"}, subs[0].Tags)
}

func TestLoadDropsDisabled(t *testing.T) {
	path := writeConfig(t, `
[[feeds]]
url = "https://a.example/feed"

[[feeds]]
url = "https://b.example/feed"
enabled = false
`)
	subs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://a.example/feed", subs[0].URL)
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	// Three valid tables plus one without a url: the bad one is
	// skipped, the load still succeeds.
	path := writeConfig(t, `
[[feeds]]
url = "https://a.example/feed"

[[feeds]]
title = "no url here"

[[feeds]]
url = "https://b.example/feed"

[[feeds]]
url = "https://c.example/feed"
`)
	subs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestLoadStableIdentity(t *testing.T) {
	text := "[[feeds]]\nurl = \"https://example.com/feed.xml\"\n"
	first, err := Load(writeConfig(t, text))
	require.NoError(t, err)
	second, err := Load(writeConfig(t, text))
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestSourceResolution(t *testing.T) {
	assert.Equal(t, "explicit.toml", Source("explicit.toml"))

	t.Setenv("FEED_TOML", "from-env.toml")
	assert.Equal(t, "from-env.toml", Source(""))

	t.Setenv("FEED_TOML", "")
	assert.Equal(t, DefaultSource, Source(""))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/feed.toml"))
	assert.True(t, IsRemote("http://example.com/feed.toml"))
	assert.False(t, IsRemote("feed.toml"))
	assert.False(t, IsRemote("/etc/feedcache/feed.toml"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate("[[feeds]]\nurl = \"https://a.example/feed\"\n"))

	err := Validate("not == toml")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	err = Validate("feeds = \"nope\"")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "feeds must be a list")

	err = Validate("[[feeds]]\ntitle = \"missing url\"\n")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "feeds[0].url is required")
}

func TestSaveRemoteNotWritable(t *testing.T) {
	_, err := Save("[[feeds]]\nurl = \"https://a.example/feed\"\n", "https://example.com/feed.toml")
	assert.ErrorIs(t, err, ErrNotWritable)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.toml")
	text := "[[feeds]]\nurl = \"https://a.example/feed\"\n"

	saved, err := Save(text, path)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(saved))

	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
}

func TestSaveRejectsInvalidText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.toml")
	require.NoError(t, os.WriteFile(path, []byte("# original\n"), 0o644))

	_, err := Save("[[feeds]]\ntitle = \"no url\"\n", path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// The existing file is untouched on a failed save.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# original\n", string(data))
}
