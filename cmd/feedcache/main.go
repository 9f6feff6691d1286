package main

import (
	"flag"

	"github.com/go-pkgz/lgr"
	"github.com/joho/godotenv"

	"feedcache/internal/cache"
	"feedcache/internal/server"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "listen address")
	configSource := flag.String("config", "", "feed config path or URL (default: FEED_TOML or feed.toml)")
	dbPath := flag.String("db", "", "cache database path (default: RSS_CACHE_DB or rss_cache.sqlite3)")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	opts := []lgr.Option{lgr.Msec}
	if *debug {
		opts = append(opts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	lgr.Setup(opts...)

	path := cache.DefaultPath(*dbPath)
	store, err := cache.Open(path)
	if err != nil {
		lgr.Printf("FATAL open cache at %s: %v", path, err)
	}
	defer store.Close()
	lgr.Printf("INFO cache database: %s", path)

	srv := server.New(store, path, *configSource)
	if err := srv.Start(*addr); err != nil {
		lgr.Printf("FATAL server: %v", err)
	}
}
