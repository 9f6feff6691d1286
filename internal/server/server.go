// Package server exposes the core's read, fetch and config operations
// over HTTP for a presentation layer to consume.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-pkgz/lgr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedcache/internal/cache"
	"feedcache/internal/config"
	"feedcache/internal/feed"
	"feedcache/internal/fetch"
	"feedcache/internal/model"
)

const (
	probeTimeout       = 20 * time.Second
	bulkRefreshTimeout = 10 * time.Minute
)

// Server is the HTTP boundary. It holds the interactive store handle;
// bulk refreshes open their own handle via dbPath.
type Server struct {
	store        *cache.Store
	fetcher      *fetch.Fetcher
	dbPath       string
	configSource string
	router       chi.Router
}

// New creates a server over an already-open store.
func New(store *cache.Store, dbPath, configSource string) *Server {
	s := &Server{
		store:        store,
		fetcher:      fetch.New(store),
		dbPath:       dbPath,
		configSource: configSource,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/feeds", s.handleFeeds)
		r.Get("/feeds/{feedID}/items", s.handleItems)
		r.Post("/feeds/{feedID}/refresh", s.handleRefreshFeed)
		r.Post("/refresh", s.handleRefreshAll)
		r.Get("/config", s.handleGetConfig)
		r.Post("/config/validate", s.handleValidateConfig)
		r.Put("/config", s.handleSaveConfig)
		r.Post("/probe", s.handleProbe)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

// Start runs the HTTP listener.
func (s *Server) Start(addr string) error {
	lgr.Printf("INFO server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// subscription resolves a feed id against the current config.
func (s *Server) subscription(feedID string) (model.Subscription, error) {
	subs, err := config.Load(s.configSource)
	if err != nil {
		return model.Subscription{}, err
	}
	for _, sub := range subs {
		if sub.ID == feedID {
			return sub, nil
		}
	}
	return model.Subscription{}, fmt.Errorf("unknown feed %q", feedID)
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	subs, err := config.Load(s.configSource)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load config: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"feeds": subs})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscription(chi.URLParam(r, "feedID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	items, err := s.store.ReadItems(sub, 0)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read items: %v", err), http.StatusInternalServerError)
		return
	}
	items = Filter(SortNewestFirst(items), r.URL.Query().Get("q"))
	writeJSON(w, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleRefreshFeed(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscription(chi.URLParam(r, "feedID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	items, status := s.fetcher.Refresh(r.Context(), sub)
	writeJSON(w, map[string]any{"items": SortNewestFirst(items), "status": status})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	subs, err := config.Load(s.configSource)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load config: %v", err), http.StatusInternalServerError)
		return
	}
	// The bulk refresh runs in the background on its own store handle;
	// a client that disconnects does not stop it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bulkRefreshTimeout)
		defer cancel()
		if _, err := fetch.RefreshAll(ctx, s.dbPath, subs); err != nil {
			lgr.Printf("WARN bulk refresh: %v", err)
		}
	}()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"status": "refreshing", "feeds": len(subs)})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	text, label, err := config.ReadText(s.configSource)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read config: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"text":     text,
		"source":   label,
		"writable": !config.IsRemote(config.Source(s.configSource)),
	})
}

func (s *Server) handleValidateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := config.Validate(req.Text); err != nil {
		writeJSON(w, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	path, err := config.Save(req.Text, s.configSource)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrNotWritable):
			http.Error(w, err.Error(), http.StatusForbidden)
		case isValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, fmt.Sprintf("Save failed: %v", err), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "path": path})
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()
	title, err := feed.Probe(ctx, req.URL)
	if err != nil {
		writeJSON(w, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"ok": true, "title": title})
}

func isValidationError(err error) bool {
	var verr *config.ValidationError
	return errors.As(err, &verr)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lgr.Printf("WARN encoding response: %v", err)
	}
}
