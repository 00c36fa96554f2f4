// Package api serves a bibliography over HTTP. One .bib file (optionally
// compressed) backs the server; endpoints expose the whole container, the
// entry and string constant views, and the query engine, with json, yaml,
// xml, or bib output. A WebSocket feed pushes reload notifications when
// file watching is enabled, and Prometheus metrics are served on /metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/FocuswithJustin/CedarBib/core/bibtex"
	"github.com/FocuswithJustin/CedarBib/core/store"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
	"github.com/FocuswithJustin/CedarBib/internal/watch"
)

// Version is reported by the root and health endpoints.
const Version = "0.3.0"

// Server serves one bibliography file.
type Server struct {
	cfg     Config
	hub     *Hub
	metrics *metrics

	mu       sync.RWMutex
	bib      *bibtex.Bibliography
	digest   string
	loadedAt time.Time

	startTime time.Time
}

// New loads the bibliography at cfg.Path and returns a server for it.
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		cfg:       cfg,
		hub:       NewHub(),
		metrics:   newMetrics(),
		startTime: time.Now(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Bibliography returns the currently served bibliography.
func (s *Server) Bibliography() *bibtex.Bibliography {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bib
}

// Reload reparses the backing file and swaps it in.
func (s *Server) Reload() error {
	bib, err := bibtex.Open(s.cfg.Path, s.parseOptions())
	if err != nil {
		s.metrics.parseFailure()
		return err
	}
	if s.cfg.MonthMacros {
		bib.UseMonthMacros()
	}
	digest := store.Digest([]byte(bib.String()))

	s.mu.Lock()
	s.bib = bib
	s.digest = digest
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.metrics.parseSuccess()
	s.metrics.setElements(bib.Len())
	logging.Info("bibliography loaded",
		"path", s.cfg.Path,
		"elements", bib.Len(),
		"digest", digest[:12])
	return nil
}

func (s *Server) parseOptions() bibtex.ParseOptions {
	return bibtex.ParseOptions{
		IncludeMeta: s.cfg.IncludeMeta,
		MonthMacros: s.cfg.MonthMacros,
	}
}

// swap installs an already-parsed bibliography, as delivered by the watcher.
func (s *Server) swap(bib *bibtex.Bibliography, digest string) {
	if s.cfg.MonthMacros {
		bib.UseMonthMacros()
	}
	s.mu.Lock()
	s.bib = bib
	s.digest = digest
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.metrics.parseSuccess()
	s.metrics.setElements(bib.Len())
}

// Handler returns the complete HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/bibliography", s.handleBibliography)
	mux.HandleFunc("/api/entries", s.handleEntries)
	mux.HandleFunc("/api/strings", s.handleStrings)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", s.metrics.handler())

	var handler http.Handler = s.metrics.middleware(mux)
	handler = logging.CombinedMiddleware(handler)
	return handler
}

// Start runs the hub, the optional file watcher, and the HTTP listener.
// It blocks until the listener fails or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	if s.cfg.Watch {
		if err := s.startWatcher(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	logging.ServerStartup("bibliography_api", "http", s.cfg.Addr,
		"path", s.cfg.Path,
		"watch", s.cfg.Watch)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// startWatcher reloads the served bibliography when the backing file
// changes and notifies WebSocket clients.
func (s *Server) startWatcher(ctx context.Context) error {
	dir := filepath.Dir(s.cfg.Path)
	base := filepath.Base(s.cfg.Path)

	w, err := watch.New(dir, watch.Config{
		Patterns:     []string{base},
		Debounce:     s.cfg.Debounce,
		ParseOptions: s.parseOptions(),
	})
	if err != nil {
		return err
	}
	s.mu.RLock()
	w.SetDigest(base, s.digest)
	s.mu.RUnlock()
	if err := w.Start(ctx); err != nil {
		return err
	}

	go func() {
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events():
				if !ok {
					return
				}
				s.handleChange(event)
			}
		}
	}()
	return nil
}

func (s *Server) handleChange(event watch.Event) {
	switch {
	case event.Op == watch.OpDelete:
		logging.Warn("served file removed, keeping last good copy", "path", event.Path)
		s.hub.Broadcast(ChangeMessage{
			Type:    "error",
			Path:    event.Path,
			Message: "bibliography file removed",
		})
	case event.Err != nil:
		s.metrics.parseFailure()
		s.hub.Broadcast(ChangeMessage{
			Type:    "error",
			Path:    event.Path,
			Message: event.Err.Error(),
		})
	default:
		s.swap(event.Bib, event.Digest)
		s.hub.Broadcast(ChangeMessage{
			Type:     "reload",
			Path:     event.Path,
			Elements: event.Bib.Len(),
			Digest:   event.Digest,
		})
	}
}
