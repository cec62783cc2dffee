package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nostr-torrent/internal/cache"
	"nostr-torrent/internal/config"
	"nostr-torrent/internal/transfer"
)

// maxUploadSize bounds POST /torrent, which may carry a .torrent file
const maxUploadSize = 4 << 20

// server holds what the HTTP handlers share
type server struct {
	announcements *cache.Announcements
	cacheBackend  string
	transfer      *transfer.Client

	// searchTimeout bounds a non-streaming search
	searchTimeout time.Duration
}

func limitBody(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

func securityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// data: for the QR code, media from our own file endpoint
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; img-src 'self' data:; media-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next(w, r)
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/search", http.StatusFound)
	})
	mux.HandleFunc("GET /search", securityHeaders(s.searchPageHandler))
	mux.HandleFunc("GET /search/stream", s.searchStreamHandler)
	mux.HandleFunc("GET /api/search", s.searchAPIHandler)
	mux.HandleFunc("GET /announcement/{id}", securityHeaders(s.announcementHandler))

	mux.HandleFunc("GET /torrent", securityHeaders(s.torrentPageHandler))
	mux.HandleFunc("POST /torrent", securityHeaders(limitBody(s.torrentAddHandler, maxUploadSize)))
	mux.HandleFunc("GET /torrent/stats", s.torrentStatsHandler)
	mux.HandleFunc("GET /torrent/files", s.torrentFilesHandler)
	mux.HandleFunc("GET /torrent/file/{index}", s.torrentFileHandler)

	mux.HandleFunc("GET /metrics", s.metricsHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	return RequestLoggingMiddleware(mux)
}

// serve runs the HTTP server until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, s *server) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "relays", len(cfg.Relays), "cache", s.cacheBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
