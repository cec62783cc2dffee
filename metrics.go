package main

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"nostr-torrent/internal/relay"
)

var serverStartTime = time.Now()

// HTTP metrics
var (
	httpRequestsTotal atomic.Int64
	httpErrorsTotal   atomic.Int64
)

// Search metrics
var (
	searchesStarted   atomic.Int64
	searchesCancelled atomic.Int64
	resultsEmitted    atomic.Int64
)

// Transfer metrics
var (
	torrentsAdded atomic.Int64
)

// Cache metrics
var (
	cacheHitsTotal   atomic.Int64
	cacheMissesTotal atomic.Int64
)

var sseConnectionsActive atomic.Int64

// relayCounters tracks traffic from one relay
type relayCounters struct {
	opened atomic.Int64
	events atomic.Int64
	eose   atomic.Int64
	errors atomic.Int64
	closed atomic.Int64
}

// relayStats aggregates per-relay counters across all searches
type relayStats struct {
	relays *xsync.MapOf[string, *relayCounters]
}

func newRelayStats() *relayStats {
	return &relayStats{relays: xsync.NewMapOf[string, *relayCounters]()}
}

var relayMetrics = newRelayStats()

// RelayMessage counts one relay message; called by search sessions
func (s *relayStats) RelayMessage(msg relay.Message) {
	c, _ := s.relays.LoadOrCompute(msg.Relay, func() *relayCounters {
		return &relayCounters{}
	})
	switch msg.Kind {
	case relay.MessageOpened:
		c.opened.Add(1)
	case relay.MessageEvent:
		c.events.Add(1)
	case relay.MessageEOSE:
		c.eose.Add(1)
	case relay.MessageClosed:
		if msg.Err != nil {
			c.errors.Add(1)
		} else {
			c.closed.Add(1)
		}
	}
}

type relaySnapshot struct {
	URL    string `json:"url"`
	Opened int64  `json:"opened"`
	Events int64  `json:"events"`
	EOSE   int64  `json:"eose"`
	Errors int64  `json:"errors"`
	Closed int64  `json:"closed"`
}

// Snapshot returns the counters sorted by relay URL
func (s *relayStats) Snapshot() []relaySnapshot {
	var out []relaySnapshot
	s.relays.Range(func(url string, c *relayCounters) bool {
		out = append(out, relaySnapshot{
			URL:    url,
			Opened: c.opened.Load(),
			Events: c.events.Load(),
			EOSE:   c.eose.Load(),
			Errors: c.errors.Load(),
			Closed: c.closed.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func writeMetric(w http.ResponseWriter, name, typ, help string, value interface{}) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, typ)
	fmt.Fprintf(w, "%s %v\n\n", name, value)
}

// metricsHandler serves Prometheus text format
func (s *server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	fmt.Fprintf(w, "# HELP nostr_torrent_build_info Build and configuration information\n")
	fmt.Fprintf(w, "# TYPE nostr_torrent_build_info gauge\n")
	fmt.Fprintf(w, "nostr_torrent_build_info{cache_backend=%q,go_version=%q} 1\n\n", s.cacheBackend, runtime.Version())

	writeMetric(w, "process_start_time_seconds", "gauge", "Unix timestamp of process start", serverStartTime.Unix())
	writeMetric(w, "process_uptime_seconds", "gauge", "Time since process started", int64(time.Since(serverStartTime).Seconds()))
	writeMetric(w, "go_goroutines", "gauge", "Number of active goroutines", runtime.NumGoroutine())

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", httpRequestsTotal.Load())
	writeMetric(w, "http_errors_total", "counter", "Total number of HTTP 5xx errors", httpErrorsTotal.Load())
	writeMetric(w, "sse_connections_active", "gauge", "Number of active SSE connections", sseConnectionsActive.Load())

	writeMetric(w, "searches_started_total", "counter", "Searches started", searchesStarted.Load())
	writeMetric(w, "searches_cancelled_total", "counter", "Searches cancelled before completion", searchesCancelled.Load())
	writeMetric(w, "search_results_total", "counter", "Announcements emitted by searches", resultsEmitted.Load())
	writeMetric(w, "torrents_added_total", "counter", "Torrents loaded into the transfer client", torrentsAdded.Load())

	writeMetric(w, "cache_hits_total", "counter", "Announcement cache hits", cacheHitsTotal.Load())
	writeMetric(w, "cache_misses_total", "counter", "Announcement cache misses", cacheMissesTotal.Load())

	relays := relayMetrics.Snapshot()
	if len(relays) == 0 {
		return
	}
	perRelay := []struct {
		name, help string
		value      func(relaySnapshot) int64
	}{
		{"nostr_relay_opened_total", "Connections opened per relay", func(r relaySnapshot) int64 { return r.Opened }},
		{"nostr_relay_events_total", "EVENT frames per relay", func(r relaySnapshot) int64 { return r.Events }},
		{"nostr_relay_eose_total", "EOSE frames per relay", func(r relaySnapshot) int64 { return r.EOSE }},
		{"nostr_relay_errors_total", "Connection failures per relay", func(r relaySnapshot) int64 { return r.Errors }},
		{"nostr_relay_closed_total", "Subscriptions closed by the relay", func(r relaySnapshot) int64 { return r.Closed }},
	}
	for _, m := range perRelay {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", m.name)
		for _, r := range relays {
			fmt.Fprintf(w, "%s{relay=%q} %d\n", m.name, r.URL, m.value(r))
		}
		fmt.Fprintf(w, "\n")
	}
}
