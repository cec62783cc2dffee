package main

import (
	"context"
	"strings"

	"nostr-torrent/internal/aggregator"
	"nostr-torrent/internal/config"
	"nostr-torrent/internal/nostr"
	"nostr-torrent/internal/query"
	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
)

// searchRequest is a search as asked for by a user, before defaults apply
type searchRequest struct {
	Query  string
	Relays string // comma or newline separated; empty means configured relays
	Limit  int
}

// resolve applies configured defaults and normalizes the relay list
func (r searchRequest) resolve(cfg *config.Config) (relays []string, limit int) {
	relays = cfg.Relays
	if strings.TrimSpace(r.Relays) != "" {
		relays = util.SplitList(r.Relays)
	}
	relays = nostr.NormalizeRelayList(relays)

	limit = r.Limit
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}
	if limit > cfg.Search.MaxLimit {
		limit = cfg.Search.MaxLimit
	}
	return relays, query.ClampLimit(limit)
}

func newAggregator(cfg *config.Config) *aggregator.Aggregator {
	grace := cfg.Search.GracePeriod
	if grace == 0 {
		grace = -1 // zero means "close right away" in config
	}
	return aggregator.New(aggregator.Options{
		GracePeriod:      grace,
		CapResults:       cfg.Search.CapResults,
		HandshakeTimeout: cfg.Relay.HandshakeTimeout,
		Observer:         relayMetrics,
	})
}

// searchHandlers receive a session's output in order
type searchHandlers struct {
	OnStatus func(aggregator.Status)
	OnResult func(types.Announcement)
}

// runSearch drives one search until the session ends or ctx is cancelled.
// Both streams are drained so the session never blocks on a slow reader.
func runSearch(ctx context.Context, agg *aggregator.Aggregator, relays []string, text string, limit int, h searchHandlers) aggregator.Status {
	searchesStarted.Add(1)
	s := agg.Search(relays, text, limit)

	var last aggregator.Status
	status, results := s.Status(), s.Results()
	for status != nil || results != nil {
		select {
		case <-ctx.Done():
			agg.Cancel()
			searchesCancelled.Add(1)
			return last
		case st, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			last = st
			if h.OnStatus != nil {
				h.OnStatus(st)
			}
		case ann, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			resultsEmitted.Add(1)
			if h.OnResult != nil {
				h.OnResult(ann)
			}
		}
	}
	return last
}
