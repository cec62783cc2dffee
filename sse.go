package main

import (
	"fmt"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"nostr-torrent/internal/aggregator"
	"nostr-torrent/internal/config"
	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SSE event types
const (
	SSEEventStatus = "status"
	SSEEventResult = "result"
	SSEEventDone   = "done"
)

// statusView is a Status as sent to browsers
type statusView struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	aggregator.Status
	Error string `json:"error,omitempty"`
}

func newStatusView(st aggregator.Status) statusView {
	v := statusView{Kind: st.Kind.String(), Text: st.String(), Status: st}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

// sendSSEEvent writes one "event: <type>\ndata: <json>\n\n" frame
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("SSE: failed to marshal event", "type", eventType, "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// searchStreamHandler streams a search as server-sent events
// GET /search/stream?q=ubuntu,linux&relays=...&limit=50
func (s *server) searchStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		util.RespondError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sseConnectionsActive.Add(1)
	defer sseConnectionsActive.Add(-1)

	cfg := config.Get()
	req := parseSearchRequest(r)
	relays, limit := req.resolve(cfg)
	log := LoggerFromContext(r.Context())
	log.Debug("SSE: search stream started", "relays", len(relays), "limit", limit)

	ctx := r.Context()
	final := runSearch(ctx, newAggregator(cfg), relays, req.Query, limit, searchHandlers{
		OnStatus: func(st aggregator.Status) {
			sendSSEEvent(w, flusher, SSEEventStatus, newStatusView(st))
		},
		OnResult: func(ann types.Announcement) {
			s.remember(ctx, &ann)
			sendSSEEvent(w, flusher, SSEEventResult, ann)
		},
	})

	if ctx.Err() != nil {
		log.Debug("SSE: client disconnected")
		return
	}
	sendSSEEvent(w, flusher, SSEEventDone, newStatusView(final))
}
