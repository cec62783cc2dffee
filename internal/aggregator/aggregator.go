// Package aggregator fans one torrent search out to many relays and merges
// the replies into a single deduplicated, filtered stream.
//
// Only one search is live per Aggregator. Starting a new one, or calling
// Cancel, tears the previous session down completely before returning, so a
// stale socket can never deliver into a newer search.
package aggregator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nostr-torrent/internal/relay"
	"nostr-torrent/internal/util"
)

// DefaultGracePeriod is how long a session stays open after the last
// expected EOSE, to pick up frames already in flight.
const DefaultGracePeriod = 500 * time.Millisecond

// Observer receives every relay message a session accepts for processing.
// It is called from the session goroutine and must not block.
type Observer interface {
	RelayMessage(msg relay.Message)
}

// Options configures an Aggregator
type Options struct {
	GracePeriod      time.Duration
	CapResults       bool // stop emitting once the requested limit is reached
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
	Observer         Observer
}

// Aggregator owns at most one live search session
type Aggregator struct {
	opts Options

	mu         sync.Mutex
	current    *Session
	generation uint64
}

// New creates an Aggregator. A zero GracePeriod means DefaultGracePeriod;
// use a negative value to close immediately after the last EOSE.
func New(opts Options) *Aggregator {
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.GracePeriod < 0 {
		opts.GracePeriod = 0
	}
	return &Aggregator{opts: opts}
}

// Search tears down any running search and starts a new one.
// endpoints is treated as an ordered set. The caller must keep receiving
// from both Status and Results until they are closed or the session is
// cancelled.
func (a *Aggregator) Search(endpoints []string, queryText string, limit int) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		a.current.stop()
		a.current = nil
	}

	a.generation++
	subID := fmt.Sprintf("ts-%d-%s", a.generation, util.RandomString(8))

	s := newSession(subID, util.UniqStrings(endpoints), queryText, limit, a.opts)
	a.current = s

	slog.Debug("aggregator: search started",
		"sub_id", subID,
		"relays", len(s.endpoints),
		"tags", s.plan.Tags,
		"keywords", s.plan.Keywords,
		"limit", s.filter.Limit)

	go s.run()
	return s
}

// Cancel stops the running search, if any. When it returns, every relay
// connection is closed and nothing more will be emitted.
func (a *Aggregator) Cancel() {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()

	if s != nil {
		s.stop()
		slog.Debug("aggregator: search cancelled", "sub_id", s.ID)
	}
}
