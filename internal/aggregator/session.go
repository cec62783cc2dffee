package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nostr-torrent/internal/announce"
	"nostr-torrent/internal/nostr"
	"nostr-torrent/internal/query"
	"nostr-torrent/internal/relay"
	"nostr-torrent/internal/types"
)

// inboxSize buffers relay messages between connection goroutines and the session loop
const inboxSize = 64

type connState struct {
	conn   *relay.Conn
	opened bool
	eose   bool
	closed bool
}

// Session is one search across a set of relays.
// All fields below the channels are owned by the run goroutine.
type Session struct {
	ID string

	endpoints []string
	plan      query.Plan
	filter    types.SubscriptionFilter
	opts      Options

	status  chan Status
	results chan types.Announcement
	inbox   chan relay.Message

	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once

	conns      map[string]*connState
	seen       map[string]bool
	opened     int
	endMarkers int
	resultN    int
	complete   bool
}

func newSession(subID string, endpoints []string, queryText string, limit int, opts Options) *Session {
	plan := query.Parse(queryText)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:        subID,
		endpoints: endpoints,
		plan:      plan,
		filter:    plan.Filter(limit),
		opts:      opts,
		status:    make(chan Status),
		results:   make(chan types.Announcement),
		inbox:     make(chan relay.Message, inboxSize),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		conns:     make(map[string]*connState, len(endpoints)),
		seen:      make(map[string]bool),
	}

	relayOpts := relay.Options{HandshakeTimeout: opts.HandshakeTimeout, Dialer: opts.Dialer}
	for _, ep := range endpoints {
		s.conns[ep] = &connState{conn: relay.New(ctx, ep, subID, s.filter, s.inbox, relayOpts)}
	}
	return s
}

// Status streams progress updates. Closed when the session ends.
func (s *Session) Status() <-chan Status {
	return s.status
}

// Results streams accepted announcements in arrival order. Closed when the session ends.
func (s *Session) Results() <-chan types.Announcement {
	return s.results
}

// Done is closed once the session has fully shut down
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

// Plan returns the parsed query
func (s *Session) Plan() query.Plan {
	return s.plan
}

// Filter returns the filter sent to relays
func (s *Session) Filter() types.SubscriptionFilter {
	return s.filter
}

// stop ends the session and waits for its goroutine to exit
func (s *Session) stop() {
	s.stopOnce.Do(s.cancel)
	<-s.stopped
}

func (s *Session) run() {
	defer close(s.stopped)
	defer close(s.results)
	defer close(s.status)
	defer s.teardown()

	if len(s.endpoints) == 0 {
		s.emitStatus(StatusConfigError, "")
		return
	}

	for _, ep := range s.endpoints {
		s.conns[ep].conn.Start()
	}
	s.emitStatus(StatusConnecting, "")

	var grace *time.Timer
	var graceC <-chan time.Time
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-graceC:
			slog.Debug("aggregator: search complete", "sub_id", s.ID, "results", s.resultN)
			return

		case msg := <-s.inbox:
			if msg.SubID != s.ID {
				continue
			}
			if s.opts.Observer != nil {
				s.opts.Observer.RelayMessage(msg)
			}
			s.handle(msg)

			if s.complete && grace == nil {
				grace = time.NewTimer(s.opts.GracePeriod)
				graceC = grace.C
			}
		}
	}
}

// teardown closes every connection; safe to run more than once
func (s *Session) teardown() {
	s.stopOnce.Do(s.cancel)
	for _, cs := range s.conns {
		cs.conn.Close()
	}
}

func (s *Session) handle(msg relay.Message) {
	cs := s.conns[msg.Relay]
	if cs == nil || cs.closed {
		return
	}

	switch msg.Kind {
	case relay.MessageOpened:
		if cs.opened {
			return
		}
		cs.opened = true
		s.opened++
		s.emitStatus(StatusConnected, msg.Relay)

	case relay.MessageEvent:
		s.handleEvent(msg.Event)

	case relay.MessageEOSE:
		if !cs.opened || cs.eose {
			return
		}
		cs.eose = true
		s.endMarkers++
		s.checkComplete()
		s.emitStatus(StatusEndMarker, msg.Relay)
		if s.complete {
			s.emitStatus(StatusComplete, "")
		}

	case relay.MessageClosed:
		cs.closed = true
		// An opened connection that dies before EOSE leaves the accounting
		if cs.opened && !cs.eose {
			cs.opened = false
			s.opened--
		}
		kind := StatusRelayClosed
		if msg.Err != nil {
			kind = StatusRelayError
			slog.Debug("aggregator: relay failed", "relay", msg.Relay, "error", msg.Err)
		}
		st := s.snapshot(kind, msg.Relay)
		st.Err = msg.Err
		s.send(st)

		wasComplete := s.complete
		s.checkComplete()
		if s.complete && !wasComplete {
			s.emitStatus(StatusComplete, "")
		}
	}
}

func (s *Session) handleEvent(evt types.Event) {
	// First copy wins; rejected events stay seen so a duplicate cannot revive them
	if evt.ID == "" || s.seen[evt.ID] {
		return
	}
	s.seen[evt.ID] = true

	ann, err := announce.Parse(evt)
	if err != nil {
		return
	}
	if !s.plan.Match(ann) {
		return
	}
	if s.opts.CapResults && s.resultN >= s.filter.Limit {
		return
	}

	select {
	case s.results <- *ann:
	case <-s.ctx.Done():
		return
	}
	s.resultN++
	slog.Debug("aggregator: result", "sub_id", s.ID, "event_id", nostr.ShortID(evt.ID), "relay", evt.Relay)
	s.emitStatus(StatusResult, evt.Relay)
}

// checkComplete marks the session complete once every opened connection has
// sent EOSE, or once no connection is left that could still report.
func (s *Session) checkComplete() {
	if s.complete {
		return
	}
	if s.opened > 0 && s.endMarkers >= s.opened {
		s.complete = true
		return
	}
	for _, cs := range s.conns {
		if !cs.closed && !cs.eose {
			return
		}
	}
	s.complete = true
}

func (s *Session) snapshot(kind StatusKind, relayURL string) Status {
	return Status{
		Kind:       kind,
		Relay:      relayURL,
		Total:      len(s.endpoints),
		Opened:     s.opened,
		EndMarkers: s.endMarkers,
		Results:    s.resultN,
		Complete:   s.complete || kind == StatusConfigError,
		NoResults:  (s.complete || kind == StatusEndMarker || kind == StatusConfigError) && s.resultN == 0,
	}
}

func (s *Session) emitStatus(kind StatusKind, relayURL string) {
	s.send(s.snapshot(kind, relayURL))
}

func (s *Session) send(st Status) {
	select {
	case s.status <- st:
	case <-s.ctx.Done():
	}
}
