package aggregator

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostr-torrent/internal/relay"
	"nostr-torrent/internal/relay/relaytest"
	"nostr-torrent/internal/types"
)

const testGrace = 50 * time.Millisecond

func newTestAggregator(opts Options) *Aggregator {
	if opts.GracePeriod == 0 {
		opts.GracePeriod = testGrace
	}
	return New(opts)
}

// collect drains a session until both streams close
func collect(t *testing.T, s *Session) ([]types.Announcement, []Status) {
	t.Helper()

	var results []types.Announcement
	var statuses []Status
	status, res := s.Status(), s.Results()
	timeout := time.After(10 * time.Second)

	for status != nil || res != nil {
		select {
		case st, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			statuses = append(statuses, st)
		case ann, ok := <-res:
			if !ok {
				res = nil
				continue
			}
			results = append(results, ann)
		case <-timeout:
			t.Fatal("session did not finish")
		}
	}
	return results, statuses
}

func lastOfKind(statuses []Status, kind StatusKind) (Status, bool) {
	for i := len(statuses) - 1; i >= 0; i-- {
		if statuses[i].Kind == kind {
			return statuses[i], true
		}
	}
	return Status{}, false
}

func replyWith(events ...map[string]interface{}) relaytest.Handler {
	return func(p *relaytest.Peer, req relaytest.Req) {
		for _, evt := range events {
			p.Send("EVENT", req.SubID, evt)
		}
		p.Send("EOSE", req.SubID)
	}
}

func TestDuplicateAcrossRelaysEmittedOnce(t *testing.T) {
	evt := relaytest.TorrentEvent("same", []string{"x", "hash1"}, []string{"title", "Shared"})

	var wg sync.WaitGroup
	wg.Add(2)
	// Both relays send the event before either sends EOSE
	handler := func(p *relaytest.Peer, req relaytest.Req) {
		p.Send("EVENT", req.SubID, evt)
		wg.Done()
		wg.Wait()
		p.Send("EOSE", req.SubID)
	}
	a := relaytest.New(t, handler)
	b := relaytest.New(t, handler)

	s := newTestAggregator(Options{}).Search([]string{a.URL, b.URL}, "", 50)
	results, statuses := collect(t, s)

	require.Len(t, results, 1)
	assert.Equal(t, "Shared", results[0].Title)

	final, ok := lastOfKind(statuses, StatusComplete)
	require.True(t, ok)
	assert.Equal(t, 2, final.EndMarkers)
	assert.Equal(t, 2, final.Opened)
	assert.Equal(t, 1, final.Results)
	assert.False(t, final.NoResults)
}

func TestSameEventTwiceFromOneRelay(t *testing.T) {
	evt := relaytest.TorrentEvent("dup", []string{"x", "hash1"})
	r := relaytest.New(t, replyWith(evt, evt, evt))

	results, statuses := collect(t, newTestAggregator(Options{}).Search([]string{r.URL}, "", 10))

	assert.Len(t, results, 1)
	final, ok := lastOfKind(statuses, StatusComplete)
	require.True(t, ok)
	assert.Equal(t, 1, final.Results)
}

func TestRejectedEventStaysSeen(t *testing.T) {
	invalid := relaytest.TorrentEvent("x1") // no info hash
	valid := relaytest.TorrentEvent("x1", []string{"x", "hash"})
	r := relaytest.New(t, replyWith(invalid, valid))

	results, _ := collect(t, newTestAggregator(Options{}).Search([]string{r.URL}, "", 10))
	assert.Empty(t, results)
}

func TestTagQueryFiltersClientSide(t *testing.T) {
	linux := relaytest.TorrentEvent("a", []string{"x", "h1"}, []string{"t", "linux"})
	windows := relaytest.TorrentEvent("b", []string{"x", "h2"}, []string{"t", "windows"}, []string{"title", "ubuntu iso"})
	r := relaytest.New(t, replyWith(linux, windows))

	results, _ := collect(t, newTestAggregator(Options{}).Search([]string{r.URL}, "ubuntu,linux", 20))

	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].EventID)

	reqs := r.Reqs()
	require.Len(t, reqs, 1)
	assert.Equal(t, []interface{}{"ubuntu", "linux"}, reqs[0].Filter["#t"])
	assert.Equal(t, float64(20), reqs[0].Filter["limit"])
}

func TestKeywordQueryNeedsEveryKeyword(t *testing.T) {
	both := relaytest.TorrentEvent("a", []string{"x", "h1"}, []string{"title", "Ubuntu 22.04 LTS"})
	one := relaytest.TorrentEvent("b", []string{"x", "h2"}, []string{"title", "Ubuntu 20.04"})
	r := relaytest.New(t, replyWith(both, one))

	results, _ := collect(t, newTestAggregator(Options{}).Search([]string{r.URL}, "ubuntu 22.04", 20))

	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].EventID)
	assert.NotContains(t, r.Reqs()[0].Filter, "#t")
}

func TestEmptyEndpointList(t *testing.T) {
	results, statuses := collect(t, newTestAggregator(Options{}).Search(nil, "linux", 10))

	assert.Empty(t, results)
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusConfigError, statuses[0].Kind)
	assert.True(t, statuses[0].Complete)
	assert.Equal(t, "no relays configured", statuses[0].String())
}

func TestFailedEndpointDoesNotBlockCompletion(t *testing.T) {
	r := relaytest.New(t, replyWith(relaytest.TorrentEvent("a", []string{"x", "h"})))

	results, statuses := collect(t, newTestAggregator(Options{}).Search([]string{"ws://127.0.0.1:1", r.URL}, "", 10))

	assert.Len(t, results, 1)
	_, sawError := lastOfKind(statuses, StatusRelayError)
	assert.True(t, sawError)
	final, ok := lastOfKind(statuses, StatusComplete)
	require.True(t, ok)
	assert.Equal(t, 2, final.Total)
	assert.Equal(t, 1, final.Opened)
	assert.Equal(t, 1, final.EndMarkers)
}

func TestAllEndpointsFail(t *testing.T) {
	results, statuses := collect(t, newTestAggregator(Options{}).Search([]string{"ws://127.0.0.1:1"}, "", 10))

	assert.Empty(t, results)
	final, ok := lastOfKind(statuses, StatusComplete)
	require.True(t, ok)
	assert.True(t, final.NoResults)
	assert.Zero(t, final.Opened)
}

func TestNoResultsFlag(t *testing.T) {
	r := relaytest.New(t, replyWith())

	_, statuses := collect(t, newTestAggregator(Options{}).Search([]string{r.URL}, "", 10))

	eose, ok := lastOfKind(statuses, StatusEndMarker)
	require.True(t, ok)
	assert.True(t, eose.NoResults)
	assert.Contains(t, eose.String(), "no results")
}

func TestDuplicateEOSECountsOnce(t *testing.T) {
	bReady := make(chan struct{})
	slow := make(chan struct{})
	a := relaytest.New(t, func(p *relaytest.Peer, req relaytest.Req) {
		<-bReady
		p.Send("EOSE", req.SubID)
		p.Send("EOSE", req.SubID)
	})
	b := relaytest.New(t, func(p *relaytest.Peer, req relaytest.Req) {
		close(bReady)
		<-slow
		p.Send("EOSE", req.SubID)
	})

	s := newTestAggregator(Options{}).Search([]string{a.URL, b.URL}, "", 10)

	var eoseSeen []Status
	var final Status
	for st := range s.Status() {
		if st.Kind == StatusEndMarker {
			eoseSeen = append(eoseSeen, st)
			if len(eoseSeen) == 1 {
				close(slow)
			}
		}
		if st.Kind == StatusComplete {
			final = st
		}
	}

	require.Len(t, eoseSeen, 2)
	assert.Equal(t, 1, eoseSeen[0].EndMarkers)
	assert.Equal(t, 2, final.EndMarkers)
}

func TestCancelStopsEmission(t *testing.T) {
	stop := make(chan struct{})
	r := relaytest.New(t, func(p *relaytest.Peer, req relaytest.Req) {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			id := strconv.Itoa(i)
			if err := p.Send("EVENT", req.SubID, relaytest.TorrentEvent(id, []string{"x", id})); err != nil {
				return
			}
		}
	})
	defer close(stop)

	agg := newTestAggregator(Options{})
	s := agg.Search([]string{r.URL}, "", 200)

	select {
	case <-s.Results():
	case <-time.After(5 * time.Second):
		t.Fatal("no result before cancel")
	}

	agg.Cancel()
	agg.Cancel()

	_, ok := <-s.Results()
	assert.False(t, ok, "result emitted after cancel")
	_, ok = <-s.Status()
	assert.False(t, ok, "status emitted after cancel")

	select {
	case <-r.Disconnected():
	case <-time.After(5 * time.Second):
		t.Fatal("relay connection not closed")
	}
}

func TestNewSearchSupersedesPrevious(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	r := relaytest.New(t, func(p *relaytest.Peer, req relaytest.Req) {
		p.Send("EVENT", req.SubID, relaytest.TorrentEvent(req.SubID, []string{"x", "h"}))
		<-hold
	})

	agg := newTestAggregator(Options{})
	first := agg.Search([]string{r.URL}, "", 10)
	<-first.Results()

	second := agg.Search([]string{r.URL}, "", 10)
	assert.NotEqual(t, first.ID, second.ID)

	select {
	case <-first.Done():
	default:
		t.Fatal("previous session still running")
	}
	_, ok := <-first.Results()
	assert.False(t, ok)

	ann := <-second.Results()
	assert.Equal(t, second.ID, ann.EventID)
	agg.Cancel()
}

func TestCapResults(t *testing.T) {
	events := make([]map[string]interface{}, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		events = append(events, relaytest.TorrentEvent(id, []string{"x", id}))
	}
	r := relaytest.New(t, replyWith(events...))

	capped, _ := collect(t, newTestAggregator(Options{CapResults: true}).Search([]string{r.URL}, "", 2))
	assert.Len(t, capped, 2)

	uncapped, _ := collect(t, newTestAggregator(Options{}).Search([]string{r.URL}, "", 2))
	assert.Len(t, uncapped, 5)
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds []relay.MessageKind
}

func (o *recordingObserver) RelayMessage(msg relay.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, msg.Kind)
}

func TestObserverSeesRelayMessages(t *testing.T) {
	r := relaytest.New(t, replyWith(relaytest.TorrentEvent("a", []string{"x", "h"})))
	obs := &recordingObserver{}

	collect(t, newTestAggregator(Options{Observer: obs}).Search([]string{r.URL}, "", 10))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []relay.MessageKind{relay.MessageOpened, relay.MessageEvent, relay.MessageEOSE}, obs.kinds)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connecting to 3 relays…", Status{Kind: StatusConnecting, Total: 3}.String())
	assert.Equal(t, "connected 1/3; querying…", Status{Kind: StatusConnected, Opened: 1, Total: 3}.String())
	assert.Equal(t, "results: 4 (live)…", Status{Kind: StatusResult, Results: 4}.String())
	assert.Equal(t, "done (EOSE 2/2) · results: 4", Status{Kind: StatusComplete, EndMarkers: 2, Opened: 2, Results: 4}.String())
}
