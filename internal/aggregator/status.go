package aggregator

import (
	"fmt"
	"strings"
)

// StatusKind says what changed in a session
type StatusKind int

const (
	StatusConnecting StatusKind = iota
	StatusConnected
	StatusRelayError
	StatusRelayClosed
	StatusEndMarker
	StatusResult
	StatusComplete
	StatusConfigError
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusRelayError:
		return "relay_error"
	case StatusRelayClosed:
		return "relay_closed"
	case StatusEndMarker:
		return "eose"
	case StatusResult:
		return "result"
	case StatusComplete:
		return "complete"
	case StatusConfigError:
		return "config_error"
	}
	return fmt.Sprintf("status(%d)", int(k))
}

// Status is a snapshot of a session's progress
type Status struct {
	Kind       StatusKind `json:"kind"`
	Relay      string     `json:"relay,omitempty"`
	Total      int        `json:"total"`       // endpoints in the search
	Opened     int        `json:"opened"`      // connections counted toward completion
	EndMarkers int        `json:"end_markers"` // EOSE received, at most one per connection
	Results    int        `json:"results"`
	Complete   bool       `json:"complete"`
	NoResults  bool       `json:"no_results"`
	Err        error      `json:"-"`
}

// String renders the status line shown to users
func (s Status) String() string {
	switch s.Kind {
	case StatusConfigError:
		return "no relays configured"
	case StatusConnecting:
		return fmt.Sprintf("connecting to %d relays…", s.Total)
	case StatusConnected:
		return fmt.Sprintf("connected %d/%d; querying…", s.Opened, s.Total)
	case StatusRelayError:
		if s.Err != nil {
			return fmt.Sprintf("error on %s: %v", s.Relay, s.Err)
		}
		return "error on " + s.Relay
	case StatusRelayClosed:
		return "closed " + s.Relay
	case StatusResult:
		if s.Complete {
			return fmt.Sprintf("results: %d", s.Results)
		}
		return fmt.Sprintf("results: %d (live)…", s.Results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "done (EOSE %d/%d) · results: %d", s.EndMarkers, s.Opened, s.Results)
	if s.NoResults {
		b.WriteString(" · no results")
	}
	return b.String()
}
