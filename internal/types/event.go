// Package types provides shared type definitions used across internal packages.
package types

import "github.com/nbd-wtf/go-nostr"

// KindTorrent is the NIP-35 torrent announcement kind.
const KindTorrent = 2003

// Event represents a Nostr event (NIP-01) as received from a relay
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
	Relay     string     `json:"-"` // Relay that delivered this copy
}

// SubscriptionFilter is the filter sent with every REQ of a search.
// Tags holds "#t" values and is only set when the query has no keywords.
type SubscriptionFilter struct {
	Kinds []int
	Limit int
	Tags  []string
}

// Wire converts the filter to the go-nostr representation used for the REQ frame
func (f SubscriptionFilter) Wire() nostr.Filter {
	wf := nostr.Filter{
		Kinds: f.Kinds,
		Limit: f.Limit,
	}
	if len(f.Tags) > 0 {
		wf.Tags = nostr.TagMap{"t": f.Tags}
	}
	return wf
}
