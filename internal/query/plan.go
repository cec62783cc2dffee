// Package query turns the free-text search box into a relay filter and a
// client-side match predicate.
//
// Relays are only trusted with a coarse "#t" filter. Everything else,
// including keyword search, is evaluated locally on parsed announcements.
package query

import (
	"strings"
	"unicode"

	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
)

const (
	// MaxServerTags caps the "#t" values sent to relays
	MaxServerTags = 10

	// MaxLimit is the largest per-relay limit a search may request
	MaxLimit = 200
)

// Plan is the parsed form of a query string.
type Plan struct {
	Tags     []string `json:"tags"`     // topic labels, leading '#' stripped
	Keywords []string `json:"keywords"` // lowercase substrings, all must match
}

// Parse plans a query string.
//
//   - blank input matches everything
//   - "a, #b" is a tag list
//   - "a b" is a keyword list
//   - a single token is tried as both a tag and a keyword
//
// The last rule is a known heuristic: a lone word is read as a topic label and
// a search term at once, so a match needs the topic and the text.
func Parse(text string) Plan {
	text = strings.TrimSpace(text)
	if text == "" {
		return Plan{}
	}

	if strings.Contains(text, ",") {
		var tags []string
		for _, part := range strings.Split(text, ",") {
			tags = append(tags, stripHash(strings.TrimSpace(part)))
		}
		return Plan{Tags: util.UniqStrings(tags)}
	}

	if strings.ContainsFunc(text, unicode.IsSpace) {
		return Plan{Keywords: util.UniqStrings(strings.Fields(strings.ToLower(text)))}
	}

	return Plan{
		Tags:     util.UniqStrings([]string{stripHash(text)}),
		Keywords: []string{strings.ToLower(text)},
	}
}

// stripHash removes a single leading '#'
func stripHash(s string) string {
	return strings.TrimPrefix(s, "#")
}

// ServerTags returns the "#t" values to send to relays.
// Keyword searches defer entirely to client-side filtering.
func (p Plan) ServerTags() []string {
	if len(p.Tags) == 0 || len(p.Keywords) > 0 {
		return nil
	}
	return util.LimitSlice(p.Tags, MaxServerTags)
}

// Filter builds the subscription filter for a search with the given per-relay limit.
func (p Plan) Filter(limit int) types.SubscriptionFilter {
	return types.SubscriptionFilter{
		Kinds: []int{types.KindTorrent},
		Limit: ClampLimit(limit),
		Tags:  p.ServerTags(),
	}
}

// ClampLimit keeps a requested limit within [1, MaxLimit]
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
