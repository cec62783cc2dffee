package query

import (
	"strings"

	"nostr-torrent/internal/types"
)

// Match reports whether an announcement satisfies the plan.
// Tags need any case-insensitive topic hit; keywords must all occur
// somewhere in the searchable text.
func (p Plan) Match(ann *types.Announcement) bool {
	if len(p.Tags) > 0 && !hasAnyTopic(ann.Topics, p.Tags) {
		return false
	}
	if len(p.Keywords) == 0 {
		return true
	}

	haystack := searchableText(ann)
	for _, kw := range p.Keywords {
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	return true
}

func hasAnyTopic(topics, tags []string) bool {
	for _, tag := range tags {
		for _, topic := range topics {
			if strings.EqualFold(topic, tag) {
				return true
			}
		}
	}
	return false
}

// searchableText joins title, content, info hash, topics, refs and file names
func searchableText(ann *types.Announcement) string {
	parts := make([]string, 0, 3+len(ann.Topics)+len(ann.Refs)+len(ann.Files))
	parts = append(parts, ann.Title, ann.Content, ann.InfoHash)
	parts = append(parts, ann.Topics...)
	parts = append(parts, ann.Refs...)
	for _, f := range ann.Files {
		parts = append(parts, f.Name)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
