// Package announce turns NIP-35 torrent events (kind 2003) into announcements.
package announce

import (
	"errors"
	"strconv"
	"strings"

	"nostr-torrent/internal/types"
	"nostr-torrent/internal/util"
)

// Rejection reasons returned by Parse
var (
	ErrWrongKind       = errors.New("not a torrent announcement")
	ErrMalformedTags   = errors.New("event has no tags")
	ErrMissingInfoHash = errors.New("announcement has no info hash")
)

const (
	// UntitledPlaceholder is used when neither a title tag nor content is available
	UntitledPlaceholder = "(untitled)"

	// titleFromContentRunes is how much content is used as a fallback title
	titleFromContentRunes = 120

	magnetPrefix    = "magnet:?xt=urn:btih:"
	webSocketScheme = "wss://"
)

// Parse validates a raw event and builds its Announcement.
func Parse(evt types.Event) (*types.Announcement, error) {
	if evt.Kind != types.KindTorrent {
		return nil, ErrWrongKind
	}
	if evt.Tags == nil {
		return nil, ErrMalformedTags
	}

	infoHash := util.GetTagValue(evt.Tags, "x")
	if infoHash == "" {
		return nil, ErrMissingInfoHash
	}

	title := util.GetTagValue(evt.Tags, "title")
	if title == "" {
		title = util.PrefixRunes(evt.Content, titleFromContentRunes)
	}
	if title == "" {
		title = UntitledPlaceholder
	}

	trackers := WebSocketTrackers(util.GetTagValues(evt.Tags, "tracker"))
	files := parseFiles(evt.Tags)

	var total int64
	for _, f := range files {
		total += f.Size
	}

	return &types.Announcement{
		EventID:   evt.ID,
		Title:     title,
		InfoHash:  infoHash,
		MagnetURI: MagnetURI(infoHash, trackers),
		Trackers:  trackers,
		Files:     files,
		TotalSize: total,
		Topics:    util.Dedupe(util.GetTagValues(evt.Tags, "t")),
		Refs:      util.Dedupe(util.GetTagValues(evt.Tags, "i")),
		Author:    evt.PubKey,
		CreatedAt: evt.CreatedAt,
		Content:   evt.Content,
		Relay:     evt.Relay,
	}, nil
}

// WebSocketTrackers keeps only wss:// trackers, in their original order.
// Other transports cannot be used by the transfer client in browsers.
func WebSocketTrackers(trackers []string) []string {
	out := make([]string, 0, len(trackers))
	for _, tr := range trackers {
		if strings.HasPrefix(tr, webSocketScheme) {
			out = append(out, tr)
		}
	}
	return out
}

// MagnetURI builds the magnet link for an info hash. Tracker order is kept:
// the transfer client treats it as priority.
func MagnetURI(infoHash string, trackers []string) string {
	var b strings.Builder
	b.WriteString(magnetPrefix)
	b.WriteString(infoHash)
	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(util.EncodeURIComponent(tr))
	}
	return b.String()
}

func parseFiles(tags [][]string) []types.FileEntry {
	var files []types.FileEntry
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != "file" {
			continue
		}
		entry := types.FileEntry{Name: tag[1]}
		if len(tag) >= 3 {
			entry.Size = parseSize(tag[2])
		}
		files = append(files, entry)
	}
	return files
}

// parseSize never fails; unparseable or negative sizes count as 0
func parseSize(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
