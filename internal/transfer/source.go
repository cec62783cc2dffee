package transfer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"

	"nostr-torrent/internal/util"
)

var (
	ErrUnknownSource = errors.New("transfer: source is neither a magnet URI, info hash nor .torrent file")
	// ErrFileSource is returned for .torrent paths unless AddOptions.AllowFiles is set
	ErrFileSource  = errors.New("transfer: local .torrent paths are not accepted")
	ErrBadMetaInfo = errors.New("transfer: invalid .torrent data")
)

// SourceKind tells how a source string is loaded
type SourceKind int

const (
	SourceMagnet SourceKind = iota
	SourceInfoHash
	SourceFile
)

// ClassifySource decides how AddTorrent interprets source
func ClassifySource(source string) (SourceKind, error) {
	s := strings.TrimSpace(source)
	switch {
	case strings.HasPrefix(strings.ToLower(s), "magnet:"):
		return SourceMagnet, nil
	case isHexInfoHash(s):
		return SourceInfoHash, nil
	case strings.HasSuffix(strings.ToLower(s), ".torrent"):
		return SourceFile, nil
	}
	return 0, ErrUnknownSource
}

func isHexInfoHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// AnnounceList merges tracker sets in order: defaults, then the comma or
// newline separated extras, then trackers carried by the source itself.
func AnnounceList(defaults []string, extra string, fromSource []string) []string {
	all := make([]string, 0, len(defaults)+len(fromSource)+4)
	all = append(all, defaults...)
	all = append(all, util.SplitList(extra)...)
	all = append(all, fromSource...)
	return util.UniqStrings(all)
}

// tiers puts each tracker in its own announce tier
func tiers(trackers []string) [][]string {
	out := make([][]string, 0, len(trackers))
	for _, tr := range trackers {
		out = append(out, []string{tr})
	}
	return out
}

func sourceTrackers(spec *torrent.TorrentSpec) []string {
	var out []string
	for _, tier := range spec.Trackers {
		out = append(out, tier...)
	}
	return out
}

// loadSpec builds a torrent spec for source without touching the network.
// Paths on the local filesystem are only opened when allowFiles is set.
func loadSpec(source string, allowFiles bool) (*torrent.TorrentSpec, error) {
	kind, err := ClassifySource(source)
	if err != nil {
		return nil, err
	}
	source = strings.TrimSpace(source)

	switch kind {
	case SourceMagnet:
		spec, err := torrent.TorrentSpecFromMagnetUri(source)
		if err != nil {
			return nil, fmt.Errorf("parse magnet: %w", err)
		}
		return spec, nil
	case SourceInfoHash:
		return &torrent.TorrentSpec{InfoHash: metainfo.NewHashFromHex(strings.ToLower(source))}, nil
	}

	if !allowFiles {
		return nil, ErrFileSource
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()
	return specFromReader(f)
}

// specFromReader decodes bencoded metainfo, such as an uploaded .torrent
func specFromReader(r io.Reader) (*torrent.TorrentSpec, error) {
	mi, err := metainfo.Load(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMetaInfo, err)
	}
	spec, err := torrent.TorrentSpecFromMetaInfoErr(mi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMetaInfo, err)
	}
	return spec, nil
}
