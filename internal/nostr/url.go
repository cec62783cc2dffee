package nostr

import (
	"net/url"
	"strings"

	"nostr-torrent/internal/util"
)

// NormalizeRelayURL validates and normalizes a relay endpoint.
// Returns empty string if URL is invalid/malformed.
func NormalizeRelayURL(relayURL string) string {
	relayURL = strings.TrimSpace(relayURL)
	if relayURL == "" || !strings.Contains(relayURL, "://") {
		return ""
	}

	// Reject double protocols (wss://https://...)
	if strings.Count(relayURL, "://") > 1 {
		return ""
	}

	parsed, err := url.Parse(relayURL)
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "ws" && scheme != "wss" {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" || strings.Contains(host, " ") {
		return ""
	}
	if !strings.Contains(host, ".") && !util.IsLoopbackHost(host) {
		return ""
	}
	// .onion, .local and .internal are unreachable from here
	if util.IsInternalHost(host) {
		return ""
	}

	// Normalize: strip trailing slash, lowercase scheme and host
	result := scheme + "://" + host
	if strings.Contains(host, ":") {
		result = scheme + "://[" + host + "]"
	}
	if parsed.Port() != "" {
		result += ":" + parsed.Port()
	}
	if parsed.Path != "" && parsed.Path != "/" {
		result += parsed.Path
	}
	return result
}

// NormalizeRelayList normalizes every entry and drops invalid ones and duplicates,
// keeping the caller's order.
func NormalizeRelayList(relays []string) []string {
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		if n := NormalizeRelayURL(r); n != "" {
			out = append(out, n)
		}
	}
	return util.UniqStrings(out)
}
