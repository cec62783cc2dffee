package util

import (
	"crypto/rand"
	"html/template"
	"log/slog"
	"math/big"
	"net/url"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// =============================================================================
// Template Compilation Helpers
// =============================================================================

// MustCompileTemplate compiles a template with the given name and content.
// Exits the process if compilation fails; only used during initialization.
func MustCompileTemplate(name string, funcs template.FuncMap, content string) *template.Template {
	t, err := template.New(name).Funcs(funcs).Parse(content)
	if err != nil {
		slog.Error("failed to compile template", "template", name, "error", err)
		os.Exit(1)
	}
	return t
}

// =============================================================================
// Host Validation Helpers
// =============================================================================

// IsInternalHost checks if a hostname is internal/private and should not be accessed.
func IsInternalHost(host string) bool {
	host = strings.ToLower(host)
	return strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") ||
		strings.HasSuffix(host, ".onion") ||
		strings.HasSuffix(host, ".localhost")
}

// IsLoopbackHost checks if a hostname resolves to localhost.
func IsLoopbackHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		host == "[::1]"
}

// =============================================================================
// Tag Extraction Helpers
// =============================================================================

// GetTagValue returns the first value for the given tag name, or empty string if not found.
func GetTagValue(tags [][]string, tagName string) string {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == tagName {
			return tag[1]
		}
	}
	return ""
}

// GetTagValues returns all values for the given tag name.
// Example: GetTagValues(tags, "t") returns all topic labels.
func GetTagValues(tags [][]string, tagName string) []string {
	var results []string
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == tagName {
			results = append(results, tag[1])
		}
	}
	return results
}

// =============================================================================
// List Helpers
// =============================================================================

// UniqStrings trims every entry, drops empties and duplicates, keeping first-seen order.
func UniqStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}

// Dedupe drops empty entries and duplicates, keeping values as given.
func Dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}

// SplitList splits a comma- or newline-separated list into trimmed, non-empty entries.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	return UniqStrings(fields)
}

// LimitSlice returns at most n elements from the start of the slice.
func LimitSlice[T any](slice []T, n int) []T {
	if n < 0 || len(slice) <= n {
		return slice
	}
	return slice[:n]
}

// =============================================================================
// String Utilities
// =============================================================================

// PrefixRunes returns the first n runes of s (Unicode-aware, no suffix).
func PrefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way browsers' encodeURIComponent does.
// Magnet consumers compare tracker parameters byte for byte.
func EncodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomString returns n random characters from [0-9a-z]
func RandomString(n int) string {
	b := make([]byte, n)
	alphabetLen := big.NewInt(int64(len(base36Alphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			slog.Error("random source failed", "error", err)
			os.Exit(1)
		}
		b[i] = base36Alphabet[v.Int64()]
	}
	return string(b)
}

// FormatBytes renders a byte count with IEC units ("1.5 MiB").
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
