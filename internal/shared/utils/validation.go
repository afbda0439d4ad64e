package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest base name most local filesystems accept.
const MaxNameLength = 255

// Regular expressions for name normalisation
var (
	// UnsafeNamePattern matches anything outside letters, digits, spaces and ._-()[]
	UnsafeNamePattern = regexp.MustCompile(`[^\p{L}\p{N} ._\-()\[\]]`)
	// SpacePattern collapses runs of whitespace
	SpacePattern = regexp.MustCompile(`\s+`)
)

var stripPolicy = bluemonday.StrictPolicy()

// NormalizeName turns a client-submitted name into a safe base name:
// markup is stripped, diacritics are removed and unsafe characters become
// underscores. An empty result means the name is unusable.
func NormalizeName(name string) string {
	name = html.UnescapeString(stripPolicy.Sanitize(name))

	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err == nil {
		name = stripped
	}

	name = UnsafeNamePattern.ReplaceAllString(name, "_")
	name = SpacePattern.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	if len(name) > MaxNameLength {
		name = truncateUTF8(name, MaxNameLength)
	}
	return name
}

// NormalizeFileName normalises the base of name and re-attaches its
// extension, so "Résumé <b>v2</b>.PDF" becomes "Resume v2.PDF". The
// result never exceeds MaxNameLength; the base is shortened first.
func NormalizeFileName(name string) string {
	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		ext = UnsafeNamePattern.ReplaceAllString(name[i+1:], "")
		name = name[:i]
	}

	base := NormalizeName(name)
	if base == "" || ext == "" {
		return base
	}
	if len(base)+1+len(ext) > MaxNameLength {
		if len(ext) > MaxNameLength/2 {
			ext = truncateUTF8(ext, MaxNameLength/2)
		}
		if room := MaxNameLength - 1 - len(ext); len(base) > room {
			base = truncateUTF8(base, room)
		}
		if base == "" || ext == "" {
			return base
		}
	}
	return base + "." + ext
}

// ValidateName rejects names that cannot denote a single path element.
// It returns the offending rune class: "separator", "reserved" or "".
func ValidateName(name string) string {
	switch {
	case strings.ContainsAny(name, `/\`):
		return "separator"
	case strings.TrimSpace(name) == "", name == ".", name == "..", strings.ContainsRune(name, 0):
		return "reserved"
	case len(name) > MaxNameLength:
		return "reserved"
	}
	return ""
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimRight(s[:n], " .")
}
