// Package urlx validates and canonicalizes destination URLs.
package urlx

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/snipd/snipd/internal"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// hostRe requires a registrable-looking host: dot-separated alphanumeric
// labels, no leading/trailing hyphens, at least two labels.
var hostRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)+$`)

// Normalize checks that raw is a usable destination and returns its canonical
// absolute form. A missing scheme defaults to https://. Plain http:// targets
// are rejected as a hard rule, before any generic syntax check, so the caller
// can surface a dedicated error. The returned string is the trimmed input with
// at most a scheme prefix added, which makes Normalize idempotent.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", internal.ErrInvalidURL
	}
	if strings.HasPrefix(strings.ToLower(raw), "http://") {
		return "", internal.ErrInsecureScheme
	}
	if strings.ContainsAny(raw, " \t") {
		return "", internal.ErrInvalidURL
	}

	candidate := raw
	if !schemeRe.MatchString(candidate) {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", internal.ErrInvalidURL
	}
	// Credentials in the destination are never legitimate here; this also
	// keeps opaque forms like mailto:a@b from sneaking in as userinfo.
	if u.User != nil {
		return "", internal.ErrInvalidURL
	}
	if !hostRe.MatchString(u.Hostname()) {
		return "", internal.ErrInvalidURL
	}

	return candidate, nil
}
