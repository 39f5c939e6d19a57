// Package naming maps page text and resource URLs onto filesystem-safe path
// segments for the mirrored output tree.
package naming

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxSegmentBytes keeps an indexed file name under the common 255 byte limit.
const maxSegmentBytes = 200

// placeholder stands in for names that sanitize to nothing.
const placeholder = "_"

// reserved holds characters rejected by at least one common filesystem.
const reserved = `/\:*?"<>|`

// Sanitize maps arbitrary text to a single path segment. The result never
// contains separators or control characters, has no leading or trailing
// spaces or dots, and Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		switch {
		case r == utf8.RuneError:
			r = '_'
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			continue
		case strings.ContainsRune(reserved, r):
			r = '_'
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	out := norm.NFC.String(b.String())
	out = strings.Trim(truncate(out, maxSegmentBytes), " .")
	if out == "" {
		return placeholder
	}
	return out
}

// IndexedName prefixes name with a zero-padded ordinal so siblings keep
// document order and never collide.
func IndexedName(index int, name string) string {
	return fmt.Sprintf("%03d-%s", index, name)
}

// FilenameFromURL returns the percent-decoded final path segment of u.
func FilenameFromURL(u *url.URL) (string, error) {
	escaped := u.EscapedPath()
	last := escaped[strings.LastIndex(escaped, "/")+1:]
	decoded, err := url.PathUnescape(last)
	if err != nil {
		return "", fmt.Errorf("decode path segment %q: %w", last, err)
	}
	return decoded, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
