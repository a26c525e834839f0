package sanitize

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength bounds sanitized names to stay well inside filesystem
// path limits.
const DefaultMaxLength = 160

// Sanitizer turns raw filename candidates into filesystem-safe names.
// It never fails: unusable input yields a timestamped placeholder.
type Sanitizer struct {
	maxLen int

	// now is swappable in tests
	now func() time.Time
}

// New creates a sanitizer with the given maximum name length.
func New(maxLen int) *Sanitizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Sanitizer{maxLen: maxLen, now: time.Now}
}

// Sanitize normalizes a raw candidate into an ASCII-only, non-empty name
// containing only alphanumerics and underscores, truncated to the maximum
// length.
func (s *Sanitizer) Sanitize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return s.placeholder()
	}

	// Fold Unicode to its closest ASCII form: decompose, drop combining
	// marks, recompose, then discard any non-ASCII remnants.
	folded := foldASCII(raw)

	// Word separators become underscores so the name stays readable.
	var b strings.Builder
	b.Grow(len(folded))
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '\t':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		return s.placeholder()
	}

	if len(name) > s.maxLen {
		name = strings.Trim(name[:s.maxLen], "_")
		if name == "" {
			return s.placeholder()
		}
	}

	return name
}

// placeholder synthesizes a unique fallback name when the candidate carries
// no usable characters.
func (s *Sanitizer) placeholder() string {
	return "unnamed_file_" + s.now().UTC().Format("20060102_150405")
}

func foldASCII(in string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, in)
	if err != nil {
		out = in
	}
	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
