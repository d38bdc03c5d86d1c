// Package sanitize turns remote display names into filesystem-safe base names.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// Arabic is the Arabic Unicode block (U+0600–U+06FF), permitted by default.
var Arabic = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0600, Hi: 0x06ff, Stride: 1}},
}

var (
	spaceHyphenRun = regexp.MustCompile(`[ -]+`)
	underscoreRun  = regexp.MustCompile(`_+`)
)

// Sanitizer keeps ASCII letters, digits, underscores, periods and spaces plus
// any rune covered by Ranges; everything else is stripped.
type Sanitizer struct {
	Ranges []*unicode.RangeTable
}

// New returns a Sanitizer permitting the given Unicode ranges in addition to
// the ASCII set. With no ranges only ASCII survives.
func New(ranges ...*unicode.RangeTable) *Sanitizer {
	return &Sanitizer{Ranges: ranges}
}

var defaultSanitizer = New(Arabic)

// Name sanitizes using the default permitted ranges.
func Name(name string) string {
	return defaultSanitizer.Name(name)
}

// Name strips disallowed runes, folds space/hyphen runs and repeated
// underscores into a single underscore, and trims underscores at both ends.
// The result contains no path separators. It may be empty when the input has
// no permitted runes; callers must treat that as an error.
func (s *Sanitizer) Name(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if s.permitted(r) {
			b.WriteRune(r)
		}
	}
	out := spaceHyphenRun.ReplaceAllString(b.String(), "_")
	out = underscoreRun.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}

func (s *Sanitizer) permitted(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == ' ':
		return true
	}
	for _, rt := range s.Ranges {
		if unicode.Is(rt, r) {
			return true
		}
	}
	return false
}
