// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package textnorm normalizes titles and author names for dedup comparison,
and sanitizes strings for use as filesystem path components.

Transformation Pipeline (Normalize):

 1. NFD Normalization: Decomposes accented Latin characters (é -> e + accent).
 2. Accent Stripping: Removes the resulting combining marks.
 3. Lowercasing: Ensures case-insensitive comparison.
 4. Punctuation Stripping: Drops anything that is not a letter, digit, or space.
 5. Whitespace Collapse: Reduces runs of whitespace to a single space and trims.

Unlike the ASCII slug generators common in web catalogues, Normalize
never transliterates non-Latin scripts: aggregated titles and author
names are overwhelmingly CJK, and collapsing them to ASCII would merge
every two unrelated Chinese novels into the empty string. Letters and
digits from any script pass through unchanged; only combining marks and
punctuation are removed.
*/
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// # Common RegEx

var (
	// whitespaceRun collapses any run of whitespace into a single space.
	whitespaceRun = regexp.MustCompile(`\s+`)

	// forbiddenFilenameChars matches characters that cannot appear in a
	// filesystem path component on common platforms.
	forbiddenFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// # Public API

// Normalize converts an arbitrary Unicode title or author string into a
// comparison key: lowercased, accent-stripped, punctuation-stripped, and
// whitespace-collapsed. Two strings that differ only in casing, accents,
// punctuation, or spacing normalize to the same key.
func Normalize(s string) string {

	// 1. Decompose and drop non-spacing marks (accents on Latin scripts)
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	decomposed, _, _ := transform.String(t, s)

	// 2. Lowercase for case-insensitive comparison
	lower := strings.ToLower(decomposed)

	// 3. Keep letters, digits, and whitespace from any script; drop the rest
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lower)

	// 4. Collapse whitespace runs and trim boundaries
	collapsed := whitespaceRun.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}

// Sanitize replaces every character forbidden in a filesystem path
// component (`\ / : * ? " < > |`) with an underscore. If the result is
// empty, it defaults to a single underscore.
func Sanitize(s string) string {
	result := forbiddenFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if result == "" {
		return "_"
	}
	return result
}

// # Internal Helpers

// isMn reports whether r is a Unicode non-spacing mark (e.g. accents).
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
