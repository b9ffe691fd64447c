package ics

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxLineOctets is the RFC 5545 content line limit, excluding CRLF.
const maxLineOctets = 75

const crlf = "\r\n"

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
	",", `\,`,
	";", `\;`,
)

// EscapeText escapes a TEXT property value (RFC 5545 section 3.3.11).
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// FoldLine splits a content line longer than 75 octets. The first segment
// keeps 75 octets; every continuation line starts with a single space followed
// by at most 74 octets. Segments are joined with CRLF and never split a UTF-8
// sequence. The result carries no trailing CRLF.
func FoldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line
	}

	var b strings.Builder
	b.Grow(len(line) + len(line)/maxLineOctets*3)

	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString(crlf)
		b.WriteByte(' ')
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	return b.String()
}

// UnfoldLines reverses FoldLine over a whole document and returns its
// logical content lines.
func UnfoldLines(doc string) []string {
	doc = strings.ReplaceAll(doc, crlf+" ", "")
	doc = strings.TrimSuffix(doc, crlf)
	if doc == "" {
		return nil
	}
	return strings.Split(doc, crlf)
}

var nonAlnumRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Sanitize collapses every run of characters outside [A-Za-z0-9] into a
// single underscore and trims underscores at both ends.
func Sanitize(s string) string {
	return strings.Trim(nonAlnumRe.ReplaceAllString(s, "_"), "_")
}
