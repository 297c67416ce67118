package mcp

import (
	"regexp"
	"strings"

	"buildwatch/src/sanitize"
)

// hashPattern matches hex strings of 12+ characters (request IDs, git SHAs, etc.)
var hashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

// maskHashes replaces long hex strings with <HASH>.
func maskHashes(line string) string {
	return hashPattern.ReplaceAllString(line, "<HASH>")
}

// longPathPattern matches URL or file paths with 3+ directories.
// Captures the last segment at the end.
var longPathPattern = regexp.MustCompile(`/(?:[^/\s]+/){3,}([^/\s:]+(?::\d+)?)`)

// compressPath shortens long paths to .../last-segment.
func compressPath(line string) string {
	return longPathPattern.ReplaceAllString(line, ".../$1")
}

// whitespacePattern matches multiple consecutive whitespace characters.
var whitespacePattern = regexp.MustCompile(`\s+`)

// normalizeWhitespace collapses multiple spaces/tabs/newlines and trims.
func normalizeWhitespace(line string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
}

// maxDetailLength bounds a diagnostic detail sent to a client.
const maxDetailLength = 240

// compactDetail squeezes an error detail (often an HTTP body) into a single
// short line.
func compactDetail(detail string) string {
	detail = sanitize.StripANSI(detail)
	detail = normalizeWhitespace(detail)
	detail = maskHashes(detail)
	detail = compressPath(detail)
	return sanitize.Summary(detail, maxDetailLength)
}
