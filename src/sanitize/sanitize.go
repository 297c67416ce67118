// Package sanitize cleans provider-supplied text (commit messages, branch
// names, step labels) before it reaches notifications, MCP responses and the TUI.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// ANSI escape codes: \x1b[...m (SGR sequences)
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// Buildkite timestamp markers: \x1b_bk;t=...\x07
	buildkiteTimestamp = regexp.MustCompile(`\x1b_bk;t=[0-9]+\x07`)

	// Emoji shortcodes at the start of step labels, e.g. ":go: :test_tube: unit"
	emojiPrefix = regexp.MustCompile(`^(?::[a-z0-9_+\-]+:\s*)+`)
)

// StripANSI removes ANSI escape codes and Buildkite timestamp markers.
func StripANSI(s string) string {
	s = buildkiteTimestamp.ReplaceAllString(s, "")
	s = ansiPattern.ReplaceAllString(s, "")
	return s
}

// FirstLine returns the first non-empty line of s, cleaned of escape codes
// and control characters.
func FirstLine(s string) string {
	s = StripANSI(s)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(stripControl(line))
		if line != "" {
			return line
		}
	}
	return ""
}

// Summary returns FirstLine(s) cut to at most max runes, marking the cut with "…".
func Summary(s string, max int) string {
	line := FirstLine(s)
	if max <= 0 {
		return ""
	}
	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	if max == 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// StepLabel drops leading emoji shortcodes from a step name. The raw name
// is returned when nothing else would remain.
func StepLabel(name string) string {
	trimmed := strings.TrimSpace(emojiPrefix.ReplaceAllString(strings.TrimSpace(name), ""))
	if trimmed == "" {
		return strings.TrimSpace(name)
	}
	return trimmed
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
