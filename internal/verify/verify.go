// Package verify extracts a success signal from tool output. It is a
// best-effort heuristic matcher: a match is authoritative, a non-match proves
// nothing, and malformed input never produces an error.
package verify

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FormatUnknown is the sentinel meaning the flag format was not given; the
// verifier falls back to a fixed list of generic bracketed-flag patterns.
const FormatUnknown = "unknown"

// closeWindow bounds how far past the prefix the closing brace may be.
// Prevents greedy capture across unrelated output.
const closeWindow = 100

// minEncodedLen is the shortest token worth a base64 decode attempt.
const minEncodedLen = 20

var encodedToken = regexp.MustCompile(`[A-Za-z0-9+/=]{20,}`)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)CTF\{.*?\}`),
	regexp.MustCompile(`(?i)flag\{.*?\}`),
	regexp.MustCompile(`(?i)key\{.*?\}`),
	regexp.MustCompile(`(?i)IDEH\{.*?\}`),
}

// Extract scans output for a flag matching format. Order of attempts:
// literal prefix in the raw output, then base64-decoded candidate tokens,
// then (only for the unknown-format sentinel) generic patterns on the raw
// output. Returns the extracted flag and whether one was found.
func Extract(output, format string) (string, bool) {
	if strings.EqualFold(format, FormatUnknown) {
		for _, pat := range genericPatterns {
			if m := pat.FindString(output); m != "" {
				return m, true
			}
		}
		return "", false
	}

	if flag, ok := matchPrefix(output, format); ok {
		return flag, true
	}

	// The flag may be hiding inside an encoded blob. Try every token that
	// looks like base64 and re-run the bounded match on the decoded text.
	for _, cand := range encodedToken.FindAllString(output, -1) {
		decoded, err := base64.StdEncoding.DecodeString(cand)
		if err != nil {
			continue
		}
		text := string(decoded)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "")
		}
		if flag, ok := matchPrefix(text, format); ok {
			return flag, true
		}
	}

	return "", false
}

// matchPrefix captures from the first occurrence of the literal prefix up to
// the nearest '}' within closeWindow characters after it. No closing brace in
// the window means no match.
func matchPrefix(text, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	start := strings.Index(text, prefix)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(prefix):]
	if len(rest) > closeWindow {
		rest = rest[:closeWindow]
	}
	end := strings.Index(rest, "}")
	if end < 0 {
		return "", false
	}
	return text[start : start+len(prefix)+end+1], true
}
