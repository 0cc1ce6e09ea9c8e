// Package digest shortens prose for prompt context: one-line digests of
// older chapter summaries and boundary-aware excerpts under a size budget.
package digest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultLineSize = 160
	ellipsis        = "..."
)

// OneLine collapses text to a single line and keeps its first sentence,
// shortened on a word boundary to at most max bytes (DefaultLineSize when
// max <= 0).
func OneLine(text string, max int) string {
	if max <= 0 {
		max = DefaultLineSize
	}
	line := strings.Join(strings.Fields(text), " ")
	if line == "" {
		return ""
	}
	if end := sentenceEnd(line); end > 0 {
		line = line[:end]
	}
	return clip(line, max)
}

// sentenceEnd returns the index just past the first sentence terminator
// that is followed by a space, or 0 when the text is a single sentence.
func sentenceEnd(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' {
				return i + 1
			}
		}
	}
	return 0
}

// Excerpt returns at most max bytes of text, preferring whole blocks
// (paragraphs and markdown headings). When even the first block does not
// fit it is cut on a word boundary. The result ends with "..." whenever
// anything was dropped.
func Excerpt(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	if max <= len(ellipsis) {
		return ""
	}

	budget := max - len(ellipsis)
	var kept []string
	used := 0
	for _, b := range splitBlocks(text) {
		need := len(b)
		if len(kept) > 0 {
			need += 2
		}
		if used+need > budget {
			break
		}
		kept = append(kept, b)
		used += need
	}
	if len(kept) == 0 {
		return clip(strings.Join(strings.Fields(text), " "), max)
	}
	return strings.Join(kept, "\n\n") + ellipsis
}

// splitBlocks splits text on heading lines and blank lines.
func splitBlocks(text string) []string {
	var blocks []string
	var current []string

	flush := func() {
		if t := strings.TrimSpace(strings.Join(current, "\n")); t != "" {
			blocks = append(blocks, t)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
			continue
		case strings.HasPrefix(trimmed, "#"):
			flush()
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

// clip shortens a single line to max bytes on a word boundary.
func clip(line string, max int) string {
	if len(line) <= max {
		return line
	}
	if max <= len(ellipsis) {
		return ""
	}
	cut := max - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	if sp := strings.LastIndexByte(line[:cut], ' '); sp > 0 {
		cut = sp
	}
	return strings.TrimRight(line[:cut], " ,;:") + ellipsis
}
