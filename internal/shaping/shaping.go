// Package shaping turns raw generated text into what a caller is entitled
// to see: a repaired full answer or a short teaser with a hook.
package shaping

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis marks text that was cut.
const Ellipsis = "..."

// MaxTeaserSentences is how many lead-in sentences a teaser keeps.
const MaxTeaserSentences = 3

var (
	fencedBlock = regexp.MustCompile("(?s)```.*?```")
	strayFence  = regexp.MustCompile("```[A-Za-z0-9_-]*")
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// ShapeFull repairs text that a backend cut off mid-sentence. Complete
// text is returned trimmed and otherwise unchanged. Unterminated text is
// cut back to its last sentence boundary when more than minRepairLen runes
// remain; otherwise an ellipsis is appended. The result is never empty.
func ShapeFull(raw string, minRepairLen int) string {
	text := clean(raw)
	if text == "" {
		return Ellipsis
	}
	if IsTerminated(text) {
		return text
	}
	text = collapseBlankLines(text)

	if end := lastBoundary(text); end > 0 {
		repaired := strings.TrimSpace(text[:end])
		if utf8.RuneCountInString(repaired) > minRepairLen {
			return repaired
		}
	}

	return strings.TrimRight(text, " \t\n,;:-") + Ellipsis
}

// ShapeTeaser keeps at most the first three sentences of raw, joined with
// ". ", terminates them and appends hook after a blank line.
func ShapeTeaser(raw, hook string) string {
	sentences := splitSentences(collapseBlankLines(clean(raw)))

	var lead string
	if len(sentences) == 0 {
		lead = Ellipsis
	} else {
		n := min(len(sentences), MaxTeaserSentences)
		parts := make([]string, n)
		for i := range n {
			parts[i] = sentences[i].text
		}
		lead = strings.Join(parts, ". ")
		if last := sentences[n-1]; last.delim != "" && n == len(sentences) {
			lead += last.delim
		} else if !IsTerminated(lead) {
			lead += Ellipsis
		}
	}

	hook = strings.TrimSpace(hook)
	if hook == "" {
		return lead
	}
	return lead + "\n\n" + hook
}

// IsTerminated reports whether text ends in sentence punctuation,
// optionally followed by closing quotes or brackets, or in an emoji or
// other symbol.
func IsTerminated(text string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	text = strings.TrimRightFunc(text, isEmojiJoiner)
	if text == "" {
		return false
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	if isSymbol(last) {
		return true
	}

	text = strings.TrimRightFunc(text, isCloser)
	last, _ = utf8.DecodeLastRuneInString(text)
	return isTerminal(last)
}

func clean(raw string) string {
	text := fencedBlock.ReplaceAllString(raw, "")
	text = strayFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func collapseBlankLines(text string) string {
	return blankLines.ReplaceAllString(text, "\n\n")
}

// lastBoundary returns the byte offset just past the last sentence end
// that is followed by whitespace, or 0 when there is none.
func lastBoundary(text string) int {
	end := 0
	for i, r := range text {
		if !isTerminal(r) {
			continue
		}
		j := i + utf8.RuneLen(r)
		for j < len(text) {
			next, size := utf8.DecodeRuneInString(text[j:])
			if !isTerminal(next) && !isCloser(next) {
				break
			}
			j += size
		}
		if j < len(text) {
			if next, _ := utf8.DecodeRuneInString(text[j:]); unicode.IsSpace(next) {
				end = j
			}
		}
	}
	return end
}

type sentence struct {
	text  string
	delim string
}

// splitSentences splits on runs of '.', '!' and '?', dropping empty pieces.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	flush := func(end, next int) {
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, sentence{text: s, delim: text[end:next]})
		}
		start = next
	}

	for i := 0; i < len(text); {
		if !isSplitter(text[i]) {
			i++
			continue
		}
		j := i
		for j < len(text) && isSplitter(text[j]) {
			j++
		}
		flush(i, j)
		i = j
	}
	if start < len(text) {
		flush(len(text), len(text))
	}
	return out
}

func isSplitter(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '»', '”', '’', '*', '_':
		return true
	}
	return false
}

func isSymbol(r rune) bool {
	return unicode.Is(unicode.So, r) || (unicode.Is(unicode.Sk, r) && r > unicode.MaxLatin1)
}

// isEmojiJoiner matches variation selectors and zero-width joiners that
// trail an emoji sequence.
func isEmojiJoiner(r rune) bool {
	return r == '\u200d' || r == '\ufe0f' || r == '\ufe0e'
}
