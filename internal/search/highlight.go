package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	highlightOpen  = "<em>"
	highlightClose = "</em>"
)

// span is one matched byte range within a text.
type span struct {
	start, end int
}

// Highlighter wraps query matches in <em> tags. The index does not store
// field content, so highlighting runs over the documents hydrated from
// the metadata store.
type Highlighter struct {
	// phrases hold the word sequences of phrase tokens. Matching is
	// word-wise, like the analyzed phrase query: "quick, brown" in the
	// text still matches the phrase "quick brown".
	phrases  [][]string
	exact    []string
	prefixes []string
}

// newHighlighter derives highlight matchers from the positive query
// tokens. Negated terms never reach here.
func newHighlighter(tokens []token) *Highlighter {
	h := &Highlighter{}
	for _, tok := range tokens {
		text := strings.ToLower(tok.text)
		switch {
		case tok.phrase:
			if terms := wordTexts(text); len(terms) > 0 {
				h.phrases = append(h.phrases, terms)
			}
		case strings.ContainsAny(text, "*?"):
			// Highlight the literal prefix before the first wildcard.
			if i := strings.IndexAny(text, "*?"); i > 0 {
				h.prefixes = append(h.prefixes, text[:i])
			}
		default:
			h.exact = append(h.exact, text)
		}
	}
	return h
}

// spans finds every match range in text, merged and ordered.
func (h *Highlighter) spans(text string) []span {
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// Lowercasing shifted byte offsets (rare scripts); match
		// case-sensitively rather than mis-place the tags.
		lower = text
	}

	var out []span
	wordSpans := words(lower)

	for _, phrase := range h.phrases {
		n := len(phrase)
		for i := 0; i+n <= len(wordSpans); i++ {
			match := true
			for j, term := range phrase {
				w := wordSpans[i+j]
				if lower[w.start:w.end] != term {
					match = false
					break
				}
			}
			if match {
				out = append(out, span{wordSpans[i].start, wordSpans[i+n-1].end})
			}
		}
	}

	if len(h.exact) > 0 || len(h.prefixes) > 0 {
		for _, w := range wordSpans {
			if h.matchesWord(lower[w.start:w.end]) {
				out = append(out, w)
			}
		}
	}

	return mergeSpans(out)
}

func (h *Highlighter) matchesWord(word string) bool {
	for _, term := range h.exact {
		if word == term {
			return true
		}
	}
	for _, prefix := range h.prefixes {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}

// Highlight returns text with every match wrapped in <em> tags.
func (h *Highlighter) Highlight(text string) string {
	return render(text, h.spans(text), 0, len(text))
}

// HasMatch reports whether the text contains any query match.
func (h *Highlighter) HasMatch(text string) bool {
	return len(h.spans(text)) > 0
}

// Fragments extracts up to maxFrags highlighted windows of roughly
// fragLen bytes around matches. Nil when nothing matches.
func (h *Highlighter) Fragments(text string, fragLen, maxFrags int) []string {
	spans := h.spans(text)
	if len(spans) == 0 {
		return nil
	}

	var frags []string
	covered := 0
	for _, sp := range spans {
		if len(frags) >= maxFrags {
			break
		}
		if sp.start < covered {
			continue
		}
		start := sp.start - fragLen/4
		if start < covered {
			start = covered
		}
		if start < 0 {
			start = 0
		}
		end := start + fragLen
		if end > len(text) {
			end = len(text)
		}
		start = snapRuneStart(text, start)
		end = snapRuneStart(text, end)
		frags = append(frags, render(text, spans, start, end))
		covered = end
	}
	return frags
}

// render rewrites text[from:to] with <em> tags around the spans that
// intersect the window.
func render(text string, spans []span, from, to int) string {
	var b strings.Builder
	pos := from
	for _, sp := range spans {
		if sp.end <= from || sp.start >= to {
			continue
		}
		start, end := sp.start, sp.end
		if start < from {
			start = from
		}
		if end > to {
			end = to
		}
		b.WriteString(text[pos:start])
		b.WriteString(highlightOpen)
		b.WriteString(text[start:end])
		b.WriteString(highlightClose)
		pos = end
	}
	b.WriteString(text[pos:to])
	return b.String()
}

// wordTexts returns the letter/digit runs of text as strings.
func wordTexts(text string) []string {
	spans := words(text)
	out := make([]string, 0, len(spans))
	for _, w := range spans {
		out = append(out, text[w.start:w.end])
	}
	return out
}

// words returns the byte ranges of letter/digit runs.
func words(text string) []span {
	var out []span
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(text)})
	}
	return out
}

// mergeSpans sorts and coalesces overlapping ranges.
func mergeSpans(spans []span) []span {
	if len(spans) <= 1 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// snapRuneStart moves idx back to the nearest rune boundary.
func snapRuneStart(text string, idx int) int {
	for idx > 0 && idx < len(text) && !utf8.RuneStart(text[idx]) {
		idx--
	}
	return idx
}
