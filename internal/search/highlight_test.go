package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlighter_Highlight_Terms(t *testing.T) {
	// Given: a highlighter for two positive terms
	h := newHighlighter([]token{{text: "quick"}, {text: "fox"}})

	// When: highlighting text containing both
	out := h.Highlight("The Quick brown fox jumps over the foxhole")

	// Then: whole-word matches wrap case-insensitively, partial words
	// stay untouched
	assert.Equal(t, "The <em>Quick</em> brown <em>fox</em> jumps over the foxhole", out)
}

func TestHighlighter_Highlight_Phrase(t *testing.T) {
	// Given: a phrase highlighter
	h := newHighlighter([]token{{text: "apple pie", phrase: true}})

	// When: highlighting an occurrence
	out := h.Highlight("grandma's Apple Pie recipe")

	// Then: the whole phrase wraps as one unit
	assert.Equal(t, "grandma's <em>Apple Pie</em> recipe", out)
}

func TestHighlighter_Highlight_PhraseAcrossPunctuation(t *testing.T) {
	// Given: a phrase highlighter
	h := newHighlighter([]token{{text: "quick brown", phrase: true}})

	// Then: punctuation and whitespace between the words do not break
	// the match, mirroring the analyzed phrase query
	assert.Equal(t, "the <em>Quick, Brown</em> fox", h.Highlight("the Quick, Brown fox"))
	assert.True(t, h.HasMatch("quick,\tbrown"))

	// And: the words out of order or separated by another word do not match
	assert.False(t, h.HasMatch("brown quick"))
	assert.False(t, h.HasMatch("quick red brown"))

	// And: partial words do not match the phrase
	assert.False(t, h.HasMatch("the quickest brown fox"))
}

func TestHighlighter_Highlight_WildcardPrefix(t *testing.T) {
	// Given: a wildcard term
	h := newHighlighter([]token{{text: "go*"}})

	// When: highlighting prefixed and unrelated words
	out := h.Highlight("goroutines and gophers, not python")

	// Then: only prefix matches wrap
	assert.Equal(t, "<em>goroutines</em> and <em>gophers</em>, not python", out)
}

func TestHighlighter_Highlight_OverlappingMatches(t *testing.T) {
	// Given: a phrase and a term sharing a word
	h := newHighlighter([]token{
		{text: "deep learning", phrase: true},
		{text: "learning"},
	})

	// When: highlighting text where both hit the same range
	out := h.Highlight("deep learning basics")

	// Then: overlapping ranges merge into one tag pair
	assert.Equal(t, "<em>deep learning</em> basics", out)
	assert.Equal(t, 1, strings.Count(out, highlightOpen))
}

func TestHighlighter_NoMatch(t *testing.T) {
	h := newHighlighter([]token{{text: "zebra"}})
	assert.Equal(t, "nothing to see here", h.Highlight("nothing to see here"))
	assert.False(t, h.HasMatch("nothing to see here"))
	assert.Nil(t, h.Fragments("nothing to see here", 100, 2))
}

func TestHighlighter_Fragments_Bounded(t *testing.T) {
	// Given: many matches spread through a long text
	h := newHighlighter([]token{{text: "cat"}})
	text := strings.Repeat("the cat sat on the mat and looked around the room for a while. ", 10)

	// When: asking for two fragments of 60 bytes
	frags := h.Fragments(text, 60, 2)

	// Then: exactly two bounded fragments, each highlighted
	require.Len(t, frags, 2)
	for _, f := range frags {
		assert.Contains(t, f, "<em>cat</em>")
		assert.LessOrEqual(t, len(f), 60+2*len(highlightOpen)+2*len(highlightClose))
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token
	}{
		{
			name:  "bare terms",
			input: "apple banana",
			want:  []token{{text: "apple"}, {text: "banana"}},
		},
		{
			name:  "embedded phrase",
			input: `fix "null pointer" crash`,
			want: []token{
				{text: "fix"},
				{text: "null pointer", phrase: true},
				{text: "crash"},
			},
		},
		{
			name:  "unterminated quote",
			input: `apple "half open`,
			want:  []token{{text: "apple"}, {text: "half open", phrase: true}},
		},
		{
			name:  "operators pass through",
			input: "a AND b OR NOT c",
			want: []token{
				{text: "a"}, {text: "AND"}, {text: "b"},
				{text: "OR"}, {text: "NOT"}, {text: "c"},
			},
		},
		{
			name:  "empty",
			input: "   ",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.input))
		})
	}
}
