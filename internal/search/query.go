package search

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/store"
)

// token is one unit of a boolean query: a bare term, a quoted phrase, or
// an operator.
type token struct {
	text   string
	phrase bool
}

// tokenize splits query text on whitespace, keeping double-quoted runs
// together as phrase tokens.
func tokenize(text string) []token {
	var tokens []token
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		switch {
		case unicode.IsSpace(runes[i]):
			i++
		case runes[i] == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			phrase := strings.TrimSpace(string(runes[i+1 : j]))
			if phrase != "" {
				tokens = append(tokens, token{text: phrase, phrase: true})
			}
			if j < len(runes) {
				j++
			}
			i = j
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && runes[j] != '"' {
				j++
			}
			tokens = append(tokens, token{text: string(runes[i:j])})
			i = j
		}
	}
	return tokens
}

// fieldTarget maps one selectable field to its index fields and boost.
type fieldTarget struct {
	indexFields []string
	boost       float64
}

// targets resolves the caller's field selection. The transcript is
// queried both flattened (phrases may span segment boundaries) and per
// segment (timestamp recovery).
func targets(fields []string) []fieldTarget {
	var out []fieldTarget
	for _, f := range fields {
		switch f {
		case FieldTitle:
			out = append(out, fieldTarget{[]string{store.FieldTitle}, boostTitle})
		case FieldDescription:
			out = append(out, fieldTarget{[]string{store.FieldDescription}, boostDescription})
		case FieldTranscript:
			out = append(out, fieldTarget{[]string{store.FieldTranscript, store.FieldSegmentText}, boostTranscript})
		}
	}
	return out
}

// tokenQuery builds the cross-field query for one positive token: a
// disjunction over every selected field, so a term may hit any of them.
func tokenQuery(tok token, tgts []fieldTarget) query.Query {
	wildcard := !tok.phrase && strings.ContainsAny(tok.text, "*?")

	var perField []query.Query
	for _, tgt := range tgts {
		for _, field := range tgt.indexFields {
			var q query.Query
			switch {
			case tok.phrase:
				pq := bleve.NewMatchPhraseQuery(tok.text)
				pq.SetField(field)
				pq.SetBoost(tgt.boost)
				q = pq
			case wildcard:
				// Wildcard terms bypass analysis; lowercase to line up
				// with the analyzed index terms.
				wq := bleve.NewWildcardQuery(strings.ToLower(tok.text))
				wq.SetField(field)
				wq.SetBoost(tgt.boost)
				q = wq
			default:
				mq := bleve.NewMatchQuery(tok.text)
				mq.SetField(field)
				mq.SetOperator(query.MatchQueryOperatorAnd)
				mq.SetBoost(tgt.boost)
				q = mq
			}
			perField = append(perField, q)
		}
	}
	if len(perField) == 1 {
		return perField[0]
	}
	dq := bleve.NewDisjunctionQuery(perField...)
	dq.SetMin(1)
	return dq
}

// buildQuery translates query text into an index query plus the
// highlighter for the positive match terms.
//
// A query wholly wrapped in double quotes is an exact phrase. Everything
// else is boolean: terms combine with implicit AND, the uppercase AND,
// OR and NOT operators apply with AND binding tighter than OR, and terms
// may carry * and ? wildcards. Cross-field semantics are per-term: each
// term may match in any selected field, and with AND every term must
// match somewhere.
func buildQuery(text string, fields []string) (query.Query, *Highlighter, error) {
	tgts := targets(fields)
	if len(tgts) == 0 {
		return nil, nil, vserrors.New(vserrors.ErrCodeNoSearchField,
			"no search field selected", nil)
	}

	trimmed := strings.TrimSpace(text)

	// Whole-query phrase mode.
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) &&
		!strings.Contains(trimmed[1:len(trimmed)-1], `"`) {
		phrase := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		if phrase == "" {
			return nil, nil, vserrors.New(vserrors.ErrCodeQueryEmpty, "query is empty", nil)
		}
		h := newHighlighter([]token{{text: phrase, phrase: true}})
		return tokenQuery(token{text: phrase, phrase: true}, tgts), h, nil
	}

	tokens := tokenize(trimmed)

	// Split on OR, then AND/NOT within each group.
	var groups [][]token
	current := []token{}
	for _, tok := range tokens {
		if !tok.phrase && tok.text == "OR" {
			groups = append(groups, current)
			current = []token{}
			continue
		}
		current = append(current, tok)
	}
	groups = append(groups, current)

	var positive []token
	var groupQueries []query.Query
	for _, group := range groups {
		var must []query.Query
		var mustNot []query.Query
		negateNext := false
		for _, tok := range group {
			if !tok.phrase {
				switch tok.text {
				case "AND":
					continue
				case "NOT":
					negateNext = true
					continue
				}
			}
			q := tokenQuery(tok, tgts)
			if negateNext {
				mustNot = append(mustNot, q)
				negateNext = false
				continue
			}
			positive = append(positive, tok)
			must = append(must, q)
		}

		switch {
		case len(must) == 0 && len(mustNot) == 0:
			continue
		case len(mustNot) == 0 && len(must) == 1:
			groupQueries = append(groupQueries, must[0])
		case len(mustNot) == 0:
			groupQueries = append(groupQueries, bleve.NewConjunctionQuery(must...))
		default:
			bq := bleve.NewBooleanQuery()
			if len(must) > 0 {
				bq.AddMust(must...)
			} else {
				bq.AddMust(bleve.NewMatchAllQuery())
			}
			bq.AddMustNot(mustNot...)
			groupQueries = append(groupQueries, bq)
		}
	}

	if len(groupQueries) == 0 {
		return nil, nil, vserrors.New(vserrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	h := newHighlighter(positive)
	if len(groupQueries) == 1 {
		return groupQueries[0], h, nil
	}
	dq := bleve.NewDisjunctionQuery(groupQueries...)
	dq.SetMin(1)
	return dq, h, nil
}
