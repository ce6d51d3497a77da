// Package search is the query engine: it translates caller queries into
// index queries, executes them against one collection's index, and shapes
// ranked, highlighted, facet-annotated results hydrated from the document
// store.
package search

import (
	"time"
)

// Searchable field names accepted in Request.Fields.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTranscript  = "transcript"
)

// Field boosts. Metadata hits outrank incidental transcript mentions.
const (
	boostTitle       = 3.0
	boostDescription = 2.0
	boostTranscript  = 1.0
)

// Request is one search call against one collection.
type Request struct {
	CollectionID string

	// Query is the raw query text. Surrounding double quotes select
	// phrase mode; otherwise terms combine with implicit AND and the
	// explicit AND, OR, NOT operators and * wildcards apply.
	Query string

	// Page is 1-based; Size is the page size.
	Page int
	Size int

	// Fields selects which of title, description, transcript to search.
	Fields []string

	// Channels restricts results to these owner channels. Empty means
	// no restriction.
	Channels []string
}

// SegmentMatch is one transcript segment that matched the query, with its
// original timing.
type SegmentMatch struct {
	Text        string  `json:"text"`
	Highlighted string  `json:"highlighted"`
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"`
}

// Result is one ranked hit.
type Result struct {
	ID                     string         `json:"id"`
	Title                  string         `json:"title"`
	HighlightedTitle       string         `json:"highlighted_title"`
	Description            string         `json:"description"`
	HighlightedDescription []string       `json:"highlighted_description"`
	Channel                string         `json:"channel"`
	PublishedAt            time.Time      `json:"published_at"`
	ViewCount              uint64         `json:"view_count"`
	Thumbnail              string         `json:"thumbnail"`
	Score                  float64        `json:"score"`
	MatchingSegments       []SegmentMatch `json:"matching_segments"`
}

// ChannelFacet is one bucket of the channels aggregation, computed over
// the full match set before pagination.
type ChannelFacet struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Response is the shaped result of one search.
type Response struct {
	Results  []*Result      `json:"results"`
	Total    uint64         `json:"total"`
	Channels []ChannelFacet `json:"channels"`
}
