// Package catalog defines the upstream collaborators the indexing workflow
// consumes: collection enumeration and per-item transcript fetching.
// The orchestrator and workers depend only on the interfaces here.
package catalog

import (
	"context"
	"time"
)

// Item is a single indexable unit (a video) with metadata.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Channel     string    `json:"channel"`
	PublishedAt time.Time `json:"published_at"`
	ViewCount   uint64    `json:"view_count"`
	Thumbnail   string    `json:"thumbnail"`
}

// Segment is one timed fragment of a transcript.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Lister enumerates all items in a collection.
//
// Implementations must page through the upstream source internally and
// batch-fetch per-item statistics. An empty or inaccessible collection
// yields an empty slice, not an error.
type Lister interface {
	ListItems(ctx context.Context, collectionID string) ([]Item, error)
}

// TranscriptFetcher fetches the timed transcript for one item.
//
// Content-absent conditions (no captions, item withdrawn) yield an empty
// slice and a nil error. Transient failures (network, rate limiting)
// yield a retryable error from internal/errors.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, itemID string) ([]Segment, error)
}
