// Package store provides the persistence layer for indexed collections:
// one bleve full-text index per collection plus a SQLite document store
// that hydrates search results and collection listings.
package store

import (
	"strings"
	"time"

	"vodsearch/internal/catalog"
)

// Bleve field names shared between the index mapping and the query engine.
const (
	FieldItemID      = "item_id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldChannel     = "channel"
	FieldPublishedAt = "published_at"
	FieldViewCount   = "view_count"
	FieldTranscript  = "transcript"
	FieldSegmentText = "segments.text"
)

// ItemDocument is one indexed item: catalog metadata plus its transcript.
type ItemDocument struct {
	ItemID      string            `json:"item_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Channel     string            `json:"channel"`
	PublishedAt time.Time         `json:"published_at"`
	ViewCount   uint64            `json:"view_count"`
	Thumbnail   string            `json:"thumbnail"`
	Segments    []catalog.Segment `json:"segments"`

	// FullText is the in-order concatenation of all segment texts. It is
	// matched as a single field so phrases spanning segment boundaries
	// still hit; the per-segment field recovers exact timestamps.
	FullText string `json:"full_text"`
}

// NewItemDocument builds a document from a catalog item and its transcript.
func NewItemDocument(item catalog.Item, segments []catalog.Segment) *ItemDocument {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return &ItemDocument{
		ItemID:      item.ID,
		Title:       item.Title,
		Description: item.Description,
		Channel:     item.Channel,
		PublishedAt: item.PublishedAt,
		ViewCount:   item.ViewCount,
		Segments:    segments,
		Thumbnail:   item.Thumbnail,
		FullText:    strings.Join(texts, " "),
	}
}

// indexRepr is the shape handed to bleve. A map keeps the indexed field
// names under our control; thumbnails and timestamps per segment live only
// in the document store.
func (d *ItemDocument) indexRepr() map[string]interface{} {
	segments := make([]map[string]interface{}, 0, len(d.Segments))
	for _, s := range d.Segments {
		segments = append(segments, map[string]interface{}{
			"text": s.Text,
		})
	}
	return map[string]interface{}{
		FieldItemID:      d.ItemID,
		FieldTitle:       d.Title,
		FieldDescription: d.Description,
		FieldChannel:     d.Channel,
		FieldPublishedAt: d.PublishedAt,
		FieldViewCount:   d.ViewCount,
		FieldTranscript:  d.FullText,
		"segments":       segments,
	}
}

// CollectionMeta describes one indexed collection. Created or overwritten
// at the end of every successful indexing job.
type CollectionMeta struct {
	ID                string    `json:"collection_id"`
	Title             string    `json:"title"`
	Thumbnail         string    `json:"thumbnail"`
	DeclaredItemCount int       `json:"declared_item_count"`
	IndexedItemCount  int       `json:"indexed_item_count"`
	LastIndexedAt     time.Time `json:"last_indexed_at"`
}

// BulkError records a single failed document within a bulk write.
type BulkError struct {
	ItemID string
	Err    error
}
