package jobs

import (
	"context"
	"log/slog"
	"time"

	"vodsearch/internal/catalog"
	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/store"
)

// Worker processes one item: fetch its transcript, build the document,
// write it to the search index and the document store.
type Worker struct {
	Transcripts catalog.TranscriptFetcher
	Indexes     *store.IndexManager
	Meta        *store.MetadataStore

	// Retry is the per-item transcript retry policy.
	Retry vserrors.RetryConfig

	// TranscriptTimeout bounds one fetch attempt; IndexTimeout bounds
	// the index write.
	TranscriptTimeout time.Duration
	IndexTimeout      time.Duration

	Logger *slog.Logger
}

// Process runs one unit of work. A missing transcript is not a failure:
// the item is indexed with metadata only. Exhausting the transcript
// retry budget or failing the index write yields Success=false, logged
// and absorbed, never escalated out of the unit.
func (w *Worker) Process(ctx context.Context, collectionID string, item catalog.Item) Outcome {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	segments, err := vserrors.RetryWithResult(ctx, w.Retry, func() ([]catalog.Segment, error) {
		attemptCtx := ctx
		if w.TranscriptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, w.TranscriptTimeout)
			defer cancel()
		}
		return w.Transcripts.FetchTranscript(attemptCtx, item.ID)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{ItemID: item.ID, Success: false}
		}
		logger.Warn("transcript_fetch_failed",
			slog.String("item_id", item.ID),
			slog.String("collection_id", collectionID),
			slog.String("error", err.Error()))
		return Outcome{ItemID: item.ID, Success: false}
	}

	doc := store.NewItemDocument(item, segments)

	writeCtx := ctx
	if w.IndexTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, w.IndexTimeout)
		defer cancel()
	}
	if err := w.Indexes.Upsert(writeCtx, collectionID, doc); err != nil {
		logger.Warn("index_write_failed",
			slog.String("item_id", item.ID),
			slog.String("collection_id", collectionID),
			slog.String("error", err.Error()))
		return Outcome{ItemID: item.ID, Success: false}
	}

	if err := w.Meta.SaveItems(writeCtx, collectionID, []*store.ItemDocument{doc}); err != nil {
		logger.Warn("metadata_write_failed",
			slog.String("item_id", item.ID),
			slog.String("collection_id", collectionID),
			slog.String("error", err.Error()))
		return Outcome{ItemID: item.ID, Success: false}
	}

	return Outcome{ItemID: item.ID, Success: true}
}
