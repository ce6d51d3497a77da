package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/store"
)

const (
	defaultSize      = 10
	descFragmentLen  = 150
	descFragmentMax  = 2
	defaultFacetSize = 100
)

// Config tunes the query engine.
type Config struct {
	// MaxResults caps the page size a caller may request.
	MaxResults int

	// FacetSize is the number of channel facet buckets computed.
	FacetSize int
}

// Engine executes searches against one collection at a time and shapes
// the results.
type Engine struct {
	indexes *store.IndexManager
	meta    *store.MetadataStore
	cfg     Config
	logger  *slog.Logger
}

// NewEngine wires a query engine from its stores.
func NewEngine(cfg Config, indexes *store.IndexManager, meta *store.MetadataStore, logger *slog.Logger) *Engine {
	if cfg.MaxResults < 1 {
		cfg.MaxResults = 100
	}
	if cfg.FacetSize < 1 {
		cfg.FacetSize = defaultFacetSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{indexes: indexes, meta: meta, cfg: cfg, logger: logger}
}

// Search runs one query. Searching never mutates the index. Errors are
// typed; an unknown collection surfaces as an index-not-found error and
// an empty field selection is rejected rather than run unconstrained.
func (e *Engine) Search(ctx context.Context, req *Request) (*Response, error) {
	if req.CollectionID == "" {
		return nil, vserrors.New(vserrors.ErrCodeInvalidInput, "collection id is required", nil)
	}
	for _, f := range req.Fields {
		switch f {
		case FieldTitle, FieldDescription, FieldTranscript:
		default:
			return nil, vserrors.New(vserrors.ErrCodeInvalidInput,
				fmt.Sprintf("unknown search field %q", f), nil)
		}
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = defaultSize
	}
	if size > e.cfg.MaxResults {
		size = e.cfg.MaxResults
	}
	offset := (page - 1) * size

	q, highlighter, err := buildQuery(req.Query, req.Fields)
	if err != nil {
		return nil, err
	}
	q = withChannelFilter(q, req.Channels)

	searchReq := bleve.NewSearchRequestOptions(q, size, offset, false)
	searchReq.AddFacet("channels", bleve.NewFacetRequest(store.FieldChannel, e.cfg.FacetSize))

	res, err := e.indexes.Search(ctx, req.CollectionID, searchReq)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	docs, err := e.meta.GetItems(ctx, req.CollectionID, ids)
	if err != nil {
		return nil, err
	}

	fieldSelected := func(name string) bool {
		for _, f := range req.Fields {
			if f == name {
				return true
			}
		}
		return false
	}

	out := &Response{
		Results:  make([]*Result, 0, len(res.Hits)),
		Total:    res.Total,
		Channels: channelFacets(res),
	}
	for _, hit := range res.Hits {
		doc, ok := docs[hit.ID]
		if !ok {
			// Index and document store drifted apart; skip rather than
			// return a hollow result.
			e.logger.Warn("hit_missing_from_document_store",
				slog.String("collection_id", req.CollectionID),
				slog.String("item_id", hit.ID))
			continue
		}

		r := &Result{
			ID:               doc.ItemID,
			Title:            doc.Title,
			HighlightedTitle: doc.Title,
			Description:      doc.Description,
			Channel:          doc.Channel,
			PublishedAt:      doc.PublishedAt,
			ViewCount:        doc.ViewCount,
			Thumbnail:        doc.Thumbnail,
			Score:            hit.Score,
		}
		if fieldSelected(FieldTitle) {
			r.HighlightedTitle = highlighter.Highlight(doc.Title)
		}
		if fieldSelected(FieldDescription) {
			r.HighlightedDescription = highlighter.Fragments(doc.Description, descFragmentLen, descFragmentMax)
		}
		if fieldSelected(FieldTranscript) {
			// Only segments that match on their own carry timestamps; a
			// phrase spanning two segments hits the document through the
			// flattened transcript but yields no segment matches.
			for _, seg := range doc.Segments {
				if !highlighter.HasMatch(seg.Text) {
					continue
				}
				r.MatchingSegments = append(r.MatchingSegments, SegmentMatch{
					Text:        seg.Text,
					Highlighted: highlighter.Highlight(seg.Text),
					Start:       seg.Start,
					Duration:    seg.Duration,
				})
			}
		}
		out.Results = append(out.Results, r)
	}

	return out, nil
}

// withChannelFilter restricts a query to the given owner channels.
func withChannelFilter(q query.Query, channels []string) query.Query {
	if len(channels) == 0 {
		return q
	}
	terms := make([]query.Query, 0, len(channels))
	for _, ch := range channels {
		tq := bleve.NewTermQuery(ch)
		tq.SetField(store.FieldChannel)
		terms = append(terms, tq)
	}
	var filter query.Query
	if len(terms) == 1 {
		filter = terms[0]
	} else {
		dq := bleve.NewDisjunctionQuery(terms...)
		dq.SetMin(1)
		filter = dq
	}
	return bleve.NewConjunctionQuery(q, filter)
}

// channelFacets shapes the channels aggregation, computed over the full
// match set rather than the returned page.
func channelFacets(res *bleve.SearchResult) []ChannelFacet {
	fr, ok := res.Facets["channels"]
	if !ok || fr.Terms == nil {
		return nil
	}
	terms := fr.Terms.Terms()
	out := make([]ChannelFacet, 0, len(terms))
	for _, tf := range terms {
		out = append(out, ChannelFacet{Name: tf.Term, Count: tf.Count})
	}
	return out
}
