package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	lru "github.com/hashicorp/golang-lru/v2"

	vserrors "vodsearch/internal/errors"
)

// indexNamePattern strips characters that are unsafe in directory names.
var indexNamePattern = regexp.MustCompile(`[^a-z0-9_-]+`)

// IndexName derives the deterministic physical index name for a collection.
func IndexName(collectionID string) string {
	return "collection_" + indexNamePattern.ReplaceAllString(strings.ToLower(collectionID), "_")
}

// IndexManager owns the per-collection bleve indexes. One physical index
// per collection; open handles are bounded by an LRU that closes the least
// recently used index on eviction.
//
// With an empty dataDir every index lives in memory, which is how the
// tests run.
type IndexManager struct {
	mu      sync.Mutex
	dataDir string
	open    *lru.Cache[string, bleve.Index]
	mem     map[string]bleve.Index
}

// NewIndexManager creates an index manager rooted at dataDir.
// openLimit bounds the number of simultaneously open indexes.
func NewIndexManager(dataDir string, openLimit int) (*IndexManager, error) {
	if openLimit < 1 {
		openLimit = 1
	}
	m := &IndexManager{dataDir: dataDir}

	if dataDir == "" {
		m.mem = make(map[string]bleve.Index)
		return m, nil
	}

	cache, err := lru.NewWithEvict[string, bleve.Index](openLimit, func(_ string, idx bleve.Index) {
		_ = idx.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	m.open = cache
	return m, nil
}

// buildIndexMapping creates the bleve mapping for item documents.
// Channel and item id are keyword fields (exact match, facet-able); the
// transcript is indexed twice, flattened and per segment.
func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldItemID, kw)
	doc.AddFieldMappingsAt(FieldTitle, text)
	doc.AddFieldMappingsAt(FieldDescription, text)
	doc.AddFieldMappingsAt(FieldChannel, kw)
	doc.AddFieldMappingsAt(FieldPublishedAt, bleve.NewDateTimeFieldMapping())
	doc.AddFieldMappingsAt(FieldViewCount, bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt(FieldTranscript, text)

	seg := bleve.NewDocumentMapping()
	seg.AddFieldMappingsAt("text", text)
	doc.AddSubDocumentMapping("segments", seg)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// indexPath returns the on-disk location for a physical index.
func (m *IndexManager) indexPath(name string) string {
	return filepath.Join(m.dataDir, "indexes", name)
}

// EnsureIndex creates or validates a collection's index.
//
// With recreate=true any existing index is destroyed and rebuilt empty
// (full runs). With recreate=false the index is created only when absent;
// an existing index is left intact and its document count reported
// (incremental runs).
func (m *IndexManager) EnsureIndex(ctx context.Context, collectionID string, recreate bool) (created bool, existing uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := IndexName(collectionID)

	if m.mem != nil {
		idx, ok := m.mem[name]
		if ok && !recreate {
			count, err := idx.DocCount()
			if err != nil {
				return false, 0, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to count documents", err)
			}
			return false, count, nil
		}
		if ok {
			_ = idx.Close()
			delete(m.mem, name)
		}
		fresh, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return false, 0, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to create index", err)
		}
		m.mem[name] = fresh
		return true, 0, nil
	}

	path := m.indexPath(name)
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if exists && recreate {
		m.open.Remove(name) // evict callback closes the handle
		if err := os.RemoveAll(path); err != nil {
			return false, 0, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to remove existing index", err)
		}
		exists = false
	}

	if exists {
		idx, err := m.openLocked(name)
		if err != nil {
			return false, 0, err
		}
		count, err := idx.DocCount()
		if err != nil {
			return false, 0, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to count documents", err)
		}
		return false, count, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, 0, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to create index directory", err)
	}
	idx, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return false, 0, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to create index", err)
	}
	m.open.Add(name, idx)
	return true, 0, nil
}

// openLocked returns the open handle for a physical index, opening it on
// demand. Corrupted indexes surface as such rather than being silently
// recreated; a reindex with recreate=true recovers them.
func (m *IndexManager) openLocked(name string) (bleve.Index, error) {
	if m.mem != nil {
		idx, ok := m.mem[name]
		if !ok {
			return nil, vserrors.New(vserrors.ErrCodeIndexNotFound, fmt.Sprintf("index %s does not exist", name), nil)
		}
		return idx, nil
	}

	if idx, ok := m.open.Get(name); ok {
		return idx, nil
	}

	path := m.indexPath(name)
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return nil, vserrors.New(vserrors.ErrCodeIndexNotFound, fmt.Sprintf("index %s does not exist", name), err)
	}
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeCorruptIndex, fmt.Sprintf("failed to open index %s", name), err)
	}
	m.open.Add(name, idx)
	return idx, nil
}

// index returns the open handle for a collection's index.
func (m *IndexManager) index(collectionID string) (bleve.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked(IndexName(collectionID))
}

// HasIndex reports whether a collection's index exists.
func (m *IndexManager) HasIndex(collectionID string) bool {
	if m.mem != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, ok := m.mem[IndexName(collectionID)]
		return ok
	}
	_, err := os.Stat(m.indexPath(IndexName(collectionID)))
	return err == nil
}

// ExistingItemIDs returns the ids of every document in a collection's
// index. A full scan sized to the document count, not a bounded page, so
// incremental runs see large collections without truncation.
func (m *IndexManager) ExistingItemIDs(ctx context.Context, collectionID string) (map[string]struct{}, error) {
	idx, err := m.index(collectionID)
	if err != nil {
		if vserrors.GetCode(err) == vserrors.ErrCodeIndexNotFound {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}

	count, err := idx.DocCount()
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to count documents", err)
	}
	if count == 0 {
		return map[string]struct{}{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeIndexProvision, "failed to scan index", err)
	}

	ids := make(map[string]struct{}, len(res.Hits))
	for _, hit := range res.Hits {
		ids[hit.ID] = struct{}{}
	}
	return ids, nil
}

// Upsert writes one document, keyed by item id. Re-indexing the same id
// overwrites rather than duplicates.
func (m *IndexManager) Upsert(ctx context.Context, collectionID string, doc *ItemDocument) error {
	idx, err := m.index(collectionID)
	if err != nil {
		return err
	}
	if err := idx.Index(doc.ItemID, doc.indexRepr()); err != nil {
		return vserrors.IndexError("failed to index document", err).
			WithDetail("item_id", doc.ItemID)
	}
	return nil
}

// BulkUpsert writes many documents in one batch. Individual document
// failures are collected and returned; they do not abort the batch.
func (m *IndexManager) BulkUpsert(ctx context.Context, collectionID string, docs []*ItemDocument) (int, []BulkError) {
	idx, err := m.index(collectionID)
	if err != nil {
		errs := make([]BulkError, len(docs))
		for i, doc := range docs {
			errs[i] = BulkError{ItemID: doc.ItemID, Err: err}
		}
		return 0, errs
	}

	var errs []BulkError
	batch := idx.NewBatch()
	queued := make([]*ItemDocument, 0, len(docs))
	for _, doc := range docs {
		if err := batch.Index(doc.ItemID, doc.indexRepr()); err != nil {
			errs = append(errs, BulkError{ItemID: doc.ItemID, Err: err})
			continue
		}
		queued = append(queued, doc)
	}

	if len(queued) > 0 {
		if err := idx.Batch(batch); err != nil {
			// A rejected batch fails only the documents it carried; docs
			// that never made it into the batch already have their error.
			for _, doc := range queued {
				errs = append(errs, BulkError{ItemID: doc.ItemID, Err: err})
			}
			return 0, errs
		}
	}
	return len(queued), errs
}

// Search executes a query against a collection's index.
func (m *IndexManager) Search(ctx context.Context, collectionID string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	idx, err := m.index(collectionID)
	if err != nil {
		return nil, err
	}
	return idx.SearchInContext(ctx, req)
}

// DocCount returns the number of documents in a collection's index.
func (m *IndexManager) DocCount(collectionID string) (uint64, error) {
	idx, err := m.index(collectionID)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// DeleteIndex destroys a collection's index.
func (m *IndexManager) DeleteIndex(ctx context.Context, collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := IndexName(collectionID)

	if m.mem != nil {
		if idx, ok := m.mem[name]; ok {
			_ = idx.Close()
			delete(m.mem, name)
		}
		return nil
	}

	m.open.Remove(name) // evict callback closes the handle
	if err := os.RemoveAll(m.indexPath(name)); err != nil {
		return vserrors.New(vserrors.ErrCodeIndexProvision, "failed to delete index", err)
	}
	return nil
}

// Close closes every open index.
func (m *IndexManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mem != nil {
		for name, idx := range m.mem {
			_ = idx.Close()
			delete(m.mem, name)
		}
		return nil
	}

	m.open.Purge() // evict callback closes each index
	return nil
}
