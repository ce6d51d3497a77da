package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	vserrors "vodsearch/internal/errors"
)

// MetadataStore is the SQLite-backed document store. It holds collection
// metadata and the full item records, segments included, so search
// results and exports can be hydrated without storing content in the
// search index.
type MetadataStore struct {
	db   *sql.DB
	path string
}

// NewMetadataStore opens (or creates) the metadata database at
// dataDir/metadata.db. An empty dataDir opens an in-memory database,
// which is how the tests run.
func NewMetadataStore(dataDir string) (*MetadataStore, error) {
	dsn := ":memory:"
	path := ""
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to create data directory", err)
		}
		path = filepath.Join(dataDir, "metadata.db")
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to open metadata database", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != "" {
		// DSN params may be ignored by modernc.org/sqlite; set pragmas explicitly.
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA temp_store = MEMORY",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				_ = db.Close()
				return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to set pragma", err)
			}
		}
	}

	s := &MetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to initialize schema", err)
	}
	return s, nil
}

func (s *MetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS collections (
		id                  TEXT PRIMARY KEY,
		title               TEXT NOT NULL DEFAULT '',
		thumbnail           TEXT NOT NULL DEFAULT '',
		declared_item_count INTEGER NOT NULL DEFAULT 0,
		indexed_item_count  INTEGER NOT NULL DEFAULT 0,
		last_indexed_at     TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS items (
		collection_id TEXT NOT NULL,
		item_id       TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		channel       TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMP,
		view_count    INTEGER NOT NULL DEFAULT 0,
		thumbnail     TEXT NOT NULL DEFAULT '',
		segments      TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (collection_id, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_items_channel ON items (collection_id, channel);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCollection inserts or replaces a collection's metadata record.
func (s *MetadataStore) SaveCollection(ctx context.Context, meta *CollectionMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, title, thumbnail, declared_item_count, indexed_item_count, last_indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			thumbnail = excluded.thumbnail,
			declared_item_count = excluded.declared_item_count,
			indexed_item_count = excluded.indexed_item_count,
			last_indexed_at = excluded.last_indexed_at`,
		meta.ID, meta.Title, meta.Thumbnail, meta.DeclaredItemCount, meta.IndexedItemCount, meta.LastIndexedAt)
	if err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to save collection", err)
	}
	return nil
}

// GetCollection returns a collection's metadata, or nil when unknown.
func (s *MetadataStore) GetCollection(ctx context.Context, id string) (*CollectionMeta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, thumbnail, declared_item_count, indexed_item_count, last_indexed_at
		FROM collections WHERE id = ?`, id)
	meta, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to load collection", err)
	}
	return meta, nil
}

// ListCollections returns every known collection, most recently indexed
// first.
func (s *MetadataStore) ListCollections(ctx context.Context) ([]*CollectionMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, thumbnail, declared_item_count, indexed_item_count, last_indexed_at
		FROM collections
		ORDER BY last_indexed_at DESC, id ASC`)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to list collections", err)
	}
	defer rows.Close()

	var out []*CollectionMeta
	for rows.Next() {
		meta, err := scanCollection(rows)
		if err != nil {
			return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to scan collection", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to list collections", err)
	}
	return out, nil
}

// DeleteCollection removes a collection's metadata and all of its items.
func (s *MetadataStore) DeleteCollection(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE collection_id = ?`, id); err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to delete items", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to delete collection", err)
	}
	if err := tx.Commit(); err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to commit", err)
	}
	return nil
}

// SaveItems inserts or replaces item records in one transaction.
func (s *MetadataStore) SaveItems(ctx context.Context, collectionID string, docs []*ItemDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (collection_id, item_id, title, description, channel, published_at, view_count, thumbnail, segments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, item_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			channel = excluded.channel,
			published_at = excluded.published_at,
			view_count = excluded.view_count,
			thumbnail = excluded.thumbnail,
			segments = excluded.segments`)
	if err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		segments, err := json.Marshal(doc.Segments)
		if err != nil {
			return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to encode segments", err).
				WithDetail("item_id", doc.ItemID)
		}
		if _, err := stmt.ExecContext(ctx,
			collectionID, doc.ItemID, doc.Title, doc.Description, doc.Channel,
			doc.PublishedAt, doc.ViewCount, doc.Thumbnail, string(segments)); err != nil {
			return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to save item", err).
				WithDetail("item_id", doc.ItemID)
		}
	}

	if err := tx.Commit(); err != nil {
		return vserrors.New(vserrors.ErrCodeMetadataStore, "failed to commit", err)
	}
	return nil
}

// GetItems returns the full records for the given item ids. Unknown ids
// are silently absent from the result.
func (s *MetadataStore) GetItems(ctx context.Context, collectionID string, itemIDs []string) (map[string]*ItemDocument, error) {
	out := make(map[string]*ItemDocument, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, collectionID)
	placeholders := ""
	for i, id := range itemIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT item_id, title, description, channel, published_at, view_count, thumbnail, segments
		FROM items WHERE collection_id = ? AND item_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to load items", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanItem(rows)
		if err != nil {
			return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to scan item", err)
		}
		out[doc.ItemID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to load items", err)
	}
	return out, nil
}

// AllItems returns every item record of a collection, ordered by item id.
// Used by exports.
func (s *MetadataStore) AllItems(ctx context.Context, collectionID string) ([]*ItemDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, title, description, channel, published_at, view_count, thumbnail, segments
		FROM items WHERE collection_id = ? ORDER BY item_id ASC`, collectionID)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to load items", err)
	}
	defer rows.Close()

	var out []*ItemDocument
	for rows.Next() {
		doc, err := scanItem(rows)
		if err != nil {
			return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to scan item", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to load items", err)
	}
	return out, nil
}

// Channels returns the distinct channel names of a collection.
func (s *MetadataStore) Channels(ctx context.Context, collectionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT channel FROM items
		WHERE collection_id = ? AND channel != ''
		ORDER BY channel ASC`, collectionID)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to list channels", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var channel string
		if err := rows.Scan(&channel); err != nil {
			return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to scan channel", err)
		}
		out = append(out, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeMetadataStore, "failed to list channels", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (*CollectionMeta, error) {
	var meta CollectionMeta
	var lastIndexed sql.NullTime
	if err := row.Scan(&meta.ID, &meta.Title, &meta.Thumbnail,
		&meta.DeclaredItemCount, &meta.IndexedItemCount, &lastIndexed); err != nil {
		return nil, err
	}
	if lastIndexed.Valid {
		meta.LastIndexedAt = lastIndexed.Time
	}
	return &meta, nil
}

func scanItem(row scanner) (*ItemDocument, error) {
	var doc ItemDocument
	var published sql.NullTime
	var segments string
	if err := row.Scan(&doc.ItemID, &doc.Title, &doc.Description, &doc.Channel,
		&published, &doc.ViewCount, &doc.Thumbnail, &segments); err != nil {
		return nil, err
	}
	if published.Valid {
		doc.PublishedAt = published.Time
	}
	if err := json.Unmarshal([]byte(segments), &doc.Segments); err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		texts = append(texts, seg.Text)
	}
	doc.FullText = strings.Join(texts, " ")
	return &doc, nil
}
