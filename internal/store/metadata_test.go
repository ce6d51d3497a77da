package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodsearch/internal/catalog"
)

func newTestMetadataStore(t *testing.T) *MetadataStore {
	t.Helper()
	s, err := NewMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMetadataStore_SaveAndGetCollection(t *testing.T) {
	// Given: a saved collection record
	s := newTestMetadataStore(t)
	ctx := context.Background()

	meta := &CollectionMeta{
		ID:                "PL1",
		Title:             "Conference Talks",
		Thumbnail:         "https://img.example/pl1.jpg",
		DeclaredItemCount: 12,
		IndexedItemCount:  10,
		LastIndexedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveCollection(ctx, meta))

	// When: loading it back
	got, err := s.GetCollection(ctx, "PL1")
	require.NoError(t, err)

	// Then: every field round-trips
	require.NotNil(t, got)
	assert.Equal(t, meta.Title, got.Title)
	assert.Equal(t, meta.DeclaredItemCount, got.DeclaredItemCount)
	assert.Equal(t, meta.IndexedItemCount, got.IndexedItemCount)
	assert.True(t, meta.LastIndexedAt.Equal(got.LastIndexedAt))
}

func TestMetadataStore_GetCollection_Unknown(t *testing.T) {
	// Given: an empty store
	s := newTestMetadataStore(t)

	// When: loading an unknown collection
	got, err := s.GetCollection(context.Background(), "nope")

	// Then: nil without error
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMetadataStore_SaveCollection_Overwrites(t *testing.T) {
	// Given: a collection saved twice
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, &CollectionMeta{ID: "PL1", Title: "old", IndexedItemCount: 1}))
	require.NoError(t, s.SaveCollection(ctx, &CollectionMeta{ID: "PL1", Title: "new", IndexedItemCount: 5}))

	// Then: the second save wins
	got, err := s.GetCollection(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, 5, got.IndexedItemCount)
}

func TestMetadataStore_ListCollections_MostRecentFirst(t *testing.T) {
	// Given: two collections indexed at different times
	s := newTestMetadataStore(t)
	ctx := context.Background()

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveCollection(ctx, &CollectionMeta{ID: "PL-old", LastIndexedAt: older}))
	require.NoError(t, s.SaveCollection(ctx, &CollectionMeta{ID: "PL-new", LastIndexedAt: newer}))

	// When: listing
	list, err := s.ListCollections(ctx)
	require.NoError(t, err)

	// Then: most recently indexed first
	require.Len(t, list, 2)
	assert.Equal(t, "PL-new", list[0].ID)
	assert.Equal(t, "PL-old", list[1].ID)
}

func TestMetadataStore_SaveAndGetItems(t *testing.T) {
	// Given: items with transcript segments
	s := newTestMetadataStore(t)
	ctx := context.Background()

	segments := []catalog.Segment{
		{Text: "hello there", Start: 0, Duration: 2.5},
		{Text: "general kenobi", Start: 2.5, Duration: 3},
	}
	docs := []*ItemDocument{
		NewItemDocument(testItem("v1", "first", "chan-a"), segments),
		NewItemDocument(testItem("v2", "second", "chan-b"), nil),
	}
	require.NoError(t, s.SaveItems(ctx, "PL1", docs))

	// When: hydrating a subset plus an unknown id
	got, err := s.GetItems(ctx, "PL1", []string{"v1", "v-missing"})
	require.NoError(t, err)

	// Then: known items come back whole, unknown ids are absent
	require.Len(t, got, 1)
	doc := got["v1"]
	require.NotNil(t, doc)
	assert.Equal(t, "first", doc.Title)
	require.Len(t, doc.Segments, 2)
	assert.Equal(t, "general kenobi", doc.Segments[1].Text)
	assert.InDelta(t, 2.5, doc.Segments[1].Start, 0.001)
	assert.Equal(t, "hello there general kenobi", doc.FullText)
}

func TestMetadataStore_SaveItems_Upserts(t *testing.T) {
	// Given: the same item saved twice
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItems(ctx, "PL1", []*ItemDocument{
		NewItemDocument(testItem("v1", "old", "c"), nil),
	}))
	require.NoError(t, s.SaveItems(ctx, "PL1", []*ItemDocument{
		NewItemDocument(testItem("v1", "new", "c"), nil),
	}))

	// Then: one record, latest content
	all, err := s.AllItems(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Title)
}

func TestMetadataStore_Channels(t *testing.T) {
	// Given: items across three channels, one empty
	s := newTestMetadataStore(t)
	ctx := context.Background()

	items := []*ItemDocument{
		NewItemDocument(testItem("v1", "a", "zeta"), nil),
		NewItemDocument(testItem("v2", "b", "alpha"), nil),
		NewItemDocument(testItem("v3", "c", "alpha"), nil),
		NewItemDocument(testItem("v4", "d", ""), nil),
	}
	require.NoError(t, s.SaveItems(ctx, "PL1", items))

	// When: listing channels
	channels, err := s.Channels(ctx, "PL1")
	require.NoError(t, err)

	// Then: distinct, sorted, empty names dropped
	assert.Equal(t, []string{"alpha", "zeta"}, channels)
}

func TestMetadataStore_DeleteCollection_RemovesItems(t *testing.T) {
	// Given: a collection with metadata and items
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, &CollectionMeta{ID: "PL1", Title: "t"}))
	require.NoError(t, s.SaveItems(ctx, "PL1", []*ItemDocument{
		NewItemDocument(testItem("v1", "a", "c"), nil),
	}))

	// When: deleting the collection
	require.NoError(t, s.DeleteCollection(ctx, "PL1"))

	// Then: metadata and items are both gone
	got, err := s.GetCollection(ctx, "PL1")
	require.NoError(t, err)
	assert.Nil(t, got)

	all, err := s.AllItems(ctx, "PL1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMetadataStore_Persistence(t *testing.T) {
	// Given: a disk-backed store with one item
	dir := t.TempDir()
	s, err := NewMetadataStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.SaveItems(ctx, "PL1", []*ItemDocument{
		NewItemDocument(testItem("v1", "kept", "c"), nil),
	}))
	require.NoError(t, s.Close())

	// When: reopening the same directory
	s2, err := NewMetadataStore(dir)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	// Then: the item survived
	all, err := s2.AllItems(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].Title)
}
