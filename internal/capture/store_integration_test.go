package capture_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
	"github.com/Nathanim1919/deepen-backend/internal/testutil"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool := testutil.StartPostgres(t)
	store := capture.New(pool, testutil.DiscardLogger())
	ctx := context.Background()
	userID := uuid.New()

	t.Run("create and get round trip", func(t *testing.T) {
		created, err := store.Create(ctx, userID, capture.Capture{
			Title:   "Raft paper",
			URL:     "https://raft.github.io",
			Content: "In search of an understandable consensus algorithm.",
			Format:  "article",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, capture.StatusActive, created.Status)

		got, err := store.Get(ctx, userID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Raft paper", got.Title)
		assert.Equal(t, "article", got.Format)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := store.Create(ctx, userID, capture.Capture{Content: "   "})
		assert.ErrorIs(t, err, capture.ErrEmptyContent)
	})

	t.Run("other users cannot see captures", func(t *testing.T) {
		created, err := store.Create(ctx, userID, capture.Capture{Content: "private"})
		require.NoError(t, err)

		_, err = store.Get(ctx, uuid.New(), created.ID)
		assert.ErrorIs(t, err, capture.ErrNotFound)
	})

	t.Run("bookmark toggling feeds bookmark scope", func(t *testing.T) {
		owner := uuid.New()
		created, err := store.Create(ctx, owner, capture.Capture{Content: "bookmark me"})
		require.NoError(t, err)

		ids, err := store.ListBookmarked(ctx, owner, capture.ListFilter{}, 100)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, store.SetBookmarked(ctx, owner, created.ID, true))

		ids, err = store.ListBookmarked(ctx, owner, capture.ListFilter{}, 100)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{created.ID}, ids)
	})

	t.Run("delete removes capture from active scope", func(t *testing.T) {
		owner := uuid.New()
		created, err := store.Create(ctx, owner, capture.Capture{Content: "short lived"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, owner, created.ID))

		_, err = store.Get(ctx, owner, created.ID)
		assert.ErrorIs(t, err, capture.ErrNotFound)

		ids, err := store.ListActive(ctx, owner, capture.ListFilter{}, 100)
		require.NoError(t, err)
		assert.NotContains(t, ids, created.ID)
	})

	t.Run("filter owned active drops foreign and deleted ids", func(t *testing.T) {
		owner := uuid.New()
		mine, err := store.Create(ctx, owner, capture.Capture{Content: "mine"})
		require.NoError(t, err)
		foreign, err := store.Create(ctx, uuid.New(), capture.Capture{Content: "not mine"})
		require.NoError(t, err)

		ids, err := store.FilterOwnedActive(ctx, owner, []uuid.UUID{mine.ID, foreign.ID, uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{mine.ID}, ids)
	})

	t.Run("collections union member captures", func(t *testing.T) {
		owner := uuid.New()
		first, err := store.Create(ctx, owner, capture.Capture{Content: "first member"})
		require.NoError(t, err)
		second, err := store.Create(ctx, owner, capture.Capture{Content: "second member"})
		require.NoError(t, err)

		col, err := store.CreateCollection(ctx, owner, "reading list", []uuid.UUID{first.ID, second.ID})
		require.NoError(t, err)
		assert.Equal(t, "reading list", col.Name)

		got, err := store.GetCollection(ctx, owner, col.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, got.CaptureIDs)

		ids, err := store.CollectionCaptureIDs(ctx, owner, []uuid.UUID{col.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)

		// Foreign users resolve nothing through the collection.
		ids, err = store.CollectionCaptureIDs(ctx, uuid.New(), []uuid.UUID{col.ID})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("meta lookup preserves ownership", func(t *testing.T) {
		owner := uuid.New()
		created, err := store.Create(ctx, owner, capture.Capture{Title: "titled", Content: "content"})
		require.NoError(t, err)

		metas, err := store.GetMeta(ctx, owner, []uuid.UUID{created.ID})
		require.NoError(t, err)
		require.Len(t, metas, 1)
		assert.Equal(t, "titled", metas[0].Title)

		metas, err = store.GetMeta(ctx, uuid.New(), []uuid.UUID{created.ID})
		require.NoError(t, err)
		assert.Empty(t, metas)
	})
}
