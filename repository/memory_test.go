package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vidstream/constant"
	"vidstream/entities"
)

func newItem(t *testing.T, repo *MemoryRepository, owner int64) *entities.MediaItem {
	t.Helper()
	item := &entities.MediaItem{
		ExternalID:   uuid.NewString(),
		Title:        "clip",
		OriginalName: "clip.mp4",
		Status:       constant.MediaStatusUploading,
		OwnerID:      owner,
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func statusPtr(s constant.MediaStatus) *constant.MediaStatus { return &s }
func intPtr(i int) *int                                      { return &i }
func strPtr(s string) *string                                { return &s }

func TestCreateAssignsIDs(t *testing.T) {
	repo := NewMemoryRepository()

	a := newItem(t, repo, 1)
	b := newItem(t, repo, 1)
	require.NotEqual(t, a.ID, b.ID)

	got, err := repo.FindByExternalID(context.Background(), a.ExternalID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = repo.FindByExternalID(context.Background(), "nope")
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestUpdateProgressNeverDecreases(t *testing.T) {
	repo := NewMemoryRepository()
	item := newItem(t, repo, 1)
	ctx := context.Background()

	got, err := repo.Update(ctx, item.ID, entities.MediaUpdate{Progress: intPtr(40)})
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress)

	// A stale lower checkpoint must not move progress backwards.
	got, err = repo.Update(ctx, item.ID, entities.MediaUpdate{Progress: intPtr(20)})
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress)

	got, err = repo.Update(ctx, item.ID, entities.MediaUpdate{Progress: intPtr(80)})
	require.NoError(t, err)
	require.Equal(t, 80, got.Progress)
}

func TestUpdateSetsCompletedAtOnce(t *testing.T) {
	repo := NewMemoryRepository()
	item := newItem(t, repo, 1)
	ctx := context.Background()

	first := time.Now().Add(-time.Hour)
	got, err := repo.Update(ctx, item.ID, entities.MediaUpdate{
		Status:      statusPtr(constant.MediaStatusCompleted),
		CompletedAt: &first,
	})
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	require.True(t, got.CompletedAt.Equal(first))

	second := time.Now()
	got, err = repo.Update(ctx, item.ID, entities.MediaUpdate{CompletedAt: &second})
	require.NoError(t, err)
	require.True(t, got.CompletedAt.Equal(first))
}

func TestUpdateAppendsLogInOrder(t *testing.T) {
	repo := NewMemoryRepository()
	item := newItem(t, repo, 1)
	ctx := context.Background()

	_, err := repo.Update(ctx, item.ID, entities.MediaUpdate{AppendLog: []string{"starting"}})
	require.NoError(t, err)
	got, err := repo.Update(ctx, item.ID, entities.MediaUpdate{AppendLog: []string{"probing", "storing"}})
	require.NoError(t, err)

	require.Equal(t, []string{"starting", "probing", "storing"}, got.LogEntries())
}

func TestSoftDeleteKeepsRowAndGuardsWrites(t *testing.T) {
	repo := NewMemoryRepository()
	item := newItem(t, repo, 1)
	ctx := context.Background()

	_, err := repo.Update(ctx, item.ID, entities.MediaUpdate{StoredPath: strPtr("processed/x.mp4")})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, item.ID))

	// The row stays queryable, but points at nothing.
	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusDeleted, got.Status)
	require.Nil(t, got.StoredPath)
	require.Nil(t, got.ThumbnailPath)

	// A worker racing the delete cannot resurrect file paths.
	_, err = repo.Update(ctx, item.ID, entities.MediaUpdate{StoredPath: strPtr("processed/y.mp4")})
	require.ErrorIs(t, err, entities.ErrDeleted)

	// Deleting twice is a no-op.
	require.NoError(t, repo.SoftDelete(ctx, item.ID))
}

func TestListFiltersAndPaginates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		newItem(t, repo, 1)
	}
	other := newItem(t, repo, 2)
	_, err := repo.Update(ctx, other.ID, entities.MediaUpdate{Status: statusPtr(constant.MediaStatusCompleted)})
	require.NoError(t, err)

	items, total, err := repo.List(ctx, ListParams{OwnerID: 1, Page: 1, PerPage: 3})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, items, 3)

	items, total, err = repo.List(ctx, ListParams{OwnerID: 1, Page: 2, PerPage: 3})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, items, 2)

	items, total, err = repo.List(ctx, ListParams{Status: constant.MediaStatusCompleted, Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, other.ID, items[0].ID)
}

func TestListOrdersNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := newItem(t, repo, 1)
	b := newItem(t, repo, 1)

	items, _, err := repo.List(ctx, ListParams{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, b.ID, items[0].ID)
	require.Equal(t, a.ID, items[1].ID)
}

func TestStats(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	done := newItem(t, repo, 1)
	size := int64(1024)
	_, err := repo.Update(ctx, done.ID, entities.MediaUpdate{
		Status:    statusPtr(constant.MediaStatusCompleted),
		SizeBytes: &size,
	})
	require.NoError(t, err)

	failed := newItem(t, repo, 1)
	_, err = repo.Update(ctx, failed.ID, entities.MediaUpdate{Status: statusPtr(constant.MediaStatusFailed)})
	require.NoError(t, err)

	newItem(t, repo, 1)

	stats, err := repo.Stats(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalItems)
	require.EqualValues(t, 1, stats.CompletedItems)
	require.EqualValues(t, 1, stats.FailedItems)
	require.EqualValues(t, 1, stats.ProcessingItems)
	require.EqualValues(t, 1024, stats.TotalSizeBytes)
}
