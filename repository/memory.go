package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"vidstream/constant"
	"vidstream/entities"
)

// MemoryRepository is an in-memory MediaRepository with the same update
// semantics as the Postgres implementation. It backs tests and local runs
// without a database.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*entities.MediaItem
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID: 1,
		data:   make(map[int64]*entities.MediaItem),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, item *entities.MediaItem) error {
	if item == nil || item.ExternalID == "" {
		return entities.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.nextID
	r.nextID++
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	// Defensive copy so callers cannot mutate the stored row.
	cp := *item
	r.data[item.ID] = &cp

	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (*entities.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.data[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *MemoryRepository) FindByExternalID(ctx context.Context, externalID string) (*entities.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.data {
		if item.ExternalID == externalID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, entities.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context, params ListParams) ([]*entities.MediaItem, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*entities.MediaItem, 0, len(r.data))
	for _, item := range r.data {
		if params.OwnerID != 0 && item.OwnerID != params.OwnerID {
			continue
		}
		if params.Status != "" && item.Status != params.Status {
			continue
		}
		cp := *item
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * perPage
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id int64, update entities.MediaUpdate) (*entities.MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.data[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	if item.Status == constant.MediaStatusDeleted {
		return nil, entities.ErrDeleted
	}

	applyUpdate(item, update)
	cp := *item
	return &cp, nil
}

func (r *MemoryRepository) SoftDelete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.data[id]
	if !ok {
		return entities.ErrNotFound
	}
	if item.Status == constant.MediaStatusDeleted {
		return nil
	}

	item.Status = constant.MediaStatusDeleted
	item.StagingPath = nil
	item.StoredPath = nil
	item.ThumbnailPath = nil
	item.StreamingURL = nil
	item.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) Stats(ctx context.Context, ownerID int64) (*entities.MediaStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &entities.MediaStats{}
	for _, item := range r.data {
		if ownerID != 0 && item.OwnerID != ownerID {
			continue
		}
		stats.TotalItems++
		switch item.Status {
		case constant.MediaStatusCompleted:
			stats.CompletedItems++
		case constant.MediaStatusUploading, constant.MediaStatusProcessing:
			stats.ProcessingItems++
		case constant.MediaStatusFailed:
			stats.FailedItems++
		}
		if item.SizeBytes != nil {
			stats.TotalSizeBytes += *item.SizeBytes
		}
	}
	return stats, nil
}
