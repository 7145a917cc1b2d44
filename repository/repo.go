package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vidstream/constant"
	"vidstream/entities"
)

// ListParams filters and paginates the media listing. Zero values mean
// "no filter".
type ListParams struct {
	OwnerID int64
	Status  constant.MediaStatus
	Page    int
	PerPage int
}

type MediaRepository interface {
	Create(ctx context.Context, item *entities.MediaItem) error
	FindByID(ctx context.Context, id int64) (*entities.MediaItem, error)
	FindByExternalID(ctx context.Context, externalID string) (*entities.MediaItem, error)
	List(ctx context.Context, params ListParams) ([]*entities.MediaItem, int64, error)
	Update(ctx context.Context, id int64, update entities.MediaUpdate) (*entities.MediaItem, error)
	SoftDelete(ctx context.Context, id int64) error
	Stats(ctx context.Context, ownerID int64) (*entities.MediaStats, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) MediaRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) Create(ctx context.Context, item *entities.MediaItem) error {
	if item == nil || item.ExternalID == "" {
		return entities.ErrInvalidArgument
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repo) FindByID(ctx context.Context, id int64) (*entities.MediaItem, error) {
	item := &entities.MediaItem{}
	err := r.db.WithContext(ctx).First(item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *repo) FindByExternalID(ctx context.Context, externalID string) (*entities.MediaItem, error) {
	item := &entities.MediaItem{}
	err := r.db.WithContext(ctx).First(item, "external_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *repo) List(ctx context.Context, params ListParams) ([]*entities.MediaItem, int64, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = 10
	}

	query := r.db.WithContext(ctx).Model(&entities.MediaItem{})
	if params.OwnerID != 0 {
		query = query.Where("owner_id = ?", params.OwnerID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*entities.MediaItem
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Update applies a partial update inside a transaction so readers never
// observe a torn row. Writes to a DELETED row are refused, which makes a
// delete that races an in-flight processing job the item's final word.
func (r *repo) Update(ctx context.Context, id int64, update entities.MediaUpdate) (*entities.MediaItem, error) {
	item := &entities.MediaItem{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entities.ErrNotFound
			}
			return err
		}
		if item.Status == constant.MediaStatusDeleted {
			return entities.ErrDeleted
		}

		applyUpdate(item, update)
		return tx.Save(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SoftDelete marks the row DELETED and nulls the file-location fields; the
// row itself stays for audit.
func (r *repo) SoftDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item := &entities.MediaItem{}
		if err := tx.First(item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entities.ErrNotFound
			}
			return err
		}
		if item.Status == constant.MediaStatusDeleted {
			return nil
		}

		item.Status = constant.MediaStatusDeleted
		item.StagingPath = nil
		item.StoredPath = nil
		item.ThumbnailPath = nil
		item.StreamingURL = nil
		return tx.Save(item).Error
	})
}

func (r *repo) Stats(ctx context.Context, ownerID int64) (*entities.MediaStats, error) {
	stats := &entities.MediaStats{}

	query := r.db.WithContext(ctx).Model(&entities.MediaItem{})
	if ownerID != 0 {
		query = query.Where("owner_id = ?", ownerID)
	}

	if err := query.Session(&gorm.Session{}).Count(&stats.TotalItems).Error; err != nil {
		return nil, err
	}
	if err := query.Session(&gorm.Session{}).Where("status = ?", constant.MediaStatusCompleted).Count(&stats.CompletedItems).Error; err != nil {
		return nil, err
	}
	if err := query.Session(&gorm.Session{}).Where("status IN ?", []constant.MediaStatus{constant.MediaStatusUploading, constant.MediaStatusProcessing}).Count(&stats.ProcessingItems).Error; err != nil {
		return nil, err
	}
	if err := query.Session(&gorm.Session{}).Where("status = ?", constant.MediaStatusFailed).Count(&stats.FailedItems).Error; err != nil {
		return nil, err
	}

	var totalSize sql.NullInt64
	if err := query.Session(&gorm.Session{}).Select("COALESCE(SUM(size_bytes), 0)").Scan(&totalSize).Error; err != nil {
		return nil, err
	}
	stats.TotalSizeBytes = totalSize.Int64

	return stats, nil
}

// applyUpdate mutates the loaded snapshot according to the update rules:
// progress never decreases and completed_at is set exactly once.
func applyUpdate(item *entities.MediaItem, update entities.MediaUpdate) {
	if update.Title != nil {
		item.Title = *update.Title
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.Status != nil {
		item.Status = *update.Status
	}
	if update.Progress != nil && *update.Progress > item.Progress {
		item.Progress = *update.Progress
	}
	if update.SizeBytes != nil {
		item.SizeBytes = update.SizeBytes
	}
	if update.DurationSeconds != nil {
		item.DurationSeconds = update.DurationSeconds
	}
	if update.Resolution != nil {
		item.Resolution = update.Resolution
	}
	if update.ContainerFormat != nil {
		item.ContainerFormat = update.ContainerFormat
	}
	if update.StagingPath != nil {
		item.StagingPath = update.StagingPath
	}
	if update.StoredPath != nil {
		item.StoredPath = update.StoredPath
	}
	if update.StreamingURL != nil {
		item.StreamingURL = update.StreamingURL
	}
	if update.ThumbnailPath != nil {
		item.ThumbnailPath = update.ThumbnailPath
	}
	if update.ErrorDetail != nil {
		item.ErrorDetail = update.ErrorDetail
	}
	if update.CompletedAt != nil && item.CompletedAt == nil {
		completedAt := *update.CompletedAt
		item.CompletedAt = &completedAt
	}
	if update.ClearStagingPath {
		item.StagingPath = nil
	}
	if len(update.AppendLog) > 0 {
		joined := strings.Join(update.AppendLog, "\n")
		if item.ProcessingLog == "" {
			item.ProcessingLog = joined
		} else {
			item.ProcessingLog += "\n" + joined
		}
	}
	item.UpdatedAt = time.Now()
}
