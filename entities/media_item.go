package entities

import (
	"strings"
	"time"

	"vidstream/constant"
)

// MediaItem is the durable record of one uploaded asset. The external id is
// the only identifier ever exposed to clients; the numeric id stays internal.
type MediaItem struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ExternalID string `json:"external_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_media_items_external_id"`

	Title       string `json:"title" gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text"`

	OriginalName string  `json:"original_name" gorm:"type:varchar(255);not null"`
	StagingPath  *string `json:"staging_path" gorm:"type:varchar(500)"`
	StoredPath   *string `json:"stored_path" gorm:"type:varchar(500)"`

	SizeBytes       *int64  `json:"size_bytes" gorm:"type:bigint"`
	DurationSeconds *int    `json:"duration_seconds" gorm:"type:integer"`
	Resolution      *string `json:"resolution" gorm:"type:varchar(20)"`
	ContainerFormat *string `json:"container_format" gorm:"type:varchar(50)"`

	Status        constant.MediaStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_media_items_status"`
	Progress      int                  `json:"progress" gorm:"not null;default:0"`
	ProcessingLog string               `json:"processing_log" gorm:"type:text"`
	ErrorDetail   *string              `json:"error_detail" gorm:"type:text"`

	StreamingURL  *string `json:"streaming_url" gorm:"type:varchar(500)"`
	ThumbnailPath *string `json:"thumbnail_path" gorm:"type:varchar(500)"`

	OwnerID int64 `json:"owner_id" gorm:"not null;index:idx_media_items_owner_id"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (MediaItem) TableName() string {
	return "media_items"
}

// LogEntries splits the append-only processing log into its ordered lines.
func (m *MediaItem) LogEntries() []string {
	if m.ProcessingLog == "" {
		return nil
	}
	return strings.Split(m.ProcessingLog, "\n")
}

// MediaUpdate is an explicit partial update applied through the repository.
// Nil pointer fields are left untouched.
type MediaUpdate struct {
	Title       *string
	Description *string

	Status   *constant.MediaStatus
	Progress *int

	SizeBytes       *int64
	DurationSeconds *int
	Resolution      *string
	ContainerFormat *string

	StagingPath   *string
	StoredPath    *string
	StreamingURL  *string
	ThumbnailPath *string
	ErrorDetail   *string

	CompletedAt *time.Time

	// ClearStagingPath nulls staging_path once the artifact reached
	// permanent storage.
	ClearStagingPath bool

	// AppendLog entries are added to the processing log in order.
	AppendLog []string
}

// MediaStats aggregates counts for the admin stats endpoint.
type MediaStats struct {
	TotalItems      int64 `json:"total_items"`
	CompletedItems  int64 `json:"completed_items"`
	ProcessingItems int64 `json:"processing_items"`
	FailedItems     int64 `json:"failed_items"`
	TotalSizeBytes  int64 `json:"total_size_bytes"`
}
