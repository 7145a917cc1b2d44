package dto

import (
	"time"

	"vidstream/constant"
	"vidstream/entities"
)

// ProcessMessage is the processing-lane queue envelope. The staging path
// travels with the message so a redelivered job can fail fast when the
// staged file is already gone.
type ProcessMessage struct {
	MediaID     int64  `json:"mediaId"`
	StagingPath string `json:"stagingPath"`
}

// CleanupMessage is the cleanup-lane queue envelope.
type CleanupMessage struct {
	RequestedAt time.Time `json:"requestedAt"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UploadResponse struct {
	ExternalID string               `json:"external_id"`
	Title      string               `json:"title"`
	Status     constant.MediaStatus `json:"status"`
	Progress   int                  `json:"progress"`
	Message    string               `json:"message"`
}

type MediaResponse struct {
	ExternalID      string               `json:"external_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	OriginalName    string               `json:"original_name"`
	Status          constant.MediaStatus `json:"status"`
	Progress        int                  `json:"progress"`
	SizeBytes       *int64               `json:"size_bytes"`
	DurationSeconds *int                 `json:"duration_seconds"`
	Resolution      *string              `json:"resolution"`
	ContainerFormat *string              `json:"container_format"`
	StreamingURL    *string              `json:"streaming_url"`
	HasThumbnail    bool                 `json:"has_thumbnail"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     *time.Time           `json:"completed_at"`
}

func NewMediaResponse(item *entities.MediaItem) MediaResponse {
	return MediaResponse{
		ExternalID:      item.ExternalID,
		Title:           item.Title,
		Description:     item.Description,
		OriginalName:    item.OriginalName,
		Status:          item.Status,
		Progress:        item.Progress,
		SizeBytes:       item.SizeBytes,
		DurationSeconds: item.DurationSeconds,
		Resolution:      item.Resolution,
		ContainerFormat: item.ContainerFormat,
		StreamingURL:    item.StreamingURL,
		HasThumbnail:    item.ThumbnailPath != nil,
		CreatedAt:       item.CreatedAt,
		CompletedAt:     item.CompletedAt,
	}
}

type MediaListResponse struct {
	Items   []MediaResponse `json:"items"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Pages   int             `json:"pages"`
}

type ProgressResponse struct {
	ExternalID string               `json:"external_id"`
	Status     constant.MediaStatus `json:"status"`
	Progress   int                  `json:"progress"`
	Log        []string             `json:"log"`
	Error      *string              `json:"error"`
}

type UpdateMediaRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type StreamTokenResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	StreamingURL string    `json:"streaming_url"`
}
