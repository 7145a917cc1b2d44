package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vidstream/config"
	"vidstream/constant"
	"vidstream/dto"
	"vidstream/entities"
	"vidstream/repository"
	"vidstream/storage"
	"vidstream/token"
)

const uploadCopyBufferSize = 1024 * 1024

// JobPublisher enqueues processing jobs; the request tier never talks to
// the worker tier directly.
type JobPublisher interface {
	PublishProcess(ctx context.Context, message dto.ProcessMessage) error
}

// MediaService is the request-tier facade: ingestion, queries, metadata
// edits, deletion, token issuance and stream authorization.
type MediaService struct {
	repo      repository.MediaRepository
	store     storage.Store
	publisher JobPublisher
	codec     *token.Codec
	cfg       *config.Config
}

func NewMediaService(repo repository.MediaRepository, store storage.Store, publisher JobPublisher, codec *token.Codec, cfg *config.Config) *MediaService {
	return &MediaService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		codec:     codec,
		cfg:       cfg,
	}
}

// Login verifies the configured admin credentials and issues a session
// token. User management beyond the single configured principal lives
// outside this service.
func (s *MediaService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if username != s.cfg.Auth.AdminUsername {
		return "", time.Time{}, fmt.Errorf("%w: unknown user", entities.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.AdminPasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: bad credentials", entities.ErrUnauthorized)
	}
	return s.codec.IssueSession(username, s.cfg.Auth.AdminUserID, true)
}

type UploadInput struct {
	Title       string
	Description string
	FileName    string
	Size        int64
	Reader      io.Reader
}

// Upload validates the incoming file, creates the item record, streams the
// bytes to staging and enqueues the processing job.
func (s *MediaService) Upload(ctx context.Context, ident token.Identity, input UploadInput) (*entities.MediaItem, error) {
	if err := s.validateUpload(input); err != nil {
		return nil, err
	}

	item := &entities.MediaItem{
		ExternalID:   uuid.NewString(),
		Title:        input.Title,
		Description:  input.Description,
		OriginalName: input.FileName,
		Status:       constant.MediaStatusUploading,
		Progress:     0,
		OwnerID:      ident.UserID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Int64("media_id", item.ID).Str("external_id", item.ExternalID).Msg("created media item")

	stagingPath := filepath.Join(s.cfg.Media.StagingDir, secureFilename(input.FileName))
	if err := s.saveStaging(input.Reader, stagingPath); err != nil {
		s.markFailed(ctx, item.ID, "failed to store upload: "+err.Error())
		if errors.Is(err, entities.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("store upload: %w", err)
	}

	progress := 5
	updated, err := s.repo.Update(ctx, item.ID, entities.MediaUpdate{
		StagingPath: &stagingPath,
		Progress:    &progress,
		AppendLog:   []string{"upload stored, queued for processing"},
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.PublishProcess(ctx, dto.ProcessMessage{
		MediaID:     item.ID,
		StagingPath: stagingPath,
	}); err != nil {
		s.markFailed(ctx, item.ID, "failed to enqueue processing job: "+err.Error())
		return nil, fmt.Errorf("enqueue processing job: %w", err)
	}

	zerolog.Ctx(ctx).Info().Int64("media_id", item.ID).Msg("enqueued processing job")
	return updated, nil
}

// validateUpload rejects bad input before any row or file exists.
func (s *MediaService) validateUpload(input UploadInput) error {
	if input.FileName == "" {
		return fmt.Errorf("%w: file name is required", entities.ErrValidation)
	}
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", entities.ErrValidation)
	}
	if input.Size > s.cfg.Media.MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds size limit (%d bytes)", entities.ErrValidation, s.cfg.Media.MaxUploadBytes)
	}

	ext := fileExtension(input.FileName)
	allowed := false
	for _, candidate := range s.cfg.Media.AllowedExtensions {
		if strings.EqualFold(candidate, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: file type %q is not allowed", entities.ErrValidation, ext)
	}

	if mimeType := mime.TypeByExtension("." + ext); mimeType != "" && !strings.HasPrefix(mimeType, "video/") {
		return fmt.Errorf("%w: file must be a video", entities.ErrValidation)
	}

	return nil
}

// saveStaging streams the upload to disk in bounded chunks; the whole file
// is never buffered in memory. A partial file is removed on failure.
func (s *MediaService) saveStaging(reader io.Reader, stagingPath string) error {
	if err := os.MkdirAll(filepath.Dir(stagingPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(stagingPath)
	if err != nil {
		return err
	}

	buf := make([]byte, uploadCopyBufferSize)
	written, err := io.CopyBuffer(file, io.LimitReader(reader, s.cfg.Media.MaxUploadBytes+1), buf)
	if err != nil {
		file.Close()
		os.Remove(stagingPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(stagingPath)
		return err
	}
	if written > s.cfg.Media.MaxUploadBytes {
		os.Remove(stagingPath)
		return fmt.Errorf("%w: file exceeds size limit (%d bytes)", entities.ErrValidation, s.cfg.Media.MaxUploadBytes)
	}

	return nil
}

func (s *MediaService) markFailed(ctx context.Context, id int64, detail string) {
	failed := constant.MediaStatusFailed
	if _, err := s.repo.Update(ctx, id, entities.MediaUpdate{
		Status:      &failed,
		ErrorDetail: &detail,
		AppendLog:   []string{"error: " + detail},
	}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("media_id", id).Msg("failed to mark media item as failed")
	}
}

// Get returns the item scoped to the caller: admins see everything, other
// principals only their own items.
func (s *MediaService) Get(ctx context.Context, ident token.Identity, externalID string) (*entities.MediaItem, error) {
	item, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if !ident.Admin && item.OwnerID != ident.UserID {
		return nil, entities.ErrNotFound
	}
	return item, nil
}

func (s *MediaService) List(ctx context.Context, ident token.Identity, params repository.ListParams) ([]*entities.MediaItem, int64, error) {
	if !ident.Admin {
		params.OwnerID = ident.UserID
	}
	return s.repo.List(ctx, params)
}

func (s *MediaService) Stats(ctx context.Context, ident token.Identity) (*entities.MediaStats, error) {
	ownerID := int64(0)
	if !ident.Admin {
		ownerID = ident.UserID
	}
	return s.repo.Stats(ctx, ownerID)
}

// UpdateMetadata edits the caller-mutable fields.
func (s *MediaService) UpdateMetadata(ctx context.Context, ident token.Identity, externalID string, title, description *string) (*entities.MediaItem, error) {
	item, err := s.Get(ctx, ident, externalID)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, item.ID, entities.MediaUpdate{
		Title:       title,
		Description: description,
	})
}

// Delete soft-deletes the item and best-effort removes its artifacts. The
// row stays queryable with status DELETED.
func (s *MediaService) Delete(ctx context.Context, ident token.Identity, externalID string) error {
	item, err := s.Get(ctx, ident, externalID)
	if err != nil {
		return err
	}
	if item.Status == constant.MediaStatusDeleted {
		return nil
	}

	if item.StoredPath != nil {
		if err := s.store.Remove(ctx, *item.StoredPath); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("media_id", item.ID).Msg("failed to remove stored artifact")
		}
	}
	if item.ThumbnailPath != nil {
		if err := s.store.Remove(ctx, *item.ThumbnailPath); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("media_id", item.ID).Msg("failed to remove thumbnail")
		}
	}
	if item.StagingPath != nil {
		if err := os.Remove(*item.StagingPath); err != nil && !os.IsNotExist(err) {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("media_id", item.ID).Msg("failed to remove staging file")
		}
	}

	if err := s.repo.SoftDelete(ctx, item.ID); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("media_id", item.ID).Msg("media item deleted")
	return nil
}

// IssueStreamToken mints a stream token for a COMPLETED item. Elevated
// sessions only.
func (s *MediaService) IssueStreamToken(ctx context.Context, ident token.Identity, externalID string) (string, time.Time, *entities.MediaItem, error) {
	if !ident.Admin {
		return "", time.Time{}, nil, entities.ErrUnauthorized
	}
	item, err := s.Get(ctx, ident, externalID)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	if item.Status != constant.MediaStatusCompleted {
		return "", time.Time{}, nil, entities.ErrNotReady
	}

	signed, expiresAt, err := s.codec.IssueStream(item.ID, ident.UserID)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return signed, expiresAt, item, nil
}

// AuthorizeStream gates read access to an item's bytes: a matching stream
// token or an elevated session. The item must be COMPLETED; anything else
// is "not ready", which callers can tell apart from "not found" and
// "unauthorized".
func (s *MediaService) AuthorizeStream(ctx context.Context, ident *token.Identity, externalID, streamToken string) (*entities.MediaItem, error) {
	item, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if item.Status == constant.MediaStatusDeleted {
		return nil, entities.ErrNotFound
	}
	if item.Status != constant.MediaStatusCompleted {
		return nil, entities.ErrNotReady
	}

	if streamToken != "" {
		if err := s.codec.VerifyStream(streamToken, item.ID); err != nil {
			return nil, err
		}
	} else if ident == nil || !ident.Admin {
		return nil, fmt.Errorf("%w: stream token required", entities.ErrUnauthorized)
	}

	if item.StoredPath == nil {
		return nil, entities.ErrNotFound
	}
	return item, nil
}

// OpenStored opens the permanent artifact for ranged serving.
func (s *MediaService) OpenStored(ctx context.Context, item *entities.MediaItem) (io.ReadSeekCloser, storage.Info, error) {
	if item.StoredPath == nil {
		return nil, storage.Info{}, entities.ErrNotFound
	}
	return s.store.Open(ctx, *item.StoredPath)
}

// OpenThumbnail opens the item's thumbnail, scoped like Get.
func (s *MediaService) OpenThumbnail(ctx context.Context, ident token.Identity, externalID string) (io.ReadSeekCloser, storage.Info, error) {
	item, err := s.Get(ctx, ident, externalID)
	if err != nil {
		return nil, storage.Info{}, err
	}
	if item.ThumbnailPath == nil {
		return nil, storage.Info{}, entities.ErrNotFound
	}
	return s.store.Open(ctx, *item.ThumbnailPath)
}
