package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"vidstream/config"
	"vidstream/constant"
	"vidstream/dto"
	"vidstream/entities"
	"vidstream/repository"
	"vidstream/storage"
)

// ErrNonRetryable marks a failure the queue must not redeliver: the item
// has already been moved to FAILED with the detail recorded.
var ErrNonRetryable = errors.New("non-retryable error")

// Checkpoint progress values, coarse by design.
const (
	progressStarted   = 10
	progressValidated = 20
	progressProbed    = 40
	progressStored    = 80
	progressDone      = 100
)

// Processor drives one media item through the processing state machine:
// validate the staged file, probe metadata, produce the permanent artifact,
// extract a thumbnail and finalize.
type Processor struct {
	repo   repository.MediaRepository
	store  storage.Store
	cfg    *config.Config
	runner Runner
}

func NewProcessor(repo repository.MediaRepository, store storage.Store, cfg *config.Config, runner Runner) *Processor {
	return &Processor{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		runner: runner,
	}
}

func (p *Processor) Process(ctx context.Context, message dto.ProcessMessage) (err error) {
	zerolog.Ctx(ctx).Info().Int64("media_id", message.MediaID).Msg("processing media item")

	item, err := p.repo.FindByID(ctx, message.MediaID)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			zerolog.Ctx(ctx).Warn().Int64("media_id", message.MediaID).Msg("media item not found, dropping job")
			return nil
		}
		return err
	}

	if item.Status.Terminal() {
		zerolog.Ctx(ctx).Info().Int64("media_id", item.ID).Str("status", item.Status.String()).Msg("media item already finished, dropping job")
		return nil
	}

	defer func() {
		if err == nil {
			return
		}
		if errors.Is(err, entities.ErrDeleted) {
			zerolog.Ctx(ctx).Info().Int64("media_id", message.MediaID).Msg("media item deleted mid-processing, abandoning job")
			p.removeStaging(ctx, message.StagingPath)
			err = nil
			return
		}
		if errors.Is(err, ErrNonRetryable) {
			detail := err.Error()
			failed := constant.MediaStatusFailed
			if _, updateErr := p.repo.Update(ctx, message.MediaID, entities.MediaUpdate{
				Status:      &failed,
				ErrorDetail: &detail,
				AppendLog:   []string{"error: " + detail},
			}); updateErr != nil && !errors.Is(updateErr, entities.ErrDeleted) {
				zerolog.Ctx(ctx).Error().Err(updateErr).Int64("media_id", message.MediaID).Msg("failed to mark media item as failed")
			}
			p.removeStaging(ctx, message.StagingPath)
			err = nil
		}
		// Retryable errors keep the staging file so a redelivered job can
		// run the pipeline again from scratch.
	}()

	processing := constant.MediaStatusProcessing
	progress := progressStarted
	if _, err = p.repo.Update(ctx, item.ID, entities.MediaUpdate{
		Status:    &processing,
		Progress:  &progress,
		AppendLog: []string{"starting media processing"},
	}); err != nil {
		return err
	}

	// The staged file can disappear between enqueue and dequeue, and a
	// redelivered job must fail fast once it is gone.
	info, statErr := os.Stat(message.StagingPath)
	if statErr != nil {
		return errors.Join(ErrNonRetryable, fmt.Errorf("staging file missing: %s", message.StagingPath))
	}

	size := info.Size()
	progress = progressValidated
	if _, err = p.repo.Update(ctx, item.ID, entities.MediaUpdate{
		SizeBytes: &size,
		Progress:  &progress,
		AppendLog: []string{"file validation completed"},
	}); err != nil {
		return err
	}

	// Probe failure degrades gracefully: the metadata fields stay null and
	// the pipeline continues.
	update := entities.MediaUpdate{}
	meta, probeErr := probeMedia(ctx, p.runner, p.cfg.Media.FFprobeBin, p.cfg.Media.ProbeTimeout, message.StagingPath)
	if probeErr != nil {
		zerolog.Ctx(ctx).Warn().Err(probeErr).Int64("media_id", item.ID).Msg("metadata probe failed, continuing without metadata")
		update.AppendLog = []string{"metadata probe failed, continuing without metadata"}
	} else {
		update.DurationSeconds = meta.DurationSeconds
		update.Resolution = meta.Resolution
		update.ContainerFormat = meta.ContainerFormat
		update.AppendLog = []string{"metadata extracted"}
	}
	progress = progressProbed
	update.Progress = &progress
	if _, err = p.repo.Update(ctx, item.ID, update); err != nil {
		return err
	}

	workDir, mkErr := os.MkdirTemp("", "vidstream-*")
	if mkErr != nil {
		return mkErr
	}
	defer os.RemoveAll(workDir)

	artifactName := secureFilename(item.OriginalName)
	storedKey := path.Join("processed", artifactName)

	if p.cfg.Media.EnableTranscode {
		outputPath := filepath.Join(workDir, artifactName)
		if transcodeErr := transcodeMedia(ctx, p.runner, p.cfg.Media.FFmpegBin, p.cfg.Media.TranscodeTimeout, message.StagingPath, outputPath); transcodeErr != nil {
			return errors.Join(ErrNonRetryable, transcodeErr)
		}
		if err = p.store.Save(ctx, storedKey, outputPath); err != nil {
			return err
		}
	} else {
		if err = p.store.Save(ctx, storedKey, message.StagingPath); err != nil {
			return err
		}
	}

	progress = progressStored
	if _, err = p.repo.Update(ctx, item.ID, entities.MediaUpdate{
		StoredPath: &storedKey,
		Progress:   &progress,
		AppendLog:  []string{"artifact stored: " + storedKey},
	}); err != nil {
		return err
	}

	// Thumbnail extraction is a best-effort feature.
	thumbKey := path.Join("thumbnails", fmt.Sprintf("thumb_%d.jpg", item.ID))
	thumbPath := filepath.Join(workDir, "thumb.jpg")
	if thumbErr := extractThumbnail(ctx, p.runner, p.cfg.Media.FFmpegBin, p.cfg.Media.ThumbnailTimeout, message.StagingPath, thumbPath); thumbErr != nil {
		zerolog.Ctx(ctx).Warn().Err(thumbErr).Int64("media_id", item.ID).Msg("thumbnail generation failed, continuing")
		if _, err = p.repo.Update(ctx, item.ID, entities.MediaUpdate{
			AppendLog: []string{"thumbnail generation failed, continuing"},
		}); err != nil {
			return err
		}
	} else {
		if err = p.store.Save(ctx, thumbKey, thumbPath); err != nil {
			return err
		}
		if _, err = p.repo.Update(ctx, item.ID, entities.MediaUpdate{
			ThumbnailPath: &thumbKey,
			AppendLog:     []string{"thumbnail generated"},
		}); err != nil {
			return err
		}
	}

	streamingURL := "/api/v1/media/stream/" + item.ExternalID
	completed := constant.MediaStatusCompleted
	now := time.Now()
	progress = progressDone
	if _, err = p.repo.Update(ctx, item.ID, entities.MediaUpdate{
		Status:           &completed,
		Progress:         &progress,
		StreamingURL:     &streamingURL,
		CompletedAt:      &now,
		ClearStagingPath: true,
		AppendLog:        []string{"media processing completed"},
	}); err != nil {
		return err
	}

	p.removeStaging(ctx, message.StagingPath)
	zerolog.Ctx(ctx).Info().Int64("media_id", item.ID).Msg("media item completed")

	return nil
}

func (p *Processor) removeStaging(ctx context.Context, stagingPath string) {
	if stagingPath == "" {
		return
	}
	if err := os.Remove(stagingPath); err != nil && !os.IsNotExist(err) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("staging_path", stagingPath).Msg("failed to remove staging file")
	}
}
