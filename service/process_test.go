package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidstream/config"
	"vidstream/constant"
	"vidstream/dto"
	"vidstream/entities"
	"vidstream/repository"
	"vidstream/storage"
)

func newProcessorFixture(t *testing.T, runner Runner) (*Processor, repository.MediaRepository, string) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Media: config.Media{
			StagingDir:       t.TempDir(),
			FFmpegBin:        "ffmpeg",
			FFprobeBin:       "ffprobe",
			ProbeTimeout:     30 * time.Second,
			TranscodeTimeout: 30 * time.Minute,
			ThumbnailTimeout: 60 * time.Second,
		},
	}

	return NewProcessor(repo, store, cfg, runner), repo, cfg.Media.StagingDir
}

func stageFile(t *testing.T, stagingDir string) string {
	t.Helper()
	stagingPath := filepath.Join(stagingDir, "1700000000_deadbeef.mp4")
	require.NoError(t, os.WriteFile(stagingPath, []byte("raw-video-bytes"), 0o644))
	return stagingPath
}

func createItem(t *testing.T, repo repository.MediaRepository, stagingPath string) *entities.MediaItem {
	t.Helper()
	item := &entities.MediaItem{
		ExternalID:   "11111111-1111-1111-1111-111111111111",
		Title:        "holiday",
		OriginalName: "holiday.mp4",
		Status:       constant.MediaStatusUploading,
		Progress:     5,
		OwnerID:      1,
	}
	if stagingPath != "" {
		item.StagingPath = &stagingPath
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func TestProcessCompletesItem(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON)}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	err := processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusCompleted, got.Status)
	require.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompletedAt)
	require.Nil(t, got.ErrorDetail)

	require.NotNil(t, got.SizeBytes)
	require.Equal(t, int64(len("raw-video-bytes")), *got.SizeBytes)
	require.NotNil(t, got.DurationSeconds)
	require.Equal(t, 125, *got.DurationSeconds)
	require.NotNil(t, got.Resolution)
	require.Equal(t, "1920x1080", *got.Resolution)
	require.NotNil(t, got.ContainerFormat)

	require.NotNil(t, got.StoredPath)
	require.NotNil(t, got.ThumbnailPath)
	require.NotNil(t, got.StreamingURL)
	require.Equal(t, "/api/v1/media/stream/"+got.ExternalID, *got.StreamingURL)

	// The staged file is removed once the artifact is durable.
	require.Nil(t, got.StagingPath)
	_, statErr := os.Stat(stagingPath)
	require.True(t, os.IsNotExist(statErr))

	require.Equal(t, []string{"probe", "thumbnail"}, runner.calls)
}

func TestProcessStoresArtifactBytes(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON)}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath}))

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StoredPath)

	reader, info, err := processor.store.Open(ctx, *got.StoredPath)
	require.NoError(t, err)
	defer reader.Close()
	require.Equal(t, int64(len("raw-video-bytes")), info.Size)
}

func TestProcessProbeFailureDegrades(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeErr: errors.New("ffprobe timed out after 30s")}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath}))

	// A failed probe leaves the metadata null but the item still completes.
	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusCompleted, got.Status)
	require.Nil(t, got.DurationSeconds)
	require.Nil(t, got.Resolution)
	require.Nil(t, got.ContainerFormat)
	require.Contains(t, got.LogEntries(), "metadata probe failed, continuing without metadata")
}

func TestProcessThumbnailFailureDegrades(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON), thumbErr: errors.New("no video stream")}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath}))

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusCompleted, got.Status)
	require.Nil(t, got.ThumbnailPath)
	require.Contains(t, got.LogEntries(), "thumbnail generation failed, continuing")
}

func TestProcessTranscodeFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON), transcodeErr: errors.New("ffmpeg failed: exit status 1")}
	processor, repo, stagingDir := newProcessorFixture(t, runner)
	processor.cfg.Media.EnableTranscode = true

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	// The job must not be retried, so Process swallows the failure.
	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath}))

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	require.Contains(t, *got.ErrorDetail, "ffmpeg failed")

	_, statErr := os.Stat(stagingPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestProcessMissingStagingFailsFast(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON)}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	item := createItem(t, repo, "")
	missing := filepath.Join(stagingDir, "gone.mp4")

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: missing}))

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	require.Contains(t, *got.ErrorDetail, "staging file missing")
	require.Empty(t, runner.calls)
}

func TestProcessUnknownItemDropped(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	processor, _, _ := newProcessorFixture(t, runner)

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: 999, StagingPath: "/tmp/nope.mp4"}))
	require.Empty(t, runner.calls)
}

func TestProcessTerminalItemDropped(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)
	completed := constant.MediaStatusCompleted
	_, err := repo.Update(ctx, item.ID, entities.MediaUpdate{Status: &completed})
	require.NoError(t, err)

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath}))
	require.Empty(t, runner.calls)
}

// deletingRepo soft-deletes the item after a fixed number of updates,
// simulating a delete racing the pipeline.
type deletingRepo struct {
	repository.MediaRepository
	deleteAfter int
	updates     int
}

func (r *deletingRepo) Update(ctx context.Context, id int64, update entities.MediaUpdate) (*entities.MediaItem, error) {
	r.updates++
	if r.updates == r.deleteAfter {
		if err := r.MediaRepository.SoftDelete(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.MediaRepository.Update(ctx, id, update)
}

func TestProcessAbandonsDeletedItem(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON)}
	processor, repo, stagingDir := newProcessorFixture(t, runner)

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	// Delete lands right before the second checkpoint write.
	racing := &deletingRepo{MediaRepository: repo, deleteAfter: 2}
	processor.repo = racing

	require.NoError(t, processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath}))

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusDeleted, got.Status)

	// The abandoned job cleans up its staging file.
	_, statErr := os.Stat(stagingPath)
	require.True(t, os.IsNotExist(statErr))
}

// failingStore rejects every save, standing in for an unreachable backend.
type failingStore struct {
	storage.Store
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, key, localPath string) error {
	return s.saveErr
}

func TestProcessRetryableErrorKeepsStaging(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{probeOutput: []byte(probeJSON)}
	processor, repo, stagingDir := newProcessorFixture(t, runner)
	processor.store = &failingStore{Store: processor.store, saveErr: errors.New("backend unavailable")}

	stagingPath := stageFile(t, stagingDir)
	item := createItem(t, repo, stagingPath)

	// An infrastructure failure must surface so the queue redelivers.
	err := processor.Process(ctx, dto.ProcessMessage{MediaID: item.ID, StagingPath: stagingPath})
	require.Error(t, err)

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, constant.MediaStatusProcessing, got.Status)
	require.Nil(t, got.ErrorDetail)

	// The staged bytes survive for the retry.
	_, statErr := os.Stat(stagingPath)
	require.NoError(t, statErr)
}
