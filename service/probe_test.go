package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeMediaParsesOutput(t *testing.T) {
	runner := &fakeRunner{probeOutput: []byte(probeJSON)}

	meta, err := probeMedia(context.Background(), runner, "ffprobe", 30*time.Second, "/staging/clip.mp4")
	require.NoError(t, err)

	require.NotNil(t, meta.DurationSeconds)
	require.Equal(t, 125, *meta.DurationSeconds)
	require.NotNil(t, meta.Resolution)
	require.Equal(t, "1920x1080", *meta.Resolution)
	require.NotNil(t, meta.ContainerFormat)
	require.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", *meta.ContainerFormat)
}

func TestProbeMediaAudioOnly(t *testing.T) {
	runner := &fakeRunner{probeOutput: []byte(`{
		"streams": [{"codec_name": "mp3", "codec_type": "audio"}],
		"format": {"duration": "30.2", "format_name": "mp3"}
	}`)}

	meta, err := probeMedia(context.Background(), runner, "ffprobe", 30*time.Second, "/staging/clip.mp3")
	require.NoError(t, err)
	require.Nil(t, meta.Resolution)
	require.NotNil(t, meta.DurationSeconds)
	require.Equal(t, 30, *meta.DurationSeconds)
}

func TestProbeMediaRunnerError(t *testing.T) {
	runner := &fakeRunner{probeErr: errors.New("ffprobe timed out after 30s")}

	_, err := probeMedia(context.Background(), runner, "ffprobe", 30*time.Second, "/staging/clip.mp4")
	require.Error(t, err)
}

func TestProbeMediaGarbageOutput(t *testing.T) {
	runner := &fakeRunner{probeOutput: []byte("not json")}

	_, err := probeMedia(context.Background(), runner, "ffprobe", 30*time.Second, "/staging/clip.mp4")
	require.ErrorContains(t, err, "parse probe output")
}

func TestSecureFilenameKeepsExtension(t *testing.T) {
	name := secureFilename("My Holiday Video.MP4")
	require.Regexp(t, `^\d+_[0-9a-f]{16}\.mp4$`, name)
	require.NotContains(t, name, " ")
}

func TestFileExtension(t *testing.T) {
	require.Equal(t, "mp4", fileExtension("clip.MP4"))
	require.Equal(t, "webm", fileExtension("a.b.webm"))
	require.Equal(t, "", fileExtension("noext"))
}
