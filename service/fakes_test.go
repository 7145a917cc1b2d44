package service

import (
	"context"
	"os"
	"sync"
	"time"

	"vidstream/dto"
)

// fakeRunner stands in for the external tools. It tells the three
// invocations apart by their arguments: ffprobe asks for -show_format,
// thumbnail extraction passes -vframes, everything else is a transcode.
type fakeRunner struct {
	mu sync.Mutex

	probeOutput  []byte
	probeErr     error
	transcodeErr error
	thumbErr     error

	calls []string
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case contains(args, "-show_format"):
		f.calls = append(f.calls, "probe")
		if f.probeErr != nil {
			return nil, f.probeErr
		}
		return f.probeOutput, nil
	case contains(args, "-vframes"):
		f.calls = append(f.calls, "thumbnail")
		if f.thumbErr != nil {
			return nil, f.thumbErr
		}
		return nil, writeOutputFile(args, []byte("jpeg-bytes"))
	default:
		f.calls = append(f.calls, "transcode")
		if f.transcodeErr != nil {
			return nil, f.transcodeErr
		}
		return nil, writeOutputFile(args, []byte("transcoded-bytes"))
	}
}

func contains(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

// writeOutputFile creates the tool's output path, the last argument.
func writeOutputFile(args []string, content []byte) error {
	if len(args) == 0 {
		return nil
	}
	return os.WriteFile(args[len(args)-1], content, 0o644)
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	messages []dto.ProcessMessage
}

func (f *fakePublisher) PublishProcess(ctx context.Context, message dto.ProcessMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

const probeJSON = `{
	"streams": [
		{"codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
		{"codec_name": "aac", "codec_type": "audio"}
	],
	"format": {"duration": "125.64", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`
