package service

import (
	"context"
	"time"
)

// transcodeMedia re-encodes the staged file into a single streamable
// h264/aac rendition with the moov atom up front.
func transcodeMedia(ctx context.Context, runner Runner, bin string, timeout time.Duration, inputPath, outputPath string) error {
	_, err := runner.Run(ctx, timeout, bin,
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
	return err
}

// extractThumbnail grabs a single scaled frame one second in.
func extractThumbnail(ctx context.Context, runner Runner, bin string, timeout time.Duration, inputPath, outputPath string) error {
	_, err := runner.Run(ctx, timeout, bin,
		"-i", inputPath,
		"-ss", "00:00:01",
		"-vframes", "1",
		"-vf", "scale=320:240",
		"-y",
		outputPath,
	)
	return err
}
