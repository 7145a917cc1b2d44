package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// probeMetadata holds the fields extracted from a successful probe. All
// pointers: a failed or partial probe leaves the item's metadata null.
type probeMetadata struct {
	DurationSeconds *int
	Resolution      *string
	ContainerFormat *string
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// probeMedia runs ffprobe against the staged file and decodes its JSON
// description of streams and format.
func probeMedia(ctx context.Context, runner Runner, bin string, timeout time.Duration, path string) (probeMetadata, error) {
	output, err := runner.Run(ctx, timeout, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return probeMetadata{}, err
	}

	var decoded probeOutput
	if err := json.Unmarshal(output, &decoded); err != nil {
		return probeMetadata{}, fmt.Errorf("parse probe output: %w", err)
	}

	meta := probeMetadata{}

	for _, stream := range decoded.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			resolution := fmt.Sprintf("%dx%d", stream.Width, stream.Height)
			meta.Resolution = &resolution
			break
		}
	}

	if decoded.Format.FormatName != "" {
		format := decoded.Format.FormatName
		meta.ContainerFormat = &format
	}

	if raw := strings.TrimSpace(decoded.Format.Duration); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			duration := int(seconds)
			meta.DurationSeconds = &duration
		}
	}

	return meta, nil
}
