package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProbeResult carries whatever metadata ffprobe could extract. A zero
// result (duration 0, no tags) is the degraded "probe unavailable"
// answer and is always safe to use.
type ProbeResult struct {
	DurationSeconds float64
	Width           int
	Height          int
	Codec           string
	Tags            map[string]string
}

// Prober extracts media metadata from a file. Implementations must
// return a usable zero result alongside the error so callers can
// degrade instead of failing; only the transcode ladder derivation
// treats a probe error as fatal.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// FFProbe shells out to ffprobe with an explicit argument vector and a
// bounded timeout.
type FFProbe struct{}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

func (FFProbe) Probe(ctx context.Context, path string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt("ffmpeg.timeout"))*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, viper.GetString("ffmpeg.probe_path"),
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", path,
	)

	var stdOut, stdErr bytes.Buffer
	cmd.Stdout = &stdOut
	cmd.Stderr = &stdErr

	if err := cmd.Run(); err != nil {
		zap.L().Warn("ffprobe failed, degrading to empty metadata",
			zap.String("path", path),
			zap.String("stderr", stdErr.String()),
			zap.Error(err))
		return ProbeResult{}, fmt.Errorf("ffprobe failed, %w (%s)", err, stdErr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdOut.Bytes(), &out); err != nil {
		return ProbeResult{}, fmt.Errorf("malformed ffprobe output, %w", err)
	}

	res := ProbeResult{Tags: out.Format.Tags}

	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			res.DurationSeconds = d
		}
	}

	for _, s := range out.Streams {
		if s.CodecType == "video" {
			res.Width = s.Width
			res.Height = s.Height
			res.Codec = s.CodecName
			break
		}
	}

	if res.Codec == "" && len(out.Streams) > 0 {
		res.Codec = out.Streams[0].CodecName
	}

	return res, nil
}

// ClampOffset bounds a requested time offset to the probed duration.
// Offsets past the end are pulled back to the midpoint; with an
// unknown duration the only safe offset is 0.
func ClampOffset(offset, duration float64) float64 {
	if duration <= 0 {
		return 0
	}

	if offset > duration {
		return duration / 2
	}

	return offset
}
