package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"buscatalog/media-api/config"
	"buscatalog/media-api/internal/model"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAlreadyProcessing = errors.New("content is already being processed")
	ErrProbeFailed       = errors.New("source probe failed, cannot derive quality ladder")
)

// CompressionResult is recorded per profile in the content metadata.
type CompressionResult struct {
	Quality string  `json:"quality"`
	Output  string  `json:"output"`
	Ratio   float64 `json:"ratio"`
	Seconds float64 `json:"seconds"`
}

// Transcoder schedules durable jobs and executes quality passes.
type Transcoder struct {
	DB     *gorm.DB
	Jobs   JobStore
	Prober Prober
	Locks  *ContentLocks

	stop chan struct{}
}

func NewTranscoder(db *gorm.DB, jobs JobStore, prober Prober, locks *ContentLocks) *Transcoder {
	return &Transcoder{
		DB:     db,
		Jobs:   jobs,
		Prober: prober,
		Locks:  locks,
		stop:   make(chan struct{}),
	}
}

// Schedule creates the durable job record for a freshly ingested movie
// and parks the content in processing. The record is picked up by the
// worker pool; it survives a restart.
func (t *Transcoder) Schedule(content *model.Content) error {
	// The state write happens before the job becomes claimable. A
	// worker that finished the pass would otherwise have its active
	// overwritten, stranding the record in processing
	err := t.DB.
		Model(model.Content{}).
		Where("id = ?", content.ID).
		Update("state", model.StateProcessing).
		Error
	if err != nil {
		return fmt.Errorf("failed to mark content as processing, %w", err)
	}

	job := &model.TranscodeJob{
		ContentID:  content.ID,
		InputPath:  content.FilePath,
		OutputPath: filepath.Dir(content.FilePath),
		Kind:       "transcode",
	}

	if err := t.Jobs.Enqueue(job); err != nil {
		return fmt.Errorf("failed to enqueue transcode job, %w", err)
	}

	zap.L().Info("Transcode job enqueued",
		zap.String("content_id", content.ID),
		zap.Uint("job_id", job.ID))

	return nil
}

// Process runs a full quality pass for a content id on the calling
// goroutine. This is the direct path behind POST .../process; the
// worker pool uses the same executor through runPass.
func (t *Transcoder) Process(ctx context.Context, contentID string) error {
	if !t.Locks.TryAcquire(contentID) {
		return ErrAlreadyProcessing
	}
	defer t.Locks.Release(contentID)

	var content model.Content
	if err := t.DB.First(&content, "id = ?", contentID).Error; err != nil {
		return fmt.Errorf("failed to load content, %w", err)
	}

	return t.runPass(ctx, &content)
}

// StartWorkers launches the polling worker pool. Workers claim durable
// jobs and run the executor; the per-content lock keeps them from
// stepping on a direct processing request.
func (t *Transcoder) StartWorkers() {
	workers := viper.GetInt("ffmpeg.workers")
	interval := time.Duration(viper.GetInt("ffmpeg.poll_interval")) * time.Second

	for i := 0; i < workers; i++ {
		go t.worker(interval)
	}

	zap.L().Info("Transcode worker pool started", zap.Int("workers", workers))
}

// Stop shuts the worker pool down. Running passes finish first.
func (t *Transcoder) Stop() {
	close(t.stop)
}

func (t *Transcoder) worker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.consumeOne()
		}
	}
}

func (t *Transcoder) consumeOne() {
	job, err := t.Jobs.Claim()
	if err != nil {
		zap.L().Error("Failed to claim transcode job", zap.Error(err))
		return
	}
	if job == nil {
		return
	}

	if !t.Locks.TryAcquire(job.ContentID) {
		// A direct processing request owns this content right now,
		// hand the job back
		if err := t.Jobs.Requeue(job.ID); err != nil {
			zap.L().Error("Failed to requeue locked job", zap.Uint("job_id", job.ID), zap.Error(err))
		}
		return
	}
	defer t.Locks.Release(job.ContentID)

	var content model.Content
	if err := t.DB.First(&content, "id = ?", job.ContentID).Error; err != nil {
		// Content got deleted while the job waited, the row is garbage
		zap.L().Warn("Claimed job for missing content",
			zap.Uint("job_id", job.ID),
			zap.String("content_id", job.ContentID))
		t.Jobs.Fail(job.ID, "content record missing")
		return
	}

	err = t.runPass(context.Background(), &content)
	if err != nil {
		if failErr := t.Jobs.Fail(job.ID, err.Error()); failErr != nil {
			zap.L().Error("Failed to mark job as failed", zap.Uint("job_id", job.ID), zap.Error(failErr))
		}
		return
	}

	if err := t.Jobs.Complete(job.ID); err != nil {
		zap.L().Error("Failed to mark job as done", zap.Uint("job_id", job.ID), zap.Error(err))
	}
}

// runPass probes the source, derives the ladder and produces one
// rendition per rung. Per-profile failures are collected into the
// metadata and never block activation; only a failed probe is fatal to
// the batch, and even then the record is reverted to active instead of
// being left stuck in processing.
func (t *Transcoder) runPass(ctx context.Context, content *model.Content) error {
	probe, err := t.Prober.Probe(ctx, content.FilePath)
	if err != nil || probe.Height <= 0 {
		zap.L().Error("Source probe failed, aborting quality pass",
			zap.String("content_id", content.ID),
			zap.Error(err))

		t.finishPass(content, nil, nil, "source probe failed")
		return ErrProbeFailed
	}

	ladder := DeriveLadder(config.Profiles(), probe.Height)

	var results []CompressionResult
	var profileErrors []string

	srcInfo, _ := os.Stat(content.FilePath)

	for _, profile := range ladder {
		output := renditionPath(content.FilePath, profile.Suffix)
		start := time.Now()

		if err := t.runProfile(ctx, content.FilePath, output, profile); err != nil {
			zap.L().Warn("Quality pass failed",
				zap.String("content_id", content.ID),
				zap.String("profile", profile.Name),
				zap.Error(err))

			profileErrors = append(profileErrors, fmt.Sprintf("%s: %v", profile.Name, err))
			os.Remove(output)
			continue
		}

		res := CompressionResult{
			Quality: profile.Name,
			Output:  output,
			Seconds: time.Since(start).Seconds(),
		}

		if outInfo, err := os.Stat(output); err == nil && srcInfo != nil && srcInfo.Size() > 0 {
			res.Ratio = float64(outInfo.Size()) / float64(srcInfo.Size())
		}

		results = append(results, res)
	}

	t.finishPass(content, results, profileErrors, "")

	zap.L().Info("Quality pass finished",
		zap.String("content_id", content.ID),
		zap.Int("renditions", len(results)),
		zap.Int("errors", len(profileErrors)))

	return nil
}

// runProfile invokes ffmpeg for one rendition and sanity checks the
// output so a truncated encode never counts as a success.
func (t *Transcoder) runProfile(ctx context.Context, input, output string, profile config.QualityProfile) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt("ffmpeg.timeout"))*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, viper.GetString("ffmpeg.path"),
		"-loglevel", "error",
		"-i", input,
		"-vf", fmt.Sprintf("scale=-2:%d", profile.Height),
		"-c:v", "libx264",
		"-b:v", profile.VideoBitrate,
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", profile.AudioBitrate,
		"-movflags", "+faststart",
		"-y", output,
	)

	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed, %w (%s)", err, stdErr.String())
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("rendition missing after encode, %w", err)
	}

	if info.Size() < viper.GetInt64("transcode.min_output_size") {
		return fmt.Errorf("rendition suspiciously small (%d bytes), treating as failed encode", info.Size())
	}

	return nil
}

// finishPass records the batch outcome and always lands the content in
// active.
func (t *Transcoder) finishPass(content *model.Content, results []CompressionResult, profileErrors []string, fatal string) {
	meta := content.Metadata
	if meta == nil {
		meta = model.JSONMap{}
	}

	if fatal != "" {
		meta["processing_error"] = fatal
	} else {
		processed := make([]map[string]any, 0, len(results))
		qualities := make([]string, 0, len(results))
		paths := make([]string, 0, len(results))

		for _, r := range results {
			processed = append(processed, map[string]any{
				"quality": r.Quality,
				"output":  r.Output,
				"ratio":   r.Ratio,
				"seconds": r.Seconds,
			})
			qualities = append(qualities, r.Quality)
			paths = append(paths, r.Output)
		}

		meta["compression_results"] = map[string]any{
			"processed_files": processed,
			"errors":          profileErrors,
		}
		meta["qualities_available"] = qualities
		meta["rendition_paths"] = paths
		delete(meta, "processing_error")
	}

	err := t.DB.
		Model(model.Content{}).
		Where("id = ?", content.ID).
		Updates(map[string]any{
			"state":    model.StateActive,
			"metadata": meta,
		}).
		Error
	if err != nil {
		zap.L().Error("Failed to record quality pass outcome",
			zap.String("content_id", content.ID),
			zap.Error(err))
	}
}

// DeriveLadder filters the configured profiles down to those the
// source can fill. A source below the smallest rung gets exactly one
// "compressed" profile at its own height.
func DeriveLadder(profiles []config.QualityProfile, srcHeight int) []config.QualityProfile {
	var ladder []config.QualityProfile

	for _, p := range profiles {
		if p.Height <= srcHeight {
			ladder = append(ladder, p)
		}
	}

	if len(ladder) == 0 {
		vb := viper.GetString("transcode.compressed_video_bitrate")
		if vb == "" {
			vb = "1000k"
		}

		ab := viper.GetString("transcode.compressed_audio_bitrate")
		if ab == "" {
			ab = "96k"
		}

		ladder = append(ladder, config.QualityProfile{
			Name:         "compressed",
			Height:       srcHeight,
			VideoBitrate: vb,
			AudioBitrate: ab,
			Suffix:       "_compressed",
		})
	}

	return ladder
}

func renditionPath(input, suffix string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + suffix + ".mp4"
}
