package service

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"buscatalog/media-api/internal/model"

	"github.com/disintegration/imaging"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Screenshot candidates searched at a game's extracted root, in order
var screenshotCandidates = []string{
	"screenshot.png", "screenshot.jpg",
	"thumbnail.png", "thumbnail.jpg",
	"preview.png", "preview.jpg",
	"cover.png", "cover.jpg",
}

// Thumbnailer produces a preview image for any content type. Every
// branch falls through to a placeholder; only when even the generated
// fallback can't be written does a caller get an empty path.
type Thumbnailer struct {
	Prober Prober
}

func NewThumbnailer(p Prober) *Thumbnailer {
	return &Thumbnailer{Prober: p}
}

// Generate writes a thumbnail for the given content and returns its
// path plus whether a real screenshot still has to be captured later
// (games without a bundled one). destBase is the target path without
// extension.
func (t *Thumbnailer) Generate(ctx context.Context, typ, src, extractedDir, genre, destBase string) (string, bool) {
	if err := os.MkdirAll(filepath.Dir(destBase), 0o755); err != nil {
		zap.L().Error("Failed to create thumbnail directory", zap.Error(err))
		// Placeholder generation below will fail the same way and
		// degrade to the shared asset path
	}

	switch typ {
	case model.TypeMovie:
		return t.videoThumbnail(ctx, src, destBase, genre), false

	case model.TypeMusic:
		if IsVideoFile(src) {
			return t.videoThumbnail(ctx, src, destBase, genre), false
		}
		return t.musicThumbnail(ctx, src, destBase, genre), false

	case model.TypeGame:
		if p, ok := t.gameScreenshot(extractedDir, destBase); ok {
			return p, false
		}
		return t.placeholder(typ, genre, destBase), true
	}

	return t.placeholder(typ, genre, destBase), false
}

// IsVideoFile reports whether a stored path carries a video extension.
func IsVideoFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv":
		return true
	}
	return false
}

func (t *Thumbnailer) videoThumbnail(ctx context.Context, src, destBase, genre string) string {
	offset := viper.GetFloat64("thumbnail.offset")

	probe, err := t.Prober.Probe(ctx, src)
	if err == nil {
		offset = ClampOffset(offset, probe.DurationSeconds)
	} else {
		offset = 0
	}

	dest := destBase + ".jpg"

	if err := t.extractFrame(ctx, src, dest, offset); err != nil {
		zap.L().Warn("Frame extraction failed, retrying at the first frame",
			zap.String("src", src), zap.Error(err))

		if err := t.extractFrame(ctx, src, dest, 0); err != nil {
			zap.L().Warn("Frame extraction failed at the first frame too",
				zap.String("src", src), zap.Error(err))
			return t.placeholder(model.TypeMovie, genre, destBase)
		}
	}

	t.postProcess(dest)
	return dest
}

func (t *Thumbnailer) extractFrame(ctx context.Context, src, dest string, offset float64) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt("ffmpeg.timeout"))*time.Second)
	defer cancel()

	// -ss before the input uses key-frame seeking which is much faster
	cmd := exec.CommandContext(ctx, viper.GetString("ffmpeg.path"),
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.2f", offset),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		"-vf", fmt.Sprintf("scale=%d:-2", viper.GetInt("thumbnail.max_width")),
		"-y", dest,
	)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to extract frame, %w", err)
	}

	if fi, err := os.Stat(dest); err != nil || fi.Size() == 0 {
		return fmt.Errorf("frame extraction produced no output")
	}

	return nil
}

func (t *Thumbnailer) musicThumbnail(ctx context.Context, src, destBase, genre string) string {
	if p, err := t.extractCoverArt(ctx, src, destBase+".png"); err == nil {
		t.postProcess(p)
		return p
	} else {
		zap.L().Debug("No embedded cover art, trying waveform",
			zap.String("src", src), zap.Error(err))
	}

	if p, err := t.renderWaveform(ctx, src, destBase+".png"); err == nil {
		return p
	} else {
		zap.L().Warn("Waveform rendering failed, using placeholder",
			zap.String("src", src), zap.Error(err))
	}

	return t.placeholder(model.TypeMusic, genre, destBase)
}

// extractCoverArt pulls embedded art out of an audio file. ffmpeg
// exposes attached pictures as a video stream.
func (t *Thumbnailer) extractCoverArt(ctx context.Context, src, dest string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt("ffmpeg.timeout"))*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, viper.GetString("ffmpeg.path"),
		"-loglevel", "error",
		"-i", src,
		"-map", "0:v",
		"-frames:v", "1",
		"-y", dest,
	)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to extract cover art, %w", err)
	}

	if fi, err := os.Stat(dest); err != nil || fi.Size() == 0 {
		os.Remove(dest)
		return "", fmt.Errorf("cover art extraction produced no output")
	}

	return dest, nil
}

// renderWaveform decodes the audio to mono 8-bit PCM and draws a
// simple amplitude strip.
func (t *Thumbnailer) renderWaveform(ctx context.Context, src, dest string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt("ffmpeg.timeout"))*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, viper.GetString("ffmpeg.path"),
		"-loglevel", "error",
		"-i", src,
		"-ac", "1",
		"-ar", "8000",
		"-f", "u8",
		"pipe:1",
	)

	pcm, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to decode audio for waveform, %w", err)
	}

	if len(pcm) == 0 {
		return "", fmt.Errorf("audio decode produced no samples")
	}

	img := DrawWaveform(pcm, viper.GetInt("thumbnail.max_width"), 320)

	if err := imaging.Save(img, dest); err != nil {
		return "", fmt.Errorf("failed to save waveform, %w", err)
	}

	return dest, nil
}

// DrawWaveform renders unsigned 8-bit mono samples as a vertical-bar
// amplitude image.
func DrawWaveform(samples []byte, width, height int) image.Image {
	bg := color.NRGBA{R: 24, G: 26, B: 34, A: 255}
	fg := color.NRGBA{R: 96, G: 165, B: 250, A: 255}

	img := imaging.New(width, height, bg)
	mid := height / 2

	bucket := len(samples) / width
	if bucket < 1 {
		bucket = 1
	}

	for x := 0; x < width; x++ {
		start := x * bucket
		if start >= len(samples) {
			break
		}

		end := start + bucket
		if end > len(samples) {
			end = len(samples)
		}

		// Peak amplitude within the bucket, 128 is silence for u8
		peak := 0
		for _, s := range samples[start:end] {
			amp := int(s) - 128
			if amp < 0 {
				amp = -amp
			}
			if amp > peak {
				peak = amp
			}
		}

		bar := peak * (mid - 2) / 128
		if bar < 1 {
			bar = 1
		}

		for y := mid - bar; y <= mid+bar; y++ {
			img.Set(x, y, fg)
		}
	}

	return img
}

func (t *Thumbnailer) gameScreenshot(extractedDir, destBase string) (string, bool) {
	if extractedDir == "" {
		return "", false
	}

	for _, name := range screenshotCandidates {
		src := filepath.Join(extractedDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}

		dest := destBase + filepath.Ext(name)
		if err := copyFile(src, dest); err != nil {
			zap.L().Warn("Failed to copy game screenshot",
				zap.String("src", src), zap.Error(err))
			continue
		}

		t.postProcess(dest)
		return dest, true
	}

	return "", false
}

// placeholder resolves the fallback image: a genre-keyed asset, the
// per-type asset, the generic asset, and as a last resort a generated
// flat image. The asset is copied next to the content's other files so
// deleting the content never touches the shared originals.
func (t *Thumbnailer) placeholder(typ, genre, destBase string) string {
	dir := viper.GetString("storage.placeholder_dir")
	dest := destBase + ".png"

	candidates := []string{}
	if genre != "" {
		candidates = append(candidates, filepath.Join(dir, typ+"_"+strings.ToLower(genre)+".png"))
	}
	candidates = append(candidates,
		filepath.Join(dir, typ+".png"),
		filepath.Join(dir, "generic.png"),
	)

	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}

		if err := copyFile(c, dest); err == nil {
			return dest
		}
	}

	// Nothing usable on disk, generate a flat tile
	img := imaging.New(viper.GetInt("thumbnail.max_width"), 360, color.NRGBA{R: 38, G: 41, B: 52, A: 255})
	if err := imaging.Save(img, dest); err != nil {
		zap.L().Error("Failed to write generated placeholder", zap.Error(err))
		// Never hand back a shared asset path here: it would end up
		// owned by the record and deleted with it
		return ""
	}

	return dest
}

// postProcess downscales rasters wider than the configured maximum,
// preserving aspect ratio. PNG output keeps its alpha channel.
func (t *Thumbnailer) postProcess(p string) {
	maxWidth := viper.GetInt("thumbnail.max_width")

	img, err := imaging.Open(p)
	if err != nil {
		zap.L().Warn("Failed to open thumbnail for post-processing",
			zap.String("path", p), zap.Error(err))
		return
	}

	if img.Bounds().Dx() <= maxWidth {
		return
	}

	resized := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	if err := imaging.Save(resized, p); err != nil {
		zap.L().Warn("Failed to save downscaled thumbnail",
			zap.String("path", p), zap.Error(err))
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}

	return out.Close()
}
