// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	migrateOnly    = pflag.Bool("migrate-only", false, "Runs database migrations and exits")
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"sqlite", "postgres"}
)

// QualityProfile is one transcode target. Profiles come from the config
// file only, never from user input.
type QualityProfile struct {
	Name         string `mapstructure:"name"`
	Height       int    `mapstructure:"height"`
	VideoBitrate string `mapstructure:"video_bitrate"`
	AudioBitrate string `mapstructure:"audio_bitrate"`
	Suffix       string `mapstructure:"suffix"`
}

// Profiles returns the configured transcode quality ladder, highest
// rung first.
func Profiles() []QualityProfile {
	var out []QualityProfile
	if err := v.UnmarshalKey("transcode.profiles", &out); err != nil {
		zap.L().Error("Failed to decode transcode profiles, using defaults", zap.Error(err))
		return defaultProfiles()
	}

	if len(out) == 0 {
		return defaultProfiles()
	}

	slices.SortFunc(out, func(a, b QualityProfile) int { return b.Height - a.Height })
	return out
}

func defaultProfiles() []QualityProfile {
	return []QualityProfile{
		{Name: "1080p", Height: 1080, VideoBitrate: "5000k", AudioBitrate: "192k", Suffix: "_1080p"},
		{Name: "720p", Height: 720, VideoBitrate: "2800k", AudioBitrate: "128k", Suffix: "_720p"},
		{Name: "480p", Height: 480, VideoBitrate: "1400k", AudioBitrate: "96k", Suffix: "_480p"},
	}
}

// MigrateOnly reports whether the app should exit after migrations.
func MigrateOnly() bool {
	return *migrateOnly
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("storage.root", "storage_root")
	v.BindEnv("storage.extract_root", "storage_extract_root")
	v.BindEnv("storage.placeholder_dir", "storage_placeholder_dir")

	v.BindEnv("upload.max_video_size", "upload_max_video_size")
	v.BindEnv("upload.max_audio_size", "upload_max_audio_size")
	v.BindEnv("upload.max_game_size", "upload_max_game_size")

	v.BindEnv("ffmpeg.path", "ffmpeg_path")
	v.BindEnv("ffmpeg.probe_path", "ffmpeg_probe_path")
	v.BindEnv("ffmpeg.timeout", "ffmpeg_timeout")
	v.BindEnv("ffmpeg.workers", "ffmpeg_workers")
	v.BindEnv("ffmpeg.poll_interval", "ffmpeg_poll_interval")

	v.BindEnv("thumbnail.max_width", "thumbnail_max_width")
	v.BindEnv("thumbnail.offset", "thumbnail_offset")

	v.BindEnv("transcode.min_output_size", "transcode_min_output_size")
	v.BindEnv("transcode.compressed_video_bitrate", "transcode_compressed_video_bitrate")
	v.BindEnv("transcode.compressed_audio_bitrate", "transcode_compressed_audio_bitrate")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "catalog.db")

	v.SetDefault("storage.root", "content")
	v.SetDefault("storage.extract_root", "content/games/extracted")
	v.SetDefault("storage.placeholder_dir", "assets/placeholders")

	// All sizes in MiB, converted to bytes at the end of Setup
	v.SetDefault("upload.max_video_size", 2048)
	v.SetDefault("upload.max_audio_size", 200)
	v.SetDefault("upload.max_game_size", 500)
	v.SetDefault("archive.max_entry_size", 100)

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.probe_path", "ffprobe")
	v.SetDefault("ffmpeg.timeout", 1800)
	v.SetDefault("ffmpeg.workers", 1)
	v.SetDefault("ffmpeg.poll_interval", 5)

	v.SetDefault("thumbnail.max_width", 640)
	v.SetDefault("thumbnail.offset", 10)

	v.SetDefault("transcode.min_output_size", 10<<10)
	v.SetDefault("transcode.compressed_video_bitrate", "1000k")
	v.SetDefault("transcode.compressed_audio_bitrate", "96k")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}

		zap.L().Warn("No config.toml found, running on defaults")
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDrivers, v.GetString("db.driver")) {
		return errors.New("invalid db driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db dsn can't be empty")
	}

	for _, k := range []string{"upload.max_video_size", "upload.max_audio_size", "upload.max_game_size"} {
		if v.GetInt64(k) <= 0 {
			return fmt.Errorf("%s must be bigger than 0", k)
		}
	}

	if v.GetInt("ffmpeg.workers") <= 0 {
		return errors.New("ffmpeg.workers must be bigger than 0")
	}

	if v.GetInt("ffmpeg.timeout") <= 0 {
		return errors.New("ffmpeg.timeout must be bigger than 0")
	}

	if v.GetInt("thumbnail.max_width") <= 0 {
		return errors.New("thumbnail.max_width must be bigger than 0")
	}

	for _, p := range Profiles() {
		if p.Height <= 0 || p.Name == "" {
			return fmt.Errorf("invalid transcode profile %q", p.Name)
		}
	}

	if err := os.MkdirAll(v.GetString("storage.extract_root"), 0o755); err != nil {
		return fmt.Errorf("failed to create extraction root, %w", err)
	}

	v.Set("upload.max_video_size", v.GetInt64("upload.max_video_size")<<20)
	v.Set("upload.max_audio_size", v.GetInt64("upload.max_audio_size")<<20)
	v.Set("upload.max_game_size", v.GetInt64("upload.max_game_size")<<20)
	v.Set("archive.max_entry_size", v.GetInt64("archive.max_entry_size")<<20)
	return nil
}
