// Package validators holds request validation helpers and their
// sentinel errors
package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"slices"
	"strings"

	"buscatalog/media-api/internal/model"
	"buscatalog/media-api/internal/service"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrNoFile          = errors.New("no file provided")
	ErrUnknownType     = errors.New("unknown content type")
	ErrBadExtension    = errors.New("file extension not allowed for this content type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileNameTooLong = errors.New("file name is too long")
	ErrMimeMismatch    = errors.New("file contents don't match its extension")
)

const maxFileNameSize = 245 // Leaves room for the id prefix and rendition suffixes

var (
	movieExtensions = []string{".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv"}
	audioExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg"}
	// Music videos are legal music uploads
	musicExtensions = append([]string{".mp4", ".avi", ".mkv"}, audioExtensions...)
	gameExtensions  = []string{".zip"}
)

// AllowedExtensions returns the extension allow-list for a content
// type, lowercase with leading dots.
func AllowedExtensions(typ string) []string {
	switch typ {
	case model.TypeMovie:
		return movieExtensions
	case model.TypeMusic:
		return musicExtensions
	case model.TypeGame:
		return gameExtensions
	}

	return nil
}

// MaxSize returns the configured byte cap for a content type.
func MaxSize(typ string) int64 {
	switch typ {
	case model.TypeMovie:
		return viper.GetInt64("upload.max_video_size")
	case model.TypeMusic:
		return viper.GetInt64("upload.max_audio_size")
	case model.TypeGame:
		return viper.GetInt64("upload.max_game_size")
	}

	return 0
}

// IsVideoExtension reports whether ext belongs to the video set. Music
// uploads with a video extension get movie style probing/thumbnails.
func IsVideoExtension(ext string) bool {
	return slices.Contains(movieExtensions, strings.ToLower(ext))
}

// UploadValidator checks an uploaded file against the per-type rules:
// extension allow-list first, then the size cap, then a content sniff
// so a renamed payload can't slip through. Returns the HTTP status to
// respond with alongside the error. Nothing is written to disk here.
func UploadValidator(typ string, fh *multipart.FileHeader) (int, error) {
	if fh == nil {
		return http.StatusBadRequest, ErrNoFile
	}

	if !model.ValidType(typ) {
		return http.StatusBadRequest, ErrUnknownType
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, ErrFileNameTooLong
	}

	ext := strings.ToLower(path.Ext(fh.Filename))
	if !slices.Contains(AllowedExtensions(typ), ext) {
		return http.StatusBadRequest, ErrBadExtension
	}

	if fh.Size > MaxSize(typ) {
		return http.StatusRequestEntityTooLarge, ErrFileTooLarge
	}

	// The header checks above are cheap but spoofable, so sniff the
	// actual bytes too
	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, err
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	if !mimeMatchesType(typ, ext, mime) {
		return http.StatusBadRequest, ErrMimeMismatch
	}

	return 0, nil
}

func mimeMatchesType(typ, ext string, mime *mimetype.MIME) bool {
	switch typ {
	case model.TypeGame:
		return mime.Is("application/zip")
	case model.TypeMovie:
		return strings.HasPrefix(mime.String(), "video/")
	case model.TypeMusic:
		if IsVideoExtension(ext) {
			return strings.HasPrefix(mime.String(), "video/")
		}
		return strings.HasPrefix(mime.String(), "audio/") ||
			// id3v2-less mp3 and some wav flavors sniff as octet-stream
			mime.Is("application/octet-stream")
	}

	return false
}

// DiagCode maps a validation or transport error to the stable
// diagnostic code surfaced in responses and logs.
func DiagCode(err error) string {
	switch {
	case errors.Is(err, ErrNoFile):
		return "UPLOAD_NO_FILE"
	case errors.Is(err, ErrUnknownType):
		return "UPLOAD_BAD_TYPE"
	case errors.Is(err, ErrBadExtension):
		return "UPLOAD_BAD_EXTENSION"
	case errors.Is(err, ErrFileTooLarge):
		return "UPLOAD_TOO_LARGE"
	case errors.Is(err, ErrFileNameTooLong):
		return "UPLOAD_NAME_TOO_LONG"
	case errors.Is(err, ErrMimeMismatch):
		return "UPLOAD_MIME_MISMATCH"
	case errors.Is(err, ErrMissingTitle):
		return "UPLOAD_MISSING_TITLE"
	case errors.Is(err, service.ErrPartialUpload):
		return "UPLOAD_PARTIAL_TRANSFER"
	case errors.Is(err, service.ErrTempUnavailable):
		return "UPLOAD_TEMP_UNAVAILABLE"
	case errors.Is(err, service.ErrWriteFailed):
		return "UPLOAD_WRITE_FAILED"
	}

	return "UPLOAD_TRANSPORT_ERROR"
}
