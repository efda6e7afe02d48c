package validators

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"buscatalog/media-api/internal/service"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal byte prefixes that sniff as real media
var (
	mp4Bytes = append([]byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}, make([]byte, 64)...)
	mp3Bytes = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)
)

func zipBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("index.html")
	require.NoError(t, err)
	_, err = f.Write([]byte("<html></html>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func makeFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	return req.MultipartForm.File["file"][0]
}

func setSizeLimits(t *testing.T) {
	t.Helper()
	viper.Set("upload.max_video_size", int64(10<<20))
	viper.Set("upload.max_audio_size", int64(10<<20))
	viper.Set("upload.max_game_size", int64(10<<20))
}

func TestUploadValidatorExtensions(t *testing.T) {
	setSizeLimits(t)

	tests := []struct {
		name    string
		typ     string
		file    string
		content []byte
		wantErr error
		code    int
	}{
		{"movie mp4 ok", "movie", "film.mp4", mp4Bytes, nil, 0},
		{"movie uppercase ext ok", "movie", "FILM.MP4", mp4Bytes, nil, 0},
		{"movie zip rejected", "movie", "film.zip", zipBytes(t), ErrBadExtension, http.StatusBadRequest},
		{"movie mp3 rejected", "movie", "film.mp3", mp3Bytes, ErrBadExtension, http.StatusBadRequest},
		{"movie exe rejected", "movie", "film.exe", mp4Bytes, ErrBadExtension, http.StatusBadRequest},
		{"music mp3 ok", "music", "song.mp3", mp3Bytes, nil, 0},
		{"music video ok", "music", "clip.mp4", mp4Bytes, nil, 0},
		{"music zip rejected", "music", "song.zip", zipBytes(t), ErrBadExtension, http.StatusBadRequest},
		{"game zip ok", "game", "game.zip", zipBytes(t), nil, 0},
		{"game mp4 rejected", "game", "game.mp4", mp4Bytes, ErrBadExtension, http.StatusBadRequest},
		{"game rar rejected", "game", "game.rar", zipBytes(t), ErrBadExtension, http.StatusBadRequest},
		{"unknown type", "podcast", "x.mp3", mp3Bytes, ErrUnknownType, http.StatusBadRequest},
		{"spoofed extension", "movie", "notavideo.mp4", []byte("plain text, definitely not a video"), ErrMimeMismatch, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := makeFileHeader(t, tt.file, tt.content)

			code, err := UploadValidator(tt.typ, fh)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestUploadValidatorSizeLimit(t *testing.T) {
	setSizeLimits(t)
	viper.Set("upload.max_audio_size", int64(16))

	fh := makeFileHeader(t, "song.mp3", mp3Bytes)

	code, err := UploadValidator("music", fh)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "UPLOAD_TOO_LARGE", DiagCode(err))
}

func TestUploadValidatorNoFile(t *testing.T) {
	setSizeLimits(t)

	code, err := UploadValidator("movie", nil)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, http.StatusBadRequest, code)
}

// Each storage failure mode must surface its own diagnostic code, even
// through error wrapping.
func TestDiagCodeStorageErrors(t *testing.T) {
	assert.Equal(t, "UPLOAD_PARTIAL_TRANSFER", DiagCode(service.ErrPartialUpload))
	assert.Equal(t, "UPLOAD_PARTIAL_TRANSFER", DiagCode(fmt.Errorf("%w: got 5 of 10 bytes", service.ErrPartialUpload)))
	assert.Equal(t, "UPLOAD_TEMP_UNAVAILABLE", DiagCode(fmt.Errorf("%w: no space left", service.ErrTempUnavailable)))
	assert.Equal(t, "UPLOAD_WRITE_FAILED", DiagCode(service.ErrWriteFailed))
	assert.Equal(t, "UPLOAD_TRANSPORT_ERROR", DiagCode(errors.New("something else entirely")))
}

func TestContentValidator(t *testing.T) {
	tests := []struct {
		name    string
		fields  ContentFields
		wantErr error
	}{
		{"valid", ContentFields{Title: "The Trip", ReleaseYear: 2020}, nil},
		{"no year is fine", ContentFields{Title: "The Trip"}, nil},
		{"missing title", ContentFields{Title: "   "}, ErrMissingTitle},
		{"year too old", ContentFields{Title: "x", ReleaseYear: 1815}, ErrBadYear},
		{"year in the future", ContentFields{Title: "x", ReleaseYear: 3000}, ErrBadYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ContentValidator(&tt.fields)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
