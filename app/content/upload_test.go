package content

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"buscatalog/media-api/internal"
	"buscatalog/media-api/internal/model"
	"buscatalog/media-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type noProbe struct{}

func (noProbe) Probe(ctx context.Context, path string) (service.ProbeResult, error) {
	return service.ProbeResult{}, errors.New("probe unavailable")
}

var mp3Bytes = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

func newTestDeps(t *testing.T) *internal.Deps {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.Content{}, model.TranscodeJob{}, model.Package{}))

	viper.Set("upload.max_video_size", int64(10<<20))
	viper.Set("upload.max_audio_size", int64(10<<20))
	viper.Set("upload.max_game_size", int64(10<<20))
	viper.Set("storage.extract_root", t.TempDir())
	viper.Set("storage.placeholder_dir", t.TempDir())
	viper.Set("thumbnail.max_width", 640)
	viper.Set("thumbnail.offset", float64(10))
	viper.Set("ffmpeg.timeout", 5)

	// Thumbnail branches that shell out must fail fast so the chain
	// degrades to the generated placeholder
	viper.Set("ffmpeg.path", filepath.Join(t.TempDir(), "no-ffmpeg"))
	viper.Set("ffmpeg.probe_path", filepath.Join(t.TempDir(), "no-ffprobe"))

	d := &internal.Deps{
		DB:     db,
		Store:  &service.Store{Root: t.TempDir()},
		Prober: noProbe{},
		Locks:  service.NewContentLocks(),
	}
	d.Jobs = service.NewJobStore(db)
	d.Thumbnailer = service.NewThumbnailer(d.Prober)
	d.Extractor = service.NewExtractor()
	d.Transcoder = service.NewTranscoder(db, d.Jobs, d.Prober, d.Locks)
	d.Cleaner = service.NewCleaner(db, d.Store, d.Jobs)

	return d
}

func uploadRequest(t *testing.T, fields map[string]string, fileName string, fileBytes []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	fw, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(fileBytes)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/contents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// A record creation failure must remove the stored file and the
// generated thumbnail, never leaving orphaned files without a record.
func TestUploadRollsBackFilesWhenCreateFails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	d := newTestDeps(t)

	// Sabotage record creation after the file pipeline has run
	require.NoError(t, d.DB.Migrator().DropTable(model.Content{}))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = uploadRequest(t, map[string]string{"title": "Song", "type": "music"}, "song.mp3", mp3Bytes)
	c.Set("requestID", "test")

	ContentUpload(c, d)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "PERSISTENCE_FAILED")

	for _, dir := range []string{d.Store.TypeDir(model.TypeMusic), filepath.Join(d.Store.Root, "thumbnails")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// Never created is just as clean
			continue
		}
		assert.Empty(t, entries, "no files may survive a failed ingest in %s", dir)
	}
}

func TestUploadCreatesRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)

	d := newTestDeps(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = uploadRequest(t, map[string]string{"title": "Song", "type": "music", "genre": "rock"}, "song.mp3", mp3Bytes)
	c.Set("requestID", "test")

	ContentUpload(c, d)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created model.Content
	require.NoError(t, d.DB.First(&created, "type = ?", model.TypeMusic).Error)
	assert.Equal(t, "Song", created.Title)
	assert.Equal(t, model.StateActive, created.State)
	assert.FileExists(t, created.FilePath)
	assert.NotEmpty(t, created.ContentHash)
}
