// Package api assembles the gin engine and wires the route table to
// the handlers in app/
package api

import (
	"fmt"
	"time"

	"buscatalog/media-api/app/content"
	"buscatalog/media-api/app/root"
	"buscatalog/media-api/app/transcode"
	"buscatalog/media-api/db"
	"buscatalog/media-api/internal"
	"buscatalog/media-api/internal/service"
	"buscatalog/media-api/pkg/middleware"
	"buscatalog/media-api/validators"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

func NewRouter() (*gin.Engine, error) {
	makeLogger()

	d := &internal.Deps{
		Store:  service.NewStore(),
		Prober: service.FFProbe{},
		Locks:  service.NewContentLocks(),
	}

	gormDB, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	d.DB = gormDB

	jobs := service.NewJobStore(gormDB)
	d.Jobs = jobs
	d.Thumbnailer = service.NewThumbnailer(d.Prober)
	d.Extractor = service.NewExtractor()
	d.Transcoder = service.NewTranscoder(gormDB, jobs, d.Prober, d.Locks)
	d.Cleaner = service.NewCleaner(gormDB, d.Store, jobs)

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 8 << 20

	// The upload cap covers the largest type plus the optional trailer
	// and thumbnail parts
	maxUploadSize := validators.MaxSize("movie")*2 + validators.MaxSize("game")

	admin := middleware.AdminRequired(nil)

	m := router.Group("/api")
	{
		// HEAD /api/heartbeat 			-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)
	}

	cc := m.Group("/contents")
	{
		// GET /api/contents			-> Lists the catalog (state/type filters)
		cc.GET("", cacheFor(15), func(c *gin.Context) { content.ContentList(c, d) })

		// GET /api/contents/:id		-> Returns a single content record
		cc.GET("/:id", func(c *gin.Context) { content.ContentFetch(c, d) })

		// POST /api/contents			-> Ingests a new media asset
		cc.POST("", admin, middleware.BodySizeLimiter(maxUploadSize), func(c *gin.Context) { content.ContentUpload(c, d) })

		// PATCH /api/contents/:id		-> Edits descriptive fields / toggles visibility
		cc.PATCH("/:id", admin, func(c *gin.Context) { content.ContentEdit(c, d) })

		// DELETE /api/contents/:id		-> Removes a content item and all its resources
		cc.DELETE("/:id", admin, func(c *gin.Context) { content.ContentDelete(c, d) })

		// GET /api/contents/:id/verify		-> Re-hashes the stored file
		cc.GET("/:id/verify", admin, func(c *gin.Context) { content.ContentVerify(c, d) })

		// GET /api/contents/:id/jobs		-> Lists transcode job records
		cc.GET("/:id/jobs", admin, func(c *gin.Context) { content.ContentJobs(c, d) })

		// POST /api/contents/:id/process	-> Runs a blocking quality pass
		cc.POST("/:id/process", admin, func(c *gin.Context) { transcode.Process(c, d) })
	}

	// Durable jobs from before a restart get picked up by the pool
	d.Transcoder.StartWorkers()

	service.StartJobReaper(gormDB, jobs)

	return router, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
