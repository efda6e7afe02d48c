package internal

import (
	"buscatalog/media-api/internal/service"

	"gorm.io/gorm"
)

// Deps is the bag of shared collaborators handed to every handler.
type Deps struct {
	DB          *gorm.DB
	Store       *service.Store
	Prober      service.Prober
	Thumbnailer *service.Thumbnailer
	Extractor   *service.Extractor
	Transcoder  *service.Transcoder
	Jobs        service.JobStore
	Cleaner     *service.Cleaner
	Locks       *service.ContentLocks
}
