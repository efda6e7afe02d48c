// Package model defines database models
package model

// Content types accepted by the ingestion pipeline
const (
	TypeMovie = "movie"
	TypeMusic = "music"
	TypeGame  = "game"
)

// Content states. A record starts in StateProcessing only while a
// transcode pass is owed, moves to StateActive exactly once and can
// then only flip between active and inactive.
const (
	StateProcessing = "processing"
	StateActive     = "active"
	StateInactive   = "inactive"
)

type Content struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	Type        string `gorm:"index" json:"type"`
	Category    string `json:"category"`
	Genre       string `json:"genre"`
	ReleaseYear int    `json:"release_year"`
	Rating      string `json:"rating"`

	FilePath string `gorm:"uniqueIndex" json:"file_path"`
	FileSize int64  `json:"file_size"`

	// Seconds as reported by ffprobe, 0 when the probe was unavailable
	DurationSeconds float64 `json:"duration_seconds"`

	// sha256 hex of the stored bytes, computed at upload time
	ContentHash string `json:"content_hash"`

	ThumbnailPath string `json:"thumbnail_path"`
	TrailerPath   string `json:"trailer_path,omitempty"`

	State string `gorm:"index" json:"state"`

	// Type specific blob: game manifest, movie compression results, ...
	Metadata JSONMap `gorm:"type:text" json:"metadata"`

	// Unix millisecond timestamps
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

// ValidType reports whether t is one of the known content types.
func ValidType(t string) bool {
	return t == TypeMovie || t == TypeMusic || t == TypeGame
}

// ValidTransition enforces the content state machine: processing can
// only advance to active, active and inactive toggle freely, and
// nothing ever returns to processing.
func ValidTransition(from, to string) bool {
	switch from {
	case StateProcessing:
		return to == StateActive
	case StateActive:
		return to == StateInactive
	case StateInactive:
		return to == StateActive
	}

	return false
}
