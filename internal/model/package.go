package model

// Package states used by the downstream package generator. Content
// referenced by a package in "listo" or "instalado" may not be deleted.
const (
	PackageDraft     = "borrador"
	PackageReady     = "listo"
	PackageInstalled = "instalado"
)

// Package is written by the out-of-scope package generator; this core
// only reads it for the deletion guard.
type Package struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string      `json:"name"`
	State      string      `gorm:"index" json:"state"`
	ContentIDs StringSlice `json:"content_ids"`
	CreatedAt  int64       `gorm:"autoCreateTime:milli" json:"created_at"`
}
