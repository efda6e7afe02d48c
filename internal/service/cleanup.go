package service

import (
	"errors"
	"fmt"

	"buscatalog/media-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrContentPackaged is returned when a delete is refused because a
// ready or installed package still references the content.
var ErrContentPackaged = errors.New("content is referenced by a ready or installed package")

// VerifyResult classifies a stored asset after re-hashing it.
type VerifyResult struct {
	ContentID string `json:"content_id"`
	Intact    bool   `json:"intact"`
	Expected  string `json:"expected_hash"`
	Actual    string `json:"actual_hash"`
}

// DeleteSummary reports what a multi-resource deletion managed to do.
type DeleteSummary struct {
	Deleted  int      `json:"deleted_count"`
	Failed   int      `json:"failed_count"`
	Warnings []string `json:"warnings"`
}

// Cleaner verifies content integrity and performs the coordinated
// multi-resource deletion.
type Cleaner struct {
	DB    *gorm.DB
	Store *Store
	Jobs  JobStore
}

func NewCleaner(db *gorm.DB, store *Store, jobs JobStore) *Cleaner {
	return &Cleaner{DB: db, Store: store, Jobs: jobs}
}

// Verify recomputes the sha256 of the stored file and compares it to
// the persisted hash. It never remediates anything, corrupted assets
// are only reported.
func (c *Cleaner) Verify(contentID string) (*VerifyResult, error) {
	var content model.Content
	if err := c.DB.First(&content, "id = ?", contentID).Error; err != nil {
		return nil, err
	}

	actual, err := c.Store.HashFile(content.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash stored file, %w", err)
	}

	return &VerifyResult{
		ContentID: content.ID,
		Intact:    actual == content.ContentHash,
		Expected:  content.ContentHash,
		Actual:    actual,
	}, nil
}

// Delete removes a content item and everything hanging off it. The
// package guard runs before any physical mutation. Each resource
// removal is attempted independently so one failure doesn't strand the
// rest, and the database row only goes away after every attempt has
// been made.
func (c *Cleaner) Delete(contentID string) (*DeleteSummary, error) {
	var content model.Content
	if err := c.DB.First(&content, "id = ?", contentID).Error; err != nil {
		return nil, err
	}

	blocked, err := c.referencedByPackage(contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check package references, %w", err)
	}
	if blocked {
		return nil, ErrContentPackaged
	}

	summary := &DeleteSummary{}

	c.removeFile(summary, "primary file", content.FilePath)
	c.removeFile(summary, "thumbnail", content.ThumbnailPath)
	c.removeFile(summary, "trailer", content.TrailerPath)

	for _, p := range content.Metadata.GetStringSlice("rendition_paths") {
		c.removeFile(summary, "rendition", p)
	}

	if dir := content.Metadata.GetString("extracted_path"); dir != "" {
		if err := c.Store.RemoveDir(dir); err != nil {
			summary.Failed++
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("extracted directory: %v", err))
		} else {
			summary.Deleted++
		}
	}

	removed, err := c.Jobs.DeleteForContent(contentID)
	if err != nil {
		summary.Failed++
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("job records: %v", err))
	} else {
		summary.Deleted += int(removed)
	}

	if err := c.DB.Delete(model.Content{}, "id = ?", contentID).Error; err != nil {
		return summary, fmt.Errorf("failed to delete content record, %w", err)
	}

	zap.L().Info("Content deleted",
		zap.String("content_id", contentID),
		zap.Int("deleted", summary.Deleted),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

func (c *Cleaner) removeFile(summary *DeleteSummary, what, p string) {
	if p == "" {
		return
	}

	if err := c.Store.Remove(p); err != nil {
		summary.Failed++
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %v", what, err))
		return
	}

	summary.Deleted++
}

// referencedByPackage reports whether any package in listo or
// instalado state contains the content id.
func (c *Cleaner) referencedByPackage(contentID string) (bool, error) {
	var packages []model.Package

	err := c.DB.
		Where("state IN ?", []string{model.PackageReady, model.PackageInstalled}).
		Find(&packages).
		Error
	if err != nil {
		return false, err
	}

	for _, pkg := range packages {
		for _, id := range pkg.ContentIDs {
			if id == contentID {
				return true, nil
			}
		}
	}

	return false, nil
}
