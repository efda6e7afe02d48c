package service

import (
	"time"

	"buscatalog/media-api/internal/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Running jobs untouched for this long belong to a crashed process
const staleRunningCutoff = 6 * time.Hour

// StartJobReaper schedules the periodic cleanup of stale job records:
// jobs whose content has been deleted out from under them, and jobs a
// crashed process left in running forever.
func StartJobReaper(db *gorm.DB, jobs *GormJobStore) *cron.Cron {
	c := cron.New()

	c.AddFunc("@hourly", func() {
		reapOrphanedJobs(db)
		reapStaleRunning(jobs)
	})

	c.Start()
	zap.L().Debug("Job reaper attached")

	return c
}

func reapOrphanedJobs(db *gorm.DB) {
	res := db.
		Where("content_id NOT IN (?)", db.Model(model.Content{}).Select("id")).
		Delete(model.TranscodeJob{})
	if res.Error != nil {
		zap.L().Error("Failed to reap orphaned jobs", zap.Error(res.Error))
		return
	}

	if res.RowsAffected > 0 {
		zap.L().Info("Reaped orphaned transcode jobs", zap.Int64("count", res.RowsAffected))
	}
}

func reapStaleRunning(jobs *GormJobStore) {
	stale, err := jobs.StaleRunning(staleRunningCutoff)
	if err != nil {
		zap.L().Error("Failed to query stale running jobs", zap.Error(err))
		return
	}

	for _, job := range stale {
		if err := jobs.Fail(job.ID, "abandoned by a previous process"); err != nil {
			zap.L().Error("Failed to fail stale job", zap.Uint("job_id", job.ID), zap.Error(err))
		}
	}

	if len(stale) > 0 {
		zap.L().Warn("Failed stale running jobs from a previous process", zap.Int("count", len(stale)))
	}
}
