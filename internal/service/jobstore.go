package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"buscatalog/media-api/internal/model"

	"gorm.io/gorm"
)

// JobStore hides the durable transcode queue. Enqueued rows survive a
// restart; Claim hands a pending job to exactly one caller.
type JobStore interface {
	Enqueue(job *model.TranscodeJob) error
	Claim() (*model.TranscodeJob, error)
	Requeue(id uint) error
	Complete(id uint) error
	Fail(id uint, reason string) error
	ForContent(contentID string) ([]model.TranscodeJob, error)
	DeleteForContent(contentID string) (int64, error)
}

type GormJobStore struct {
	DB *gorm.DB
}

func NewJobStore(db *gorm.DB) *GormJobStore {
	return &GormJobStore{DB: db}
}

func (s *GormJobStore) Enqueue(job *model.TranscodeJob) error {
	job.Status = model.JobPending
	return s.DB.Create(job).Error
}

// Claim picks the oldest pending job and flips it to running with a
// guarded update, so two workers racing for the same row can't both
// win. Returns nil without error when the queue is empty. The guarded
// update works identically on sqlite and postgres, which is why no
// SELECT FOR UPDATE is used here.
func (s *GormJobStore) Claim() (*model.TranscodeJob, error) {
	for i := 0; i < 3; i++ {
		var job model.TranscodeJob

		err := s.DB.
			Where("status = ?", model.JobPending).
			Order("created_at asc, id asc").
			First(&job).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		res := s.DB.
			Model(model.TranscodeJob{}).
			Where("id = ? AND status = ?", job.ID, model.JobPending).
			Update("status", model.JobRunning)
		if res.Error != nil {
			return nil, res.Error
		}

		// Someone else claimed it between the read and the update,
		// try the next row
		if res.RowsAffected == 0 {
			continue
		}

		job.Status = model.JobRunning
		return &job, nil
	}

	return nil, nil
}

func (s *GormJobStore) Requeue(id uint) error {
	return s.setStatus(id, model.JobPending, "")
}

func (s *GormJobStore) Complete(id uint) error {
	return s.setStatus(id, model.JobDone, "")
}

func (s *GormJobStore) Fail(id uint, reason string) error {
	return s.setStatus(id, model.JobFailed, reason)
}

func (s *GormJobStore) setStatus(id uint, status, reason string) error {
	err := s.DB.
		Model(model.TranscodeJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": status,
			"error":  reason,
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to update job %d, %w", id, err)
	}

	return nil
}

func (s *GormJobStore) ForContent(contentID string) ([]model.TranscodeJob, error) {
	var jobs []model.TranscodeJob

	err := s.DB.
		Where("content_id = ?", contentID).
		Order("created_at desc").
		Find(&jobs).
		Error

	return jobs, err
}

func (s *GormJobStore) DeleteForContent(contentID string) (int64, error) {
	res := s.DB.
		Where("content_id = ?", contentID).
		Delete(model.TranscodeJob{})

	return res.RowsAffected, res.Error
}

// StaleRunning returns running jobs that haven't been touched since
// the cutoff, which after a crash is every job the dead process owned.
func (s *GormJobStore) StaleRunning(cutoff time.Duration) ([]model.TranscodeJob, error) {
	var jobs []model.TranscodeJob

	err := s.DB.
		Where("status = ? AND updated_at < ?", model.JobRunning, time.Now().Add(-cutoff).UnixMilli()).
		Find(&jobs).
		Error

	return jobs, err
}

// ContentLocks serializes pipeline work per content id. A transcode
// pass holds the content's lock for its full duration so a polled job
// and a direct processing request can never double-process.
type ContentLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewContentLocks() *ContentLocks {
	return &ContentLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the lock for a content id, reporting false when
// it's already held.
func (l *ContentLocks) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[id]; ok {
		return false
	}

	l.held[id] = struct{}{}
	return true
}

func (l *ContentLocks) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, id)
}
