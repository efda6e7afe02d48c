package model

// Transcode job statuses
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// TranscodeJob is a durable unit of asynchronous work. Rows survive a
// restart, workers claim them with a guarded update so two executors
// can never own the same job.
type TranscodeJob struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ContentID string `gorm:"index" json:"content_id"`
	InputPath string `json:"input"`

	// Directory the renditions are written into
	OutputPath string `json:"output"`

	Kind   string `gorm:"default:transcode" json:"kind"`
	Status string `gorm:"index;default:pending" json:"status"`
	Error  string `json:"error,omitempty"`

	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at"`
}
