package imports

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	Format         string  `gorm:"type:varchar(8);not null" json:"format"`
	SourcePath     string  `gorm:"type:varchar(1024);not null" json:"source_path"`
	OwnerAddress   string  `gorm:"type:varchar(64);not null" json:"owner_address"`
	AttachmentsDir *string `gorm:"type:varchar(1024)" json:"attachments_dir,omitempty"`
	RequestedBy    string  `gorm:"type:varchar(128)" json:"requested_by"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex:uniq_import_idempo" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when the run ends, successfully or not
	Records     int `json:"records"`
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
	Invalid     int `json:"invalid"`
	MediaSaved  int `json:"media_saved"`
	MediaFailed int `json:"media_failed"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (Job) TableName() string { return "import_jobs" }
