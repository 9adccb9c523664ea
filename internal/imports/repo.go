package imports

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/sms-archive/internal/ingest"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("imports: job not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetJobByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

// MarkRunning claims a queued job. It reports false when the job was not in
// the queued state, e.g. on a redelivered message.
func (r *Repo) MarkRunning(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Updates(map[string]any{
			"status":     JobRunning,
			"started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func statsColumns(s ingest.Stats) map[string]any {
	return map[string]any{
		"records":      s.Records,
		"inserted":     s.Inserted,
		"duplicates":   s.Duplicates,
		"invalid":      s.Invalid,
		"media_saved":  s.MediaSaved,
		"media_failed": s.MediaFailed,
	}
}

func (r *Repo) MarkSucceeded(ctx context.Context, id string, stats ingest.Stats) error {
	cols := statsColumns(stats)
	cols["status"] = JobSucceeded
	cols["error"] = nil
	cols["finished_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(cols).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id string, errMsg string, stats ingest.Stats) error {
	cols := statsColumns(stats)
	cols["status"] = JobFailed
	cols["error"] = errMsg
	cols["finished_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(cols).Error
}

// CreateJobOrGetExisting tries to create a job, but if its idempotency key
// already exists it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByIdempotencyKey(ctx, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, ErrJobNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
