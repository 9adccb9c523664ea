package imports

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/ingest"
	"github.com/suPer8Hu/sms-archive/internal/media"
	"github.com/suPer8Hu/sms-archive/internal/metrics"
	"go.uber.org/zap"
)

// Runner executes queued jobs against the archive store.
type Runner struct {
	repo      *Repo
	store     archive.Store
	extractor *media.Extractor
	opts      ingest.Options
	log       *zap.Logger
	metrics   *metrics.Ingest
}

func NewRunner(repo *Repo, store archive.Store, extractor *media.Extractor, opts ingest.Options, log *zap.Logger, m *metrics.Ingest) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		repo:      repo,
		store:     store,
		extractor: extractor,
		opts:      opts,
		log:       log,
		metrics:   m,
	}
}

// Execute runs a queued job to completion. Jobs that are no longer queued are
// skipped, which makes redelivery harmless. The returned error is only for
// infrastructure failures worth retrying; a failed import is recorded on the
// job and reported as nil.
func (r *Runner) Execute(ctx context.Context, jobID string) error {
	claimed, err := r.repo.MarkRunning(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		r.log.Info("job not queued, skipping", zap.String("job_id", jobID))
		return nil
	}
	defer r.metrics.JobStarted()()

	job, err := r.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	log := r.log.With(zap.String("job_id", job.ID), zap.String("format", job.Format))

	stats, runErr := r.run(ctx, job, log)
	if runErr != nil {
		if err := r.repo.MarkFailed(ctx, job.ID, runErr.Error(), stats); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		r.metrics.JobFinished(string(JobFailed))
		log.Warn("import job failed", zap.Error(runErr))
		return nil
	}

	if err := r.repo.MarkSucceeded(ctx, job.ID, stats); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	r.metrics.JobFinished(string(JobSucceeded))
	return nil
}

func (r *Runner) run(ctx context.Context, job *Job, log *zap.Logger) (ingest.Stats, error) {
	ir, err := ingest.NewRun(r.store, r.extractor, job.OwnerAddress, r.opts, log, r.metrics)
	if err != nil {
		return ingest.Stats{}, err
	}

	switch job.Format {
	case ingest.FormatXML:
		return ir.ImportXMLFile(ctx, job.SourcePath)
	case ingest.FormatCSV:
		dir := ""
		if job.AttachmentsDir != nil {
			dir = *job.AttachmentsDir
		}
		return ir.ImportCSVFile(ctx, job.SourcePath, dir)
	default:
		return ingest.Stats{}, fmt.Errorf("unknown format %q", job.Format)
	}
}
