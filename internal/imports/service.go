// Package imports tracks asynchronous archive import jobs.
package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/common"
	"github.com/suPer8Hu/sms-archive/internal/ingest"
	"github.com/suPer8Hu/sms-archive/internal/metrics"
)

// Publisher hands a queued job to the workers.
type Publisher interface {
	PublishImport(ctx context.Context, jobID string) error
}

type Request struct {
	Format         string `json:"format" validate:"required,oneof=xml csv"`
	Path           string `json:"path" validate:"required,max=1024"`
	OwnerAddress   string `json:"owner_address" validate:"required,max=64"`
	AttachmentsDir string `json:"attachments_dir" validate:"max=1024"`
	IdempotencyKey string `json:"-" validate:"max=128"`
}

var ErrInvalidRequest = errors.New("imports: invalid request")

type Service struct {
	repo     *Repo
	validate *validator.Validate
	metrics  *metrics.Ingest
}

func NewService(repo *Repo, m *metrics.Ingest) *Service {
	return &Service{repo: repo, validate: validator.New(), metrics: m}
}

// Submit records a queued job and publishes it. A request repeating an
// earlier idempotency key returns the earlier job and publishes nothing.
func (s *Service) Submit(ctx context.Context, pub Publisher, requestedBy string, req Request) (*Job, bool, error) {
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validate.Struct(req); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Format == ingest.FormatXML && req.AttachmentsDir != "" {
		return nil, false, fmt.Errorf("%w: attachments_dir only applies to csv", ErrInvalidRequest)
	}
	if archive.NormalizeAddress(req.OwnerAddress) == "" {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidRequest, ingest.ErrNoOwner)
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:           id,
		Format:       req.Format,
		SourcePath:   req.Path,
		OwnerAddress: req.OwnerAddress,
		RequestedBy:  requestedBy,
		Status:       JobQueued,
	}
	if req.AttachmentsDir != "" {
		job.AttachmentsDir = &req.AttachmentsDir
	}
	if req.IdempotencyKey != "" {
		job.IdempotencyKey = &req.IdempotencyKey
	}

	saved, created, err := s.repo.CreateJobOrGetExisting(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return saved, false, nil
	}

	if err := pub.PublishImport(ctx, saved.ID); err != nil {
		msg := "enqueue failed: " + err.Error()
		_ = s.repo.MarkFailed(ctx, saved.ID, msg, ingest.Stats{})
		s.metrics.JobFinished(string(JobFailed))
		return nil, false, fmt.Errorf("publish import: %w", err)
	}
	return saved, true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJobByID(ctx, id)
}
