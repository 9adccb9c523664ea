// Package ingest imports exported message archives into the archive store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/media"
	"github.com/suPer8Hu/sms-archive/internal/metrics"
	"go.uber.org/zap"
)

// OwnerLabel names the device owner's contact and marks sent rows in CSV
// exports.
const OwnerLabel = "Me"

const (
	FormatXML = "xml"
	FormatCSV = "csv"
)

var ErrNoOwner = errors.New("ingest: device owner address is required")

type Options struct {
	XMLDedup archive.DedupKey
	CSVDedup archive.DedupKey
	// Location interprets CSV timestamps, which carry no zone.
	Location *time.Location
	// SkipInvalid logs and skips malformed records instead of failing the run.
	SkipInvalid bool
}

func DefaultOptions() Options {
	return Options{
		XMLDedup: archive.DedupByContact,
		CSVDedup: archive.DedupByConversation,
		Location: time.Local,
	}
}

type Stats struct {
	Records     int `json:"records"`
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
	Invalid     int `json:"invalid"`
	MediaSaved  int `json:"media_saved"`
	MediaFailed int `json:"media_failed"`
}

// Run is the state of one import invocation. It is not safe for concurrent
// use; records are processed strictly one after another.
type Run struct {
	store         archive.Store
	contacts      *archive.ContactResolver
	conversations *archive.ConversationResolver
	media         *media.Extractor
	owner         string
	opts          Options
	log           *zap.Logger
	metrics       *metrics.Ingest
	stats         Stats
}

func NewRun(store archive.Store, extractor *media.Extractor, ownerAddress string, opts Options, log *zap.Logger, m *metrics.Ingest) (*Run, error) {
	owner := archive.NormalizeAddress(ownerAddress)
	if owner == "" {
		return nil, ErrNoOwner
	}
	if extractor == nil {
		return nil, errors.New("ingest: media extractor is required")
	}
	if opts.XMLDedup == "" {
		opts.XMLDedup = archive.DedupByContact
	}
	if opts.CSVDedup == "" {
		opts.CSVDedup = archive.DedupByConversation
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Run{
		store:         store,
		contacts:      archive.NewContactResolver(store),
		conversations: archive.NewConversationResolver(store),
		media:         extractor,
		owner:         owner,
		opts:          opts,
		log:           log.With(zap.String("owner", owner)),
		metrics:       m,
	}, nil
}

func (r *Run) Stats() Stats { return r.stats }

func (r *Run) ownerContact(ctx context.Context) (archive.Contact, error) {
	label := OwnerLabel
	res, err := r.contacts.Resolve(ctx, r.owner, &label)
	if err != nil {
		return archive.Contact{}, fmt.Errorf("resolve owner: %w", err)
	}
	return res.Value, nil
}

// contactFor resolves an address, labeling the owner's own address.
func (r *Run) contactFor(ctx context.Context, address string, name *string) (archive.Contact, error) {
	if archive.NormalizeAddress(address) == r.owner {
		return r.ownerContact(ctx)
	}
	res, err := r.contacts.Resolve(ctx, address, name)
	if err != nil {
		return archive.Contact{}, err
	}
	return res.Value, nil
}

func (r *Run) conversation(ctx context.Context, participants ...archive.Contact) (archive.Conversation, error) {
	res, err := r.conversations.Resolve(ctx, participants)
	if err != nil {
		return archive.Conversation{}, err
	}
	return res.Value, nil
}

func (r *Run) isDuplicate(ctx context.Context, key archive.MessageKey) (bool, error) {
	_, err := r.store.FindMessage(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, archive.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
}

func (r *Run) duplicate(format string) {
	r.stats.Duplicates++
	r.metrics.Record(format, "duplicate")
}

func (r *Run) inserted(format string) {
	r.stats.Inserted++
	r.metrics.Record(format, "inserted")
}

func (r *Run) invalid(format string, err error) {
	r.stats.Invalid++
	r.metrics.Record(format, "invalid")
	r.log.Warn("skipping invalid record", zap.String("format", format), zap.Error(err))
}

// attach persists one extracted media row, or counts the candidate as failed
// when extraction did not produce one.
func (r *Run) attach(ctx context.Context, format string, msgID uint64, index int, md *archive.Media, extractErr error) error {
	if extractErr != nil {
		r.stats.MediaFailed++
		r.metrics.Media(format, "failed")
		r.log.Warn("media candidate skipped",
			zap.String("format", format),
			zap.Uint64("message_id", msgID),
			zap.Int("index", index),
			zap.Error(extractErr),
		)
		return nil
	}
	if err := r.store.CreateMedia(ctx, md); err != nil {
		return fmt.Errorf("create media %d_%d: %w", msgID, index, err)
	}
	r.stats.MediaSaved++
	r.metrics.Media(format, "saved")
	return nil
}

func (r *Run) finish(format string, started time.Time, err error) {
	r.metrics.RunFinished(format, time.Since(started))
	fields := []zap.Field{
		zap.String("format", format),
		zap.Duration("took", time.Since(started)),
		zap.Int("records", r.stats.Records),
		zap.Int("inserted", r.stats.Inserted),
		zap.Int("duplicates", r.stats.Duplicates),
		zap.Int("invalid", r.stats.Invalid),
		zap.Int("media_saved", r.stats.MediaSaved),
		zap.Int("media_failed", r.stats.MediaFailed),
	}
	if err != nil {
		r.log.Error("import failed", append(fields, zap.Error(err))...)
		return
	}
	r.log.Info("import finished", fields...)
}

func (r *Run) progress(format string) {
	if r.stats.Records%1000 == 0 {
		r.log.Info("import progress",
			zap.String("format", format),
			zap.Int("records", r.stats.Records),
			zap.Int("inserted", r.stats.Inserted),
		)
	}
}
