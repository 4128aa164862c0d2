package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/llm"
)

// ErrNoContacts is the failure of a unit whose reply held no candidates.
var ErrNoContacts = errors.New("no contacts extracted")

// Reconciler persists a unit's candidates.
type Reconciler interface {
	Reconcile(ctx context.Context, clientID, sourceName, poc string, candidates []entity.Candidate) ([]entity.ContactRecord, error)
}

// Job is one image ready for extraction.
type Job struct {
	ClientID   string
	SourceName string
	MimeType   string
	POCName    string
	Data       []byte
}

// Processor takes one image through extraction and reconciliation.
type Processor struct {
	logger     *slog.Logger
	extractor  llm.Extractor
	reconciler Reconciler
	timeout    time.Duration
}

func NewProcessor(logger *slog.Logger, extractor llm.Extractor, reconciler Reconciler, extractTimeout time.Duration) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if extractTimeout <= 0 {
		extractTimeout = constants.DefaultExtractTimeout
	}
	return &Processor{
		logger:     logger,
		extractor:  extractor,
		reconciler: reconciler,
		timeout:    extractTimeout,
	}
}

// Process extracts candidates from job's image and persists them.
// It succeeds when at least one record was stored.
func (p *Processor) Process(ctx context.Context, job Job) ([]entity.ContactRecord, error) {
	ctx = common.WithClientID(ctx, job.ClientID)
	log := common.LoggerWith(ctx, p.logger)
	start := time.Now()

	candidates, err := p.extract(ctx, job)
	if err != nil {
		log.Error("processor.extract.failed", "source", job.SourceName, "error", err)
		return nil, err
	}
	if len(candidates) == 0 {
		log.Warn("processor.extract.empty", "source", job.SourceName)
		return nil, ErrNoContacts
	}
	log.Debug("processor.extract.ok", "candidates", len(candidates), "elapsed_ms", time.Since(start).Milliseconds())

	recs, err := p.reconciler.Reconcile(ctx, job.ClientID, job.SourceName, job.POCName, candidates)
	if err != nil {
		log.Error("processor.reconcile.failed", "candidates", len(candidates), "error", err)
		return nil, err
	}

	log.Info("processor.done",
		"source", job.SourceName,
		"candidates", len(candidates),
		"persisted", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return recs, nil
}

func (p *Processor) extract(ctx context.Context, job Job) ([]entity.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.extractor.Extract(ctx, job.Data, job.MimeType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !llm.IsUpstreamFailure(err) {
			err = &llm.UpstreamError{Err: err}
		}
		return nil, fmt.Errorf("extract %s: %w", job.SourceName, err)
	}
	return out, nil
}
