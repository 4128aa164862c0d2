package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/repository"
)

// ErrNothingPersisted is returned by Reconcile when no candidate reached the store.
var ErrNothingPersisted = errors.New("no contacts persisted")

// Reconciler writes extracted candidates and user edits to the record store and keeps the View in step.
type Reconciler struct {
	repo         repository.ContactRepository
	view         *View
	log          *slog.Logger
	storeTimeout time.Duration

	// background confirmations
	pending sync.WaitGroup
}

type Option func(*Reconciler)

// WithStoreTimeout bounds each store call, including background confirmations.
func WithStoreTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

func New(repo repository.ContactRepository, view *View, logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if view == nil {
		view = NewView()
	}
	r := &Reconciler{
		repo:         repo,
		view:         view,
		log:          logger,
		storeTimeout: constants.DefaultStoreTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reconciler) View() *View { return r.view }

func (r *Reconciler) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.storeTimeout)
}

// Persist stores one candidate and returns the record with its store id.
func (r *Reconciler) Persist(ctx context.Context, c entity.Candidate, poc, sourceName string) (entity.ContactRecord, error) {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.repo.Insert(ctx, entity.ContactRecord{
		Candidate:      c,
		POCName:        optional(poc),
		SourceFilename: optional(sourceName),
	})
}

// Reconcile persists candidates one after another. A failed candidate is logged and skipped.
// The persisted records replace the provisional clientID entry in the View. An error is
// returned only when nothing was persisted.
func (r *Reconciler) Reconcile(ctx context.Context, clientID, sourceName, poc string, candidates []entity.Candidate) ([]entity.ContactRecord, error) {
	log := common.LoggerWith(ctx, r.log).With("client_id", clientID)

	var (
		out     []entity.ContactRecord
		lastErr error
	)
	for i, c := range candidates {
		rec, err := r.Persist(ctx, c, poc, cardSourceName(sourceName, i, len(candidates)))
		if err != nil {
			lastErr = err
			log.Error("reconcile.persist.failed", "index", i, "name", c.DisplayName(), "error", err)
			continue
		}
		log.Debug("reconcile.persist.ok", "index", i, "store_id", rec.StoreID)
		out = append(out, rec)
	}

	if len(out) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNothingPersisted, lastErr)
		}
		return nil, ErrNothingPersisted
	}

	r.view.Merge(clientID, out)
	log.Info("reconcile.merged", "persisted", len(out), "candidates", len(candidates))
	return out, nil
}

// cardSourceName labels each card of a multi-card image as "<file> (card n)".
func cardSourceName(sourceName string, i, total int) string {
	if total <= 1 || sourceName == "" {
		return sourceName
	}
	return fmt.Sprintf("%s (card %d)", sourceName, i+1)
}

// Mutation is a view change whose store confirmation runs in the background.
type Mutation struct {
	done chan struct{}
	err  error
}

func newMutation() *Mutation { return &Mutation{done: make(chan struct{})} }

func (m *Mutation) finish(err error) {
	m.err = err
	close(m.done)
}

// Wait blocks until the store confirmed or rejected the mutation.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the store call returned.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// UpdateField applies an edit to the View and then confirms it against the store.
// A store failure is logged and leaves the View as edited.
func (r *Reconciler) UpdateField(ctx context.Context, id uuid.UUID, field entity.ContactField, value *string) (*Mutation, error) {
	v := common.NewValidator().
		Field("field", string(field), common.OneOf(editableNames()...))
	if value != nil {
		v.Field(string(field), *value, common.MaxLength(4096))
	}
	if err := v.Error(); err != nil {
		return nil, err
	}

	applied := r.view.ApplyField(id, field, value)
	log := common.LoggerWith(ctx, r.log).With("store_id", id, "field", field)
	log.Debug("reconcile.update.applied", "in_view", applied)

	return r.confirm(ctx, log, "reconcile.update", func(ctx context.Context) error {
		return r.repo.UpdateFields(ctx, id, map[entity.ContactField]*string{field: value})
	}), nil
}

// Delete removes a record from the View and then from the store.
func (r *Reconciler) Delete(ctx context.Context, id uuid.UUID) (*Mutation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: store id is required", common.ErrInvalidInput)
	}
	removed := r.view.Remove(id)
	log := common.LoggerWith(ctx, r.log).With("store_id", id)
	log.Debug("reconcile.delete.applied", "in_view", removed)

	return r.confirm(ctx, log, "reconcile.delete", func(ctx context.Context) error {
		return r.repo.Delete(ctx, id)
	}), nil
}

func (r *Reconciler) confirm(ctx context.Context, log *slog.Logger, event string, call func(context.Context) error) *Mutation {
	m := newMutation()
	base := context.WithoutCancel(ctx)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := r.storeCtx(base)
		defer cancel()
		err := call(ctx)
		if err != nil {
			log.Error(event+".failed", "error", err)
		} else {
			log.Debug(event + ".confirmed")
		}
		m.finish(err)
	}()
	return m
}

// ClearAll deletes every record in the store, regardless of who created it.
func (r *Reconciler) ClearAll(ctx context.Context, confirm bool) error {
	if !confirm {
		return common.ErrConfirmationRequired
	}
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	n, err := r.repo.DeleteAll(ctx)
	if err != nil {
		r.log.Error("reconcile.clear.failed", "error", err)
		return err
	}
	r.view.ClearPersisted()
	r.log.Warn("reconcile.clear.ok", "deleted", n)
	return nil
}

// Reload replaces the View's persisted records with the store's, newest first.
func (r *Reconciler) Reload(ctx context.Context) ([]entity.ContactRecord, error) {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	recs, err := r.repo.ListAll(ctx)
	if err != nil {
		r.log.Error("reconcile.reload.failed", "error", err)
		return nil, err
	}
	r.view.ReplacePersisted(recs)
	r.log.Info("reconcile.reload.ok", "records", len(recs))
	return recs, nil
}

// Drain waits for background confirmations to finish.
func (r *Reconciler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func editableNames() []string {
	out := make([]string, len(entity.EditableFields))
	for i, f := range entity.EditableFields {
		out[i] = string(f)
	}
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
