package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/core"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/metrics"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("dispatcher is shutting down")

// UnitProcessor runs one admitted unit to completion.
type UnitProcessor interface {
	Process(ctx context.Context, job core.Job) ([]entity.ContactRecord, error)
}

type tracked struct {
	seq       uint64
	unit      entity.WorkUnit
	poc       string
	data      []byte
	batch     *BatchHandle
	announced chan struct{} // closed once the pending transition was emitted
}

// Dispatcher admits submitted units through the Gate in submission order and drives each
// through pending -> processing -> done|failed. A unit's failure never affects another.
type Dispatcher struct {
	proc    UnitProcessor
	logger  *slog.Logger
	gate    *Gate
	limiter *rate.Limiter
	metrics *metrics.Metrics
	now     func() time.Time

	// ctx is cancelled when Shutdown gives up waiting; it only stops admission.
	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	seq       uint64
	queue     []string
	units     map[string]*tracked
	observers []func(Transition)
	closed    bool
}

type Option func(*Dispatcher)

// WithGate shares an admission gate between dispatchers.
func WithGate(g *Gate) Option {
	return func(d *Dispatcher) {
		if g != nil {
			d.gate = g
		}
	}
}

// WithRateLimit paces admissions to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(d *Dispatcher) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(proc UnitProcessor, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		proc:   proc,
		logger: logger,
		gate:   NewGate(constants.MaxConcurrentExtractions),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		units:  map[string]*tracked{},
	}
	for _, o := range opts {
		o(d)
	}
	d.wg.Add(1)
	go d.admit()
	return d
}

// OnTransition registers an observer. Observers of different units may run concurrently;
// the transitions of one unit are delivered in order.
func (d *Dispatcher) OnTransition(fn func(Transition)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// Submit registers one pending unit per file and returns without waiting for any of them.
func (d *Dispatcher) Submit(ctx context.Context, b Batch) (*BatchHandle, error) {
	if len(b.Files) == 0 {
		return nil, fmt.Errorf("%w: batch has no files", common.ErrInvalidInput)
	}
	v := common.NewValidator()
	for i, f := range b.Files {
		v.Field(fmt.Sprintf("files[%d].name", i), f.Name, common.Required).
			Field(fmt.Sprintf("files[%d].data", i), f.Data, common.Required)
	}
	if err := v.Error(); err != nil {
		return nil, err
	}

	h := newBatchHandle(d, uuid.NewString())
	log := common.LoggerWith(common.WithBatchID(ctx, h.ID), d.logger)
	now := d.now()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	batch := make([]*tracked, 0, len(b.Files))
	seen := map[string]struct{}{}
	for _, f := range b.Files {
		id := strings.TrimSpace(f.ClientID)
		if id == "" {
			id = uuid.NewString()
		}
		_, dupBatch := seen[id]
		_, dupTracked := d.units[id]
		if dupBatch || dupTracked {
			d.mu.Unlock()
			return nil, fmt.Errorf("%w: duplicate client id %q", common.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}

		mt := strings.TrimSpace(f.MimeType)
		if mt == "" {
			mt = constants.MimeTypeForPath(f.Name)
		}
		if !constants.IsAcceptedMimeType(mt) {
			log.Warn("dispatch.unit.unusual_mime_type", "client_id", id, "source", f.Name, "mime_type", mt)
		}
		d.seq++
		batch = append(batch, &tracked{
			seq: d.seq,
			unit: entity.WorkUnit{
				ClientID:    id,
				BatchID:     h.ID,
				SourceName:  f.Name,
				MimeType:    mt,
				Status:      constants.StatusPending,
				SubmittedAt: now,
			},
			poc:       b.POCName,
			data:      f.Data,
			batch:     h,
			announced: make(chan struct{}),
		})
	}
	for _, t := range batch {
		d.units[t.unit.ClientID] = t
		d.queue = append(d.queue, t.unit.ClientID)
		h.ids = append(h.ids, t.unit.ClientID)
	}
	h.remaining = len(batch)
	observers := append([]func(Transition){}, d.observers...)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	for _, t := range batch {
		d.metrics.UnitEntered(constants.StatusPending)
		emit(observers, Transition{Unit: t.snapshot(), To: constants.StatusPending, At: now})
		close(t.announced)
	}
	log.Info("dispatch.batch.submitted", "units", len(batch), "poc", b.POCName)
	return h, nil
}

func (d *Dispatcher) admit() {
	defer d.wg.Done()
	for {
		id, ok := d.next()
		if !ok {
			return
		}
		if err := d.gate.Acquire(d.ctx); err != nil {
			d.logger.Warn("dispatch.admit.stopped", "client_id", id, "error", err)
			return
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(d.ctx); err != nil {
				d.gate.Release()
				d.logger.Warn("dispatch.admit.stopped", "client_id", id, "error", err)
				return
			}
		}

		t, job, ok := d.start(id)
		if !ok {
			d.gate.Release()
			continue
		}
		d.wg.Add(1)
		go d.run(t, job)
	}
}

// next pops the oldest queued unit, waiting for one if the queue is empty.
func (d *Dispatcher) next() (string, bool) {
	for {
		d.mu.Lock()
		if len(d.queue) > 0 {
			id := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return id, true
		}
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return "", false
		}
		select {
		case <-d.wake:
		case <-d.ctx.Done():
			return "", false
		}
	}
}

func (d *Dispatcher) start(id string) (*tracked, core.Job, bool) {
	d.mu.Lock()
	t, ok := d.units[id]
	d.mu.Unlock()
	if !ok {
		return nil, core.Job{}, false
	}
	<-t.announced

	tr, ok := d.transition(t, constants.StatusProcessing, "", nil)
	if !ok {
		return nil, core.Job{}, false
	}
	d.emit(tr)
	common.LoggerWith(common.WithBatchID(context.Background(), t.unit.BatchID), d.logger).
		Debug("dispatch.unit.processing", "client_id", id, "in_use", d.gate.InUse())

	return t, core.Job{
		ClientID:   id,
		SourceName: tr.Unit.SourceName,
		MimeType:   tr.Unit.MimeType,
		POCName:    t.poc,
		Data:       t.data,
	}, true
}

// run processes an admitted unit. Once processing, nothing cancels it.
func (d *Dispatcher) run(t *tracked, job core.Job) {
	defer d.wg.Done()
	ctx := common.WithBatchID(context.Background(), t.batch.ID)
	log := common.LoggerWith(common.WithClientID(ctx, job.ClientID), d.logger)
	started := d.now()

	recs, err := d.proc.Process(ctx, job)

	var (
		tr Transition
		ok bool
	)
	if err != nil {
		tr, ok = d.transition(t, constants.StatusFailed, err.Error(), nil)
		log.Warn("dispatch.unit.failed", "source", job.SourceName, "error", err)
	} else {
		tr, ok = d.transition(t, constants.StatusDone, "", recs)
		log.Info("dispatch.unit.done", "source", job.SourceName, "records", len(recs))
	}
	if ok {
		d.metrics.UnitFinished(tr.To, d.now().Sub(started))
		d.metrics.RecordsPersisted(len(recs))
		// Observers see the terminal state before the slot frees up.
		d.emit(tr)
	}
	t.batch.record(tr.Unit, recs)
	if tr.To == constants.StatusDone {
		// Superseded by its persisted records; failed units stay until discarded.
		d.mu.Lock()
		delete(d.units, t.unit.ClientID)
		d.mu.Unlock()
	}
	d.gate.Release()
	t.batch.settle()
}

// transition applies a legal status change and returns its snapshot.
func (d *Dispatcher) transition(t *tracked, to constants.WorkStatus, detail string, recs []entity.ContactRecord) (Transition, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	from := t.unit.Status
	if !constants.CanTransition(from, to) {
		d.logger.Error("dispatch.unit.illegal_transition", "client_id", t.unit.ClientID, "from", from, "to", to)
		return Transition{Unit: t.snapshot(), From: from, To: from}, false
	}
	now := d.now()
	t.unit.Status = to
	switch to {
	case constants.StatusProcessing:
		t.unit.StartedAt = &now
	case constants.StatusDone, constants.StatusFailed:
		t.unit.FinishedAt = &now
		t.unit.ErrorDetail = detail
		t.data = nil
		for _, r := range recs {
			t.unit.StoreIDs = append(t.unit.StoreIDs, r.StoreID)
		}
	}
	return Transition{Unit: t.snapshot(), From: from, To: to, At: now}, true
}

func (d *Dispatcher) emit(tr Transition) {
	d.mu.Lock()
	observers := append([]func(Transition){}, d.observers...)
	d.mu.Unlock()
	d.metrics.UnitEntered(tr.To)
	emit(observers, tr)
}

func emit(observers []func(Transition), tr Transition) {
	for _, fn := range observers {
		fn(tr)
	}
}

// Lookup returns the current state of a tracked unit. Done units are no longer tracked.
func (d *Dispatcher) Lookup(clientID string) (entity.WorkUnit, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.units[clientID]
	if !ok {
		return entity.WorkUnit{}, false
	}
	return t.snapshot(), true
}

// Units returns every tracked unit (pending, processing or failed) in submission order.
func (d *Dispatcher) Units() []entity.WorkUnit {
	d.mu.Lock()
	all := make([]*tracked, 0, len(d.units))
	for _, t := range d.units {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]entity.WorkUnit, len(all))
	for i, t := range all {
		out[i] = t.snapshot()
	}
	d.mu.Unlock()
	return out
}

// Discard stops tracking a unit in a terminal state.
func (d *Dispatcher) Discard(clientID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.units[clientID]
	if !ok {
		return fmt.Errorf("work unit %s: %w", clientID, common.ErrNotFound)
	}
	if !t.unit.Status.IsTerminal() {
		return fmt.Errorf("%w: work unit %s is %s", common.ErrInvalidInput, clientID, t.unit.Status)
	}
	delete(d.units, clientID)
	return nil
}

// Shutdown stops accepting batches and waits for queued and processing units to finish.
// When ctx expires first, admission stops; units already processing still run to completion
// while units not yet admitted stay pending, so their BatchHandle never completes.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn("dispatch.shutdown.interrupted", "error", ctx.Err())
		return ctx.Err()
	case <-done:
		d.cancel()
		d.logger.Info("dispatch.shutdown.complete")
		return nil
	}
}

func (t *tracked) snapshot() entity.WorkUnit {
	u := t.unit
	u.StoreIDs = append([]uuid.UUID(nil), t.unit.StoreIDs...)
	return u
}

var _ Queue = (*Dispatcher)(nil)
