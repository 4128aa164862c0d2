package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/core"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/llm"
)

type processFunc func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error)

func (f processFunc) Process(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
	return f(ctx, job)
}

func oneRecord(context.Context, core.Job) ([]entity.ContactRecord, error) {
	return []entity.ContactRecord{{StoreID: uuid.New()}}, nil
}

func uploads(n int) []entity.Upload {
	out := make([]entity.Upload, n)
	for i := range out {
		out[i] = entity.Upload{Name: fmt.Sprintf("%d.png", i+1), Data: []byte{byte(i)}}
	}
	return out
}

// recorder is a transition observer.
type recorder struct {
	mu            sync.Mutex
	processing    int
	maxProcessing int
	byUnit        map[string][]constants.WorkStatus
}

func newRecorder() *recorder { return &recorder{byUnit: map[string][]constants.WorkStatus{}} }

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUnit[t.Unit.ClientID] = append(r.byUnit[t.Unit.ClientID], t.To)
	switch {
	case t.To == constants.StatusProcessing:
		r.processing++
		if r.processing > r.maxProcessing {
			r.maxProcessing = r.processing
		}
	case t.To.IsTerminal():
		r.processing--
	}
}

func newTestDispatcher(t *testing.T, p UnitProcessor, opts ...Option) *Dispatcher {
	t.Helper()
	d := NewDispatcher(p, nil, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func waitBatch(t *testing.T, h *BatchHandle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
}

func TestDispatcher_NeverMoreThanThreeProcessing(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(15 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return oneRecord(ctx, job)
	})

	d := newTestDispatcher(t, proc)
	rec := newRecorder()
	d.OnTransition(rec.observe)

	h, err := d.Submit(context.Background(), Batch{Files: uploads(10)})
	require.NoError(t, err)
	waitBatch(t, h)

	assert.LessOrEqual(t, peak, constants.MaxConcurrentExtractions)
	assert.LessOrEqual(t, rec.maxProcessing, constants.MaxConcurrentExtractions)
	assert.EqualValues(t, 0, d.gate.InUse())
	for _, u := range h.Units() {
		assert.Equal(t, constants.StatusDone, u.Status, u.SourceName)
	}
}

func TestDispatcher_FailureIsIsolated(t *testing.T) {
	t.Parallel()

	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		if job.SourceName == "3.png" {
			return nil, &llm.UpstreamError{Status: 500, Body: "internal"}
		}
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc)

	h, err := d.Submit(context.Background(), Batch{Files: uploads(5)})
	require.NoError(t, err)
	waitBatch(t, h)

	units := h.Units()
	require.Len(t, units, 5)
	for i, u := range units {
		if i == 2 {
			assert.Equal(t, constants.StatusFailed, u.Status)
			assert.Contains(t, u.ErrorDetail, "500")
			assert.Empty(t, u.StoreIDs)
			continue
		}
		assert.Equal(t, constants.StatusDone, u.Status)
		assert.Len(t, u.StoreIDs, 1)
	}
}

func TestDispatcher_TransitionsInOrder(t *testing.T) {
	t.Parallel()

	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		if job.SourceName == "2.png" {
			return nil, errors.New("boom")
		}
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc)
	rec := newRecorder()
	d.OnTransition(rec.observe)

	h, err := d.Submit(context.Background(), Batch{Files: uploads(4)})
	require.NoError(t, err)
	waitBatch(t, h)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, id := range h.ClientIDs() {
		seq := rec.byUnit[id]
		require.Len(t, seq, 3)
		assert.Equal(t, constants.StatusPending, seq[0])
		assert.Equal(t, constants.StatusProcessing, seq[1])
		assert.True(t, seq[2].IsTerminal())
	}
}

func TestDispatcher_AdmitsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)
	release := make(chan struct{})
	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		mu.Lock()
		order = append(order, job.SourceName)
		mu.Unlock()
		<-release
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc, WithGate(NewGate(1)))

	h1, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{
		{Name: "a1.png", Data: []byte{1}}, {Name: "a2.png", Data: []byte{2}},
	}})
	require.NoError(t, err)
	h2, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{
		{Name: "b1.png", Data: []byte{3}}, {Name: "b2.png", Data: []byte{4}},
	}})
	require.NoError(t, err)

	close(release)
	waitBatch(t, h1)
	waitBatch(t, h2)
	assert.Equal(t, []string{"a1.png", "a2.png", "b1.png", "b2.png"}, order)
}

func TestDispatcher_SubmitReturnsBeforeProcessing(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		<-release
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc)

	h, err := d.Submit(context.Background(), Batch{POCName: "Grace", Files: uploads(5)})
	require.NoError(t, err)
	for _, u := range h.Units() {
		assert.False(t, u.Status.IsTerminal())
		assert.Equal(t, "image/png", u.MimeType)
	}
	close(release)
	waitBatch(t, h)
}

func TestDispatcher_Discard(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		<-release
		return nil, core.ErrNoContacts
	})
	d := newTestDispatcher(t, proc)

	h, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{{ClientID: "c1", Name: "x.jpg", Data: []byte{1}}}})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Discard("c1"), common.ErrInvalidInput)
	assert.ErrorIs(t, d.Discard("nope"), common.ErrNotFound)

	close(release)
	waitBatch(t, h)

	u, ok := d.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, constants.StatusFailed, u.Status)
	assert.Equal(t, core.ErrNoContacts.Error(), u.ErrorDetail)

	require.NoError(t, d.Discard("c1"))
	_, ok = d.Lookup("c1")
	assert.False(t, ok)
	assert.Empty(t, d.Units())

	// the handle keeps its own copy
	assert.Equal(t, constants.StatusFailed, h.Units()[0].Status)
}

func TestDispatcher_TerminalStatusIsFinal(t *testing.T) {
	t.Parallel()

	proc := processFunc(func(context.Context, core.Job) ([]entity.ContactRecord, error) {
		return nil, errors.New("boom")
	})
	d := newTestDispatcher(t, proc)
	h, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{{ClientID: "c1", Name: "x.png", Data: []byte{1}}}})
	require.NoError(t, err)
	waitBatch(t, h)

	d.mu.Lock()
	tr := d.units["c1"]
	d.mu.Unlock()
	require.NotNil(t, tr)

	for _, to := range []constants.WorkStatus{constants.StatusDone, constants.StatusProcessing, constants.StatusPending} {
		_, ok := d.transition(tr, to, "late", nil)
		assert.False(t, ok)
	}
	u, _ := d.Lookup("c1")
	assert.Equal(t, constants.StatusFailed, u.Status)
	assert.Equal(t, "boom", u.ErrorDetail)
}

func TestDispatcher_DoneUnitsLeaveTracking(t *testing.T) {
	t.Parallel()

	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		if job.ClientID == "bad" {
			return nil, core.ErrNoContacts
		}
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc)
	rec := newRecorder()
	d.OnTransition(rec.observe)

	h, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{
		{ClientID: "ok", Name: "ok.png", Data: []byte{1}},
		{ClientID: "bad", Name: "bad.png", Data: []byte{2}},
	}})
	require.NoError(t, err)
	waitBatch(t, h)

	rec.mu.Lock()
	assert.Equal(t, constants.StatusDone, rec.byUnit["ok"][2])
	rec.mu.Unlock()

	_, ok := d.Lookup("ok")
	assert.False(t, ok)
	u, ok := d.Lookup("bad")
	require.True(t, ok)
	assert.Equal(t, constants.StatusFailed, u.Status)

	units := d.Units()
	require.Len(t, units, 1)
	assert.Equal(t, "bad", units[0].ClientID)

	res := h.Results()
	require.Len(t, res, 2)
	assert.Equal(t, constants.StatusDone, res[0].Unit.Status)
	assert.Len(t, res[0].Records, 1)
	assert.Len(t, res[0].Unit.StoreIDs, 1)

	// a finished id may be submitted again
	h2, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{{ClientID: "ok", Name: "ok.png", Data: []byte{1}}}})
	require.NoError(t, err)
	waitBatch(t, h2)
}

func TestDispatcher_OverlappingBatchesShareThreeSlots(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc)
	rec := newRecorder()
	d.OnTransition(rec.observe)

	var (
		wg      sync.WaitGroup
		handles = make([]*BatchHandle, 2)
	)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			files := make([]entity.Upload, 5)
			for j := range files {
				files[j] = entity.Upload{Name: fmt.Sprintf("b%d-%d.png", i, j), Data: []byte{byte(j)}}
			}
			h, err := d.Submit(context.Background(), Batch{Files: files})
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()
	for _, h := range handles {
		require.NotNil(t, h)
		waitBatch(t, h)
		for _, u := range h.Units() {
			assert.Equal(t, constants.StatusDone, u.Status)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, constants.MaxConcurrentExtractions)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.LessOrEqual(t, rec.maxProcessing, constants.MaxConcurrentExtractions)
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, processFunc(oneRecord))
	ctx := context.Background()

	_, err := d.Submit(ctx, Batch{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = d.Submit(ctx, Batch{Files: []entity.Upload{{Name: "a.png"}}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = d.Submit(ctx, Batch{Files: []entity.Upload{
		{ClientID: "same", Name: "a.png", Data: []byte{1}},
		{ClientID: "same", Name: "b.png", Data: []byte{1}},
	}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Empty(t, d.Units())
}

func TestDispatcher_ShutdownDrains(t *testing.T) {
	t.Parallel()

	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		time.Sleep(5 * time.Millisecond)
		return oneRecord(ctx, job)
	})
	d := NewDispatcher(proc, nil)

	h, err := d.Submit(context.Background(), Batch{Files: uploads(6)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	select {
	case <-h.Done():
	default:
		t.Fatal("shutdown returned before the batch finished")
	}
	_, err = d.Submit(context.Background(), Batch{Files: uploads(1)})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDispatcher_RateLimitStillCompletes(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, processFunc(oneRecord), WithRateLimit(200))
	h, err := d.Submit(context.Background(), Batch{Files: uploads(4)})
	require.NoError(t, err)
	waitBatch(t, h)
	for _, r := range h.Results() {
		assert.Len(t, r.Records, 1)
	}
}

func TestDispatcher_InterruptedShutdownLeavesQueuedUnitsPending(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	proc := processFunc(func(ctx context.Context, job core.Job) ([]entity.ContactRecord, error) {
		<-release
		return oneRecord(ctx, job)
	})
	d := newTestDispatcher(t, proc, WithGate(NewGate(1)))
	defer close(release)

	h, err := d.Submit(context.Background(), Batch{Files: []entity.Upload{
		{ClientID: "a", Name: "a.png", Data: []byte{1}},
		{ClientID: "b", Name: "b.png", Data: []byte{2}},
		{ClientID: "c", Name: "c.png", Data: []byte{3}},
	}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		u, _ := d.Lookup("a")
		return u.Status == constants.StatusProcessing
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	for _, id := range []string{"b", "c"} {
		u, ok := d.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, constants.StatusPending, u.Status, id)
	}
	wctx, wcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer wcancel()
	assert.ErrorIs(t, h.Wait(wctx), context.DeadlineExceeded)
}
