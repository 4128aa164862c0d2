package async

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// BatchHandle follows the units of one submitted batch.
type BatchHandle struct {
	ID string

	d    *Dispatcher
	ids  []string
	done chan struct{}

	mu        sync.Mutex
	remaining int
	results   map[string]UnitResult
}

func newBatchHandle(d *Dispatcher, id string) *BatchHandle {
	return &BatchHandle{
		ID:      id,
		d:       d,
		done:    make(chan struct{}),
		results: map[string]UnitResult{},
	}
}

// ClientIDs returns the unit ids in submission order.
func (h *BatchHandle) ClientIDs() []string {
	return append([]string(nil), h.ids...)
}

// Units returns the current state of every unit in submission order.
func (h *BatchHandle) Units() []entity.WorkUnit {
	out := make([]entity.WorkUnit, 0, len(h.ids))
	for _, r := range h.Results() {
		out = append(out, r.Unit)
	}
	return out
}

// Results returns each unit with the records it produced. Units not yet terminal have no records.
func (h *BatchHandle) Results() []UnitResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]UnitResult, 0, len(h.ids))
	for _, id := range h.ids {
		if r, ok := h.results[id]; ok {
			out = append(out, r)
			continue
		}
		u, _ := h.d.Lookup(id)
		out = append(out, UnitResult{Unit: u})
	}
	return out
}

// Done is closed once every unit reached a terminal state.
func (h *BatchHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until every unit is terminal or ctx is done.
func (h *BatchHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// record stores a unit's final state before the dispatcher stops tracking it.
func (h *BatchHandle) record(u entity.WorkUnit, recs []entity.ContactRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[u.ClientID] = UnitResult{Unit: u, Records: recs}
}

// settle counts one unit as finished and closes Done after the last one.
func (h *BatchHandle) settle() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remaining--
	if h.remaining == 0 {
		close(h.done)
	}
}
