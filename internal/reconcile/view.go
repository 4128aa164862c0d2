package reconcile

import (
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// View is the client-facing collection of provisional WorkUnits and persisted records.
// A single goroutine owns the entries; every method is a message to it.
type View struct {
	ops     chan func(*viewState)
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type viewState struct {
	// entries are ordered newest first.
	entries []entity.ViewEntry
}

func NewView() *View {
	v := &View{
		ops:     make(chan func(*viewState)),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go v.loop()
	return v
}

func (v *View) loop() {
	var st viewState
	defer close(v.stopped)
	for {
		select {
		case op := <-v.ops:
			op(&st)
		case <-v.quit:
			return
		}
	}
}

// Close stops the owner goroutine. Calls made after Close are no-ops.
func (v *View) Close() {
	v.once.Do(func() { close(v.quit) })
	<-v.stopped
}

func (v *View) do(fn func(*viewState)) {
	done := make(chan struct{})
	select {
	case v.ops <- func(s *viewState) { fn(s); close(done) }:
		<-done
	case <-v.stopped:
	}
}

// Track records the latest state of a WorkUnit. A new unit is added at the top;
// a known unit has its status updated. A done unit is never re-added since its entry
// has already been replaced by its records.
func (v *View) Track(u entity.WorkUnit) {
	v.do(func(s *viewState) {
		if i := s.indexOfClient(u.ClientID); i >= 0 {
			s.entries[i].Status = u.Status
			s.entries[i].ErrorDetail = u.ErrorDetail
			return
		}
		if u.Status == constants.StatusDone {
			return
		}
		s.entries = append([]entity.ViewEntry{{
			ClientID:    u.ClientID,
			SourceName:  u.SourceName,
			Status:      u.Status,
			ErrorDetail: u.ErrorDetail,
		}}, s.entries...)
	})
}

// Merge replaces the provisional entry for clientID with one entry per record.
// Records for an unknown clientID are added at the top.
func (v *View) Merge(clientID string, recs []entity.ContactRecord) {
	v.do(func(s *viewState) {
		merged := make([]entity.ViewEntry, 0, len(recs))
		for _, r := range recs {
			merged = append(merged, recordEntry(r))
		}
		i := s.indexOfClient(clientID)
		if i < 0 {
			s.entries = append(merged, s.entries...)
			return
		}
		rest := append([]entity.ViewEntry{}, s.entries[i+1:]...)
		s.entries = append(append(s.entries[:i], merged...), rest...)
	})
}

// ApplyField sets one editable field of a persisted record. It reports whether the record was found.
func (v *View) ApplyField(id uuid.UUID, f entity.ContactField, value *string) bool {
	var ok bool
	v.do(func(s *viewState) {
		i := s.indexOfStore(id)
		if i < 0 {
			return
		}
		rec := *s.entries[i].Record
		p := rec.StringFieldPtr(f)
		if p == nil {
			return
		}
		*p = cloneStr(value)
		s.entries[i].Record = &rec
		ok = true
	})
	return ok
}

// Remove drops a persisted record. It reports whether the record was found.
func (v *View) Remove(id uuid.UUID) bool {
	var ok bool
	v.do(func(s *viewState) {
		if i := s.indexOfStore(id); i >= 0 {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			ok = true
		}
	})
	return ok
}

// Discard drops a provisional entry in a terminal state.
func (v *View) Discard(clientID string) bool {
	var ok bool
	v.do(func(s *viewState) {
		i := s.indexOfClient(clientID)
		if i >= 0 && s.entries[i].Status.IsTerminal() {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			ok = true
		}
	})
	return ok
}

// ClearPersisted drops every persisted record and every failed provisional entry.
// Units still pending or processing stay visible.
func (v *View) ClearPersisted() {
	v.do(func(s *viewState) {
		s.entries = s.keep(func(e entity.ViewEntry) bool {
			return !e.Persisted() && !e.Status.IsTerminal()
		})
	})
}

// ReplacePersisted swaps every persisted record for recs, keeping provisional entries on top.
func (v *View) ReplacePersisted(recs []entity.ContactRecord) {
	v.do(func(s *viewState) {
		next := s.keep(func(e entity.ViewEntry) bool { return !e.Persisted() })
		for _, r := range recs {
			next = append(next, recordEntry(r))
		}
		s.entries = next
	})
}

// Record returns a copy of a persisted record.
func (v *View) Record(id uuid.UUID) (entity.ContactRecord, bool) {
	var (
		rec entity.ContactRecord
		ok  bool
	)
	v.do(func(s *viewState) {
		if i := s.indexOfStore(id); i >= 0 {
			rec, ok = *s.entries[i].Record, true
		}
	})
	return rec, ok
}

// Snapshot returns a copy of every entry, newest first.
func (v *View) Snapshot() []entity.ViewEntry {
	var out []entity.ViewEntry
	v.do(func(s *viewState) {
		out = make([]entity.ViewEntry, len(s.entries))
		for i, e := range s.entries {
			if e.Record != nil {
				rec := *e.Record
				e.Record = &rec
				id := *e.StoreID
				e.StoreID = &id
			}
			out[i] = e
		}
	})
	return out
}

func (v *View) Summary() entity.ViewSummary {
	var sum entity.ViewSummary
	v.do(func(s *viewState) {
		for _, e := range s.entries {
			switch e.Status {
			case constants.StatusPending:
				sum.Pending++
			case constants.StatusProcessing:
				sum.Processing++
			case constants.StatusDone:
				sum.Done++
			case constants.StatusFailed:
				sum.Failed++
			}
		}
	})
	return sum
}

func (s *viewState) indexOfClient(clientID string) int {
	for i, e := range s.entries {
		if !e.Persisted() && e.ClientID == clientID {
			return i
		}
	}
	return -1
}

func (s *viewState) indexOfStore(id uuid.UUID) int {
	for i, e := range s.entries {
		if e.Persisted() && *e.StoreID == id {
			return i
		}
	}
	return -1
}

func (s *viewState) keep(pred func(entity.ViewEntry) bool) []entity.ViewEntry {
	out := make([]entity.ViewEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func recordEntry(r entity.ContactRecord) entity.ViewEntry {
	id := r.StoreID
	src := ""
	if r.SourceFilename != nil {
		src = *r.SourceFilename
	}
	return entity.ViewEntry{
		StoreID:    &id,
		SourceName: src,
		Status:     constants.StatusDone,
		Record:     &r,
	}
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
