package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/internal/common"
	"github.com/joseph-ayodele/cardscan/internal/entity"
)

var errStoreDown = errors.New("store down")

// fakeRepo is an in-memory ContactRepository with failure injection.
type fakeRepo struct {
	mu      sync.Mutex
	recs    map[uuid.UUID]entity.ContactRecord
	inserts int
	clock   time.Time

	failInsert func(n int) bool
	updateErr  error
	deleteErr  error
	gate       chan struct{} // when set, UpdateFields and Delete block until it is closed
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		recs:  map[uuid.UUID]entity.ContactRecord{},
		clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) Insert(_ context.Context, rec entity.ContactRecord) (entity.ContactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failInsert != nil && f.failInsert(f.inserts) {
		return entity.ContactRecord{}, errStoreDown
	}
	f.clock = f.clock.Add(time.Second)
	rec.StoreID = uuid.New()
	rec.CreatedAt = f.clock
	f.recs[rec.StoreID] = rec
	return rec, nil
}

func (f *fakeRepo) InsertMany(ctx context.Context, recs []entity.ContactRecord) ([]entity.ContactRecord, error) {
	var out []entity.ContactRecord
	for _, r := range recs {
		rec, err := f.Insert(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepo) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRepo) UpdateFields(ctx context.Context, id uuid.UUID, patch map[entity.ContactField]*string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	rec, ok := f.recs[id]
	if !ok {
		return common.ErrNotFound
	}
	for k, v := range patch {
		*rec.StringFieldPtr(k) = v
	}
	f.recs[id] = rec
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.recs[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.recs, id)
	return nil
}

func (f *fakeRepo) DeleteAll(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.recs))
	f.recs = map[uuid.UUID]entity.ContactRecord{}
	return n, nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (entity.ContactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return entity.ContactRecord{}, common.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) ListAll(context.Context) ([]entity.ContactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.ContactRecord, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
