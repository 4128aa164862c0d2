package async

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/cardscan/constants"
)

// Gate bounds how many units are processing at once. Waiters are admitted in the order they arrived.
type Gate struct {
	sem  *semaphore.Weighted
	held atomic.Int64
}

func NewGate(slots int64) *Gate {
	if slots <= 0 {
		slots = constants.MaxConcurrentExtractions
	}
	return &Gate{sem: semaphore.NewWeighted(slots)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.held.Add(1)
	return nil
}

func (g *Gate) Release() {
	g.held.Add(-1)
	g.sem.Release(1)
}

// InUse returns the number of held slots.
func (g *Gate) InUse() int64 { return g.held.Load() }
