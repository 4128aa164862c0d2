package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// Batch is a set of images submitted together by one collector.
type Batch struct {
	POCName string
	Files   []entity.Upload
}

// Transition is one status change of a unit. Unit is a snapshot taken after the change.
type Transition struct {
	Unit entity.WorkUnit
	From constants.WorkStatus
	To   constants.WorkStatus
	At   time.Time
}

// UnitResult is the final state of a unit and the records it produced.
type UnitResult struct {
	Unit    entity.WorkUnit
	Records []entity.ContactRecord
}

// Queue is the intake side of the pipeline.
type Queue interface {
	Submit(ctx context.Context, b Batch) (*BatchHandle, error)
	Shutdown(ctx context.Context) error
}
