package entity

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/constants"
)

// ViewEntry is one row of the client-facing collection: either a provisional WorkUnit
// (no StoreID yet) or a persisted ContactRecord.
type ViewEntry struct {
	ClientID    string               `json:"client_id,omitempty"`
	StoreID     *uuid.UUID           `json:"store_id,omitempty"`
	SourceName  string               `json:"source_name"`
	Status      constants.WorkStatus `json:"status"`
	ErrorDetail string               `json:"error_detail,omitempty"`
	Record      *ContactRecord       `json:"record,omitempty"`
}

// Persisted reports whether the entry is backed by a store record.
func (e ViewEntry) Persisted() bool {
	return e.StoreID != nil
}

// ViewSummary counts view entries per status.
type ViewSummary struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}
