package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cardscan/constants"
)

// WorkUnit is one submitted image tracked through the pipeline.
type WorkUnit struct {
	ClientID    string               `json:"client_id"`
	BatchID     string               `json:"batch_id"`
	SourceName  string               `json:"source_name"`
	MimeType    string               `json:"mime_type"`
	Status      constants.WorkStatus `json:"status"`
	ErrorDetail string               `json:"error_detail,omitempty"`
	StoreIDs    []uuid.UUID          `json:"store_ids,omitempty"`
	SubmittedAt time.Time            `json:"submitted_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
}

// Upload is one image handed to the pipeline by the intake surface.
type Upload struct {
	// ClientID is optional; the dispatcher generates one when empty.
	ClientID string
	Name     string
	MimeType string
	Data     []byte
}
