package entity

import (
	"time"

	"github.com/google/uuid"
)

// ContactRecord is the durable, store-owned contact.
type ContactRecord struct {
	Candidate
	StoreID        uuid.UUID `json:"id"`
	POCName        *string   `json:"poc_name"`
	UserNotes      *string   `json:"user_notes"`
	SourceFilename *string   `json:"source_filename"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContactField names a column of ContactRecord that callers may edit after creation.
type ContactField string

const (
	FieldFullName        ContactField = "full_name"
	FieldFirstName       ContactField = "first_name"
	FieldLastName        ContactField = "last_name"
	FieldEmail           ContactField = "email"
	FieldPhone           ContactField = "phone"
	FieldCompany         ContactField = "company"
	FieldTitle           ContactField = "title"
	FieldWebsite         ContactField = "website"
	FieldAddress         ContactField = "address"
	FieldNotes           ContactField = "notes"
	FieldUserNotes       ContactField = "user_notes"
	FieldPOCName         ContactField = "poc_name"
	FieldConfidenceScore ContactField = "confidence_score"
)

// EditableFields lists every field accepted by a field edit.
var EditableFields = []ContactField{
	FieldFullName, FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldCompany,
	FieldTitle, FieldWebsite, FieldAddress, FieldNotes, FieldUserNotes, FieldPOCName,
}

// IsEditable reports whether f may be patched by callers.
func IsEditable(f ContactField) bool {
	for _, e := range EditableFields {
		if e == f {
			return true
		}
	}
	return false
}

// StringFieldPtr returns a pointer to the storage of an editable string field, or nil.
func (r *ContactRecord) StringFieldPtr(f ContactField) **string {
	switch f {
	case FieldFullName:
		return &r.FullName
	case FieldFirstName:
		return &r.FirstName
	case FieldLastName:
		return &r.LastName
	case FieldEmail:
		return &r.Email
	case FieldPhone:
		return &r.Phone
	case FieldCompany:
		return &r.Company
	case FieldTitle:
		return &r.Title
	case FieldWebsite:
		return &r.Website
	case FieldAddress:
		return &r.Address
	case FieldNotes:
		return &r.Notes
	case FieldUserNotes:
		return &r.UserNotes
	case FieldPOCName:
		return &r.POCName
	}
	return nil
}
