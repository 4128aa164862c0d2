package entity

// Candidate is one contact parsed from a single model reply, before it is persisted.
// Values are never mutated after creation; normalization returns a copy.
type Candidate struct {
	FullName        *string `json:"full_name"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	Company         *string `json:"company"`
	Title           *string `json:"title"`
	Website         *string `json:"website"`
	Address         *string `json:"address"`
	Notes           *string `json:"notes"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// DisplayName returns the best available name for logs and exports.
func (c Candidate) DisplayName() string {
	if c.FullName != nil && *c.FullName != "" {
		return *c.FullName
	}
	first, last := deref(c.FirstName), deref(c.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
