package llm

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// fieldSynonyms maps canonical keys to names models sometimes use instead.
// A synonym is only consulted when the canonical key is absent.
var fieldSynonyms = map[string][]string{
	"full_name": {"name", "fullname"},
	"title":     {"job_title", "position"},
	"company":   {"organization", "company_name"},
	"website":   {"url", "web"},
	"phone":     {"phone_number", "telephone"},
	"email":     {"email_address"},
}

// candidateFromMap coerces one decoded JSON object into a Candidate.
// Unknown keys are ignored; it never fails.
func candidateFromMap(m map[string]any) entity.Candidate {
	get := func(key string) any {
		if v, ok := m[key]; ok {
			return v
		}
		for _, alt := range fieldSynonyms[key] {
			if v, ok := m[alt]; ok {
				return v
			}
		}
		return nil
	}

	return entity.Candidate{
		FullName:        coerceString(get("full_name")),
		FirstName:       coerceString(get("first_name")),
		LastName:        coerceString(get("last_name")),
		Email:           coerceString(get("email")),
		Phone:           coerceString(get("phone")),
		Company:         coerceString(get("company")),
		Title:           coerceString(get("title")),
		Website:         coerceString(get("website")),
		Address:         coerceString(get("address")),
		Notes:           coerceString(get("notes")),
		ConfidenceScore: coerceScore(get("confidence_score")),
	}
}

func coerceString(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(t)
		if strings.EqualFold(s, "null") {
			return nil
		}
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if p := coerceString(item); p != nil {
				parts = append(parts, *p)
			}
		}
		s = strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	if s == "" {
		return nil
	}
	return &s
}

func coerceScore(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}
