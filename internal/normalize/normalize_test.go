package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cardscan/internal/entity"
)

func TestPhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"(555) 123-4567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"1-555-123-4567", "+15551234567"},
		{"+44 20 7946 0958", "+442079460958"},
		{"  +1 (555) 123-4567  ", "+15551234567"},
		{"ext 12", "ext 12"},
		{"  ext 12  ", "ext 12"},
		{"25551234567", "25551234567"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Phone(tc.in), "input %q", tc.in)
	}
}

func TestEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "john@example.com", Email("  John@Example.COM "))
	assert.Equal(t, "not an email", Email("Not An Email"))
}

func TestCandidate_LeavesNilFieldsAndInputUntouched(t *testing.T) {
	t.Parallel()

	phone := "(555) 123-4567"
	in := entity.Candidate{Phone: &phone}

	out := Candidate(in)

	require.NotNil(t, out.Phone)
	assert.Equal(t, "+15551234567", *out.Phone)
	assert.Nil(t, out.Email)
	assert.Equal(t, "(555) 123-4567", *in.Phone)
}
