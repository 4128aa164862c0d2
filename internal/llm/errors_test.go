package llm

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamError_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	// 511 ASCII bytes put the cut inside the first three-byte rune.
	body := strings.Repeat("a", maxErrorBody-1) + strings.Repeat("€", 10)
	msg := (&UpstreamError{Status: 502, Body: body}).Error()

	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, strings.Repeat("a", 8)+"…"))
	assert.Contains(t, msg, "502")
}

func TestUpstreamError_ShortBodyUntouched(t *testing.T) {
	t.Parallel()

	msg := (&UpstreamError{Status: 429, Body: "slow down €"}).Error()
	assert.Equal(t, "extraction service error: 429 - slow down €", msg)

	unreachable := &UpstreamError{Err: errors.New("dial tcp: refused")}
	assert.Contains(t, unreachable.Error(), "unreachable")
	assert.True(t, IsUpstreamFailure(unreachable))
}
