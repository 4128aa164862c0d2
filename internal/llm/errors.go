package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrEmptyResponse means the service answered successfully but without textual content.
var ErrEmptyResponse = errors.New("no content received from extraction service")

// UpstreamError is a non-success answer (Status > 0) or a transport failure (Status == 0).
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

const maxErrorBody = 512

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("extraction service unreachable: %v", e.Err)
	}
	body := e.Body
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "…"
	}
	return fmt.Sprintf("extraction service error: %d - %s", e.Status, body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamFailure reports whether err is an UpstreamError or ErrEmptyResponse.
func IsUpstreamFailure(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) || errors.Is(err, ErrEmptyResponse)
}
