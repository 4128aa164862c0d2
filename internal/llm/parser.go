package llm

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/normalize"
)

// Strategy is one step of the reply parser. It never panics or errors; ok=false hands
// the text to the next strategy.
type Strategy struct {
	Name string
	Run  func(text string) (candidates []entity.Candidate, ok bool)
}

// DefaultStrategies is the ordered chain used by Parse, first success wins.
var DefaultStrategies = []Strategy{
	{Name: "whole_text", Run: parseWholeText},
	{Name: "bracketed_span", Run: parseBracketedSpan},
	{Name: "braced_span", Run: parseBracedSpan},
}

// ResponseParser turns a model reply into candidates. Its guaranteed last step
// is the diagnostic candidate carrying the raw reply.
type ResponseParser struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewResponseParser(logger *slog.Logger, strategies ...Strategy) *ResponseParser {
	if logger == nil {
		logger = slog.Default()
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &ResponseParser{strategies: strategies, logger: logger}
}

// Parse runs the strategies only. It returns nil, false when none succeeds.
func (p *ResponseParser) Parse(text string) ([]entity.Candidate, bool) {
	for i, s := range p.strategies {
		if out, ok := s.Run(text); ok {
			if i > 0 {
				p.logger.Debug("llm.parse.fallback", "strategy", s.Name, "candidates", len(out))
			}
			return out, true
		}
	}
	return nil, false
}

// ParseCandidates runs the full chain and never fails.
func (p *ResponseParser) ParseCandidates(text string) []entity.Candidate {
	if out, ok := p.Parse(text); ok {
		return out
	}
	p.logger.Warn("llm.parse.failed", "reply_bytes", len(text), "hint", "returning raw reply in notes")
	return []entity.Candidate{Diagnostic(text)}
}

var defaultParser = NewResponseParser(nil)

// Parse is the bare parser over DefaultStrategies.
func Parse(text string) ([]entity.Candidate, bool) {
	return defaultParser.Parse(text)
}

// ParseCandidates is the full chain over DefaultStrategies.
func ParseCandidates(text string) []entity.Candidate {
	return defaultParser.ParseCandidates(text)
}

// CandidatesFromReply parses a reply and normalizes phone and email on every candidate.
func CandidatesFromReply(p *ResponseParser, text string) []entity.Candidate {
	if p == nil {
		p = defaultParser
	}
	parsed := p.ParseCandidates(text)
	out := make([]entity.Candidate, len(parsed))
	for i, c := range parsed {
		out[i] = normalize.Candidate(c)
	}
	return out
}

// Diagnostic is the candidate produced for an unparseable reply.
func Diagnostic(raw string) entity.Candidate {
	notes := constants.DiagnosticNotesPrefix + raw
	return entity.Candidate{Notes: &notes}
}

func parseWholeText(text string) ([]entity.Candidate, bool) {
	v, ok := decode(text)
	if !ok {
		return nil, false
	}
	switch v.(type) {
	case []any:
		return fromList(v)
	case map[string]any:
		return fromObject(v)
	}
	return nil, false
}

func parseBracketedSpan(text string) ([]entity.Candidate, bool) {
	span, ok := between(text, "[", "]")
	if !ok {
		return nil, false
	}
	v, ok := decode(span)
	if !ok {
		return nil, false
	}
	return fromList(v)
}

func parseBracedSpan(text string) ([]entity.Candidate, bool) {
	span, ok := between(text, "{", "}")
	if !ok {
		return nil, false
	}
	v, ok := decode(span)
	if !ok {
		return nil, false
	}
	return fromObject(v)
}

// between returns text from the first open to the last close, inclusive (greedy).
func between(text, open, close string) (string, bool) {
	i := strings.Index(text, open)
	j := strings.LastIndex(text, close)
	if i < 0 || j <= i {
		return "", false
	}
	return text[i : j+1], true
}

func decode(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func fromList(v any) ([]entity.Candidate, bool) {
	if err := ValidateCandidateList(v); err != nil {
		return nil, false
	}
	items := v.([]any)
	out := make([]entity.Candidate, 0, len(items))
	for _, item := range items {
		out = append(out, candidateFromMap(item.(map[string]any)))
	}
	return out, true
}

func fromObject(v any) ([]entity.Candidate, bool) {
	if err := ValidateCandidateObject(v); err != nil {
		return nil, false
	}
	return []entity.Candidate{candidateFromMap(v.(map[string]any))}, true
}
