package constants

import "time"

const (
	// MaxConcurrentExtractions bounds the number of WorkUnits in processing at once.
	MaxConcurrentExtractions = 3

	// DefaultMaxTokens caps the model's output length.
	DefaultMaxTokens = 2000

	// DefaultExtractTimeout bounds a single extraction call.
	DefaultExtractTimeout = 45 * time.Second

	// DefaultStoreTimeout bounds background confirm tasks against the record store.
	DefaultStoreTimeout = 15 * time.Second

	// DiagnosticNotesPrefix starts the notes of the candidate produced when a reply cannot be parsed.
	DiagnosticNotesPrefix = "FAILED TO PARSE JSON. RAW OUTPUT: "
)
